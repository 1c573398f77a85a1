package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/metrics"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/payment/banktransfer"
	"github.com/rentflow/internal/queue"
	"github.com/rentflow/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	routingNumberPattern = regexp.MustCompile(`^[0-9]{9}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{4,17}$`)
)

// ValidateRoutingNumber 校验 9 位数字的路由号
func ValidateRoutingNumber(routingNumber string) error {
	if !routingNumberPattern.MatchString(routingNumber) {
		return ErrRoutingNumberInvalid
	}
	return nil
}

// FundingSourceService 付款身份与银行账户管理
type FundingSourceService struct {
	partyRepo   repository.PartyRepository
	fundingRepo repository.FundingSourceRepository
	registry    *ProcessorRegistryService
	gateway     BankTransferGateway
	dispatcher  TaskDispatcher
	sandbox     bool
	now         func() time.Time
}

// NewFundingSourceService 创建资金来源服务
func NewFundingSourceService(partyRepo repository.PartyRepository, fundingRepo repository.FundingSourceRepository, registry *ProcessorRegistryService, gateway BankTransferGateway, dispatcher TaskDispatcher, sandbox bool) *FundingSourceService {
	return &FundingSourceService{
		partyRepo:   partyRepo,
		fundingRepo: fundingRepo,
		registry:    registry,
		gateway:     gateway,
		dispatcher:  dispatcher,
		sandbox:     sandbox,
		now:         time.Now,
	}
}

// LinkBankAccountInput 绑定银行账户输入
type LinkBankAccountInput struct {
	PartyID       uint
	RoutingNumber string
	AccountNumber string
	AccountType   string
	HolderName    string
}

// CreatePayerIdentity 为参与方在处理方创建客户身份，已存在时直接返回
func (s *FundingSourceService) CreatePayerIdentity(ctx context.Context, partyID uint, processor string) (*models.PayerIdentity, error) {
	processor = strings.ToLower(strings.TrimSpace(processor))
	if processor == "" {
		processor = constants.ProcessorKindBankTransfer
	}
	if processor != constants.ProcessorKindBankTransfer {
		return nil, ErrProcessorKindInvalid
	}
	log := requestLogger(ctx, "party_id", partyID, "processor", processor)

	existing, err := s.fundingRepo.GetIdentity(partyID, processor)
	if err != nil {
		log.Errorw("payer_identity_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	if existing != nil {
		return existing, nil
	}
	party, err := s.partyRepo.GetByID(partyID)
	if err != nil {
		log.Errorw("payer_identity_party_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	if party == nil {
		return nil, ErrPartyNotFound
	}
	if s.gateway == nil {
		return nil, ErrProcessorUnavailable
	}

	started := time.Now()
	customerRef, err := s.gateway.CreateCustomer(ctx, banktransfer.CustomerInput{
		PartyID:        party.ID,
		Email:          party.Email,
		DisplayName:    party.DisplayName,
		Business:       party.Role == constants.PartyRoleLandlord,
		IdempotencyKey: fmt.Sprintf("payer-identity:%s:%d", processor, party.ID),
	})
	metrics.Payments().ObserveProcessorLatency(processor, "create_customer", time.Since(started).Seconds())
	if err != nil {
		log.Errorw("payer_identity_provider_failed", "error", err)
		return nil, ErrPayerIdentityCreateFailed
	}

	identity := &models.PayerIdentity{
		PartyID:             party.ID,
		Processor:           processor,
		ExternalCustomerRef: customerRef,
	}
	if err := s.fundingRepo.CreateIdentity(identity); err != nil {
		if repository.IsUniqueViolation(err) {
			reloaded, reloadErr := s.fundingRepo.GetIdentity(partyID, processor)
			if reloadErr == nil && reloaded != nil {
				return reloaded, nil
			}
		}
		log.Errorw("payer_identity_persist_failed", "customer_ref", customerRef, "error", err)
		return nil, ErrPersistenceFailed
	}
	log.Infow("payer_identity_created", "customer_ref", customerRef)
	return identity, nil
}

func normalizeLinkInput(input LinkBankAccountInput) (LinkBankAccountInput, error) {
	input.RoutingNumber = strings.TrimSpace(input.RoutingNumber)
	input.AccountNumber = strings.TrimSpace(input.AccountNumber)
	input.AccountType = strings.ToLower(strings.TrimSpace(input.AccountType))
	input.HolderName = strings.TrimSpace(input.HolderName)
	if err := ValidateRoutingNumber(input.RoutingNumber); err != nil {
		return input, err
	}
	if !accountNumberPattern.MatchString(input.AccountNumber) {
		return input, ErrAccountNumberInvalid
	}
	if input.AccountType == "" {
		input.AccountType = constants.BankAccountTypeChecking
	}
	if input.AccountType != constants.BankAccountTypeChecking && input.AccountType != constants.BankAccountTypeSavings {
		return input, ErrAccountTypeInvalid
	}
	return input, nil
}

// LinkBankAccount 绑定银行账户；沙箱环境立即视为已验证，否则异步发起小额打款
func (s *FundingSourceService) LinkBankAccount(ctx context.Context, input LinkBankAccountInput) (*models.FundingSource, error) {
	input, err := normalizeLinkInput(input)
	if err != nil {
		metrics.Payments().ObserveFundingSource(metrics.OutcomeRejected)
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrProcessorUnavailable
	}
	log := requestLogger(ctx, "party_id", input.PartyID, "processor", constants.ProcessorKindBankTransfer)

	party, err := s.partyRepo.GetByID(input.PartyID)
	if err != nil {
		log.Errorw("funding_source_party_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	if party == nil {
		return nil, ErrPartyNotFound
	}
	identity, err := s.CreatePayerIdentity(ctx, party.ID, constants.ProcessorKindBankTransfer)
	if err != nil {
		return nil, err
	}
	holderName := input.HolderName
	if holderName == "" {
		holderName = party.DisplayName
	}

	started := time.Now()
	result, err := s.gateway.CreateFundingSource(ctx, banktransfer.FundingSourceInput{
		CustomerRef:   identity.ExternalCustomerRef,
		RoutingNumber: input.RoutingNumber,
		AccountNumber: input.AccountNumber,
		AccountType:   input.AccountType,
		HolderName:    holderName,
	})
	metrics.Payments().ObserveProcessorLatency(constants.ProcessorKindBankTransfer, "create_funding_source", time.Since(started).Seconds())
	if err != nil {
		metrics.Payments().ObserveFundingSource(metrics.OutcomeFailed)
		log.Warnw("funding_source_provider_failed",
			"customer_ref", identity.ExternalCustomerRef,
			"account", logger.MaskAccount(input.AccountNumber),
			"error", err,
		)
		if errors.Is(err, banktransfer.ErrRejected) {
			return nil, ErrFundingSourceRejected
		}
		return nil, ErrProcessorRequestFailed
	}

	now := s.now()
	source := &models.FundingSource{
		PartyID:     party.ID,
		Processor:   constants.ProcessorKindBankTransfer,
		ExternalRef: result.FundingSourceRef,
		Name:        fundingSourceName(result.BankName, input.AccountType, input.AccountNumber),
		AccountType: input.AccountType,
		Last4:       input.AccountNumber[len(input.AccountNumber)-4:],
		Verified:    s.sandbox,
		Status:      constants.FundingSourceStatusActive,
	}
	if source.Verified {
		source.VerifiedAt = &now
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.fundingRepo.WithTx(tx)
		count, err := repo.CountActive(party.ID, constants.ProcessorKindBankTransfer)
		if err != nil {
			return err
		}
		source.IsDefault = count == 0
		if err := repo.Create(source); err != nil {
			return err
		}
		if source.Verified && party.Role == constants.PartyRoleLandlord && s.registry != nil {
			return s.registry.EnsureBankTransferActive(tx, party.ID, source.ExternalRef)
		}
		return nil
	})
	if err != nil {
		log.Errorw("funding_source_persist_failed", "funding_source_ref", result.FundingSourceRef, "error", err)
		return nil, ErrPersistenceFailed
	}
	metrics.Payments().ObserveFundingSource(metrics.OutcomeSuccess)
	log.Infow("funding_source_linked",
		"funding_source_id", source.ID,
		"verified", source.Verified,
		"is_default", source.IsDefault,
	)

	if !s.sandbox {
		s.dispatchMicroDeposits(ctx, source.ID)
	}
	return source, nil
}

// dispatchMicroDeposits 事务提交后投递小额打款任务；队列不可用时同步发起，失败只记录日志
func (s *FundingSourceService) dispatchMicroDeposits(ctx context.Context, fundingSourceID uint) {
	log := serviceLogger("funding_source_id", fundingSourceID)
	if s.dispatcher != nil && s.dispatcher.Enabled() {
		err := s.dispatcher.EnqueueMicroDeposit(queue.MicroDepositPayload{FundingSourceID: fundingSourceID})
		if err == nil {
			log.Infow("micro_deposit_enqueued")
			return
		}
		log.Warnw("micro_deposit_enqueue_failed", "error", err)
	}
	if err := s.InitiateMicroDeposits(ctx, fundingSourceID); err != nil {
		log.Warnw("micro_deposit_inline_failed", "error", err)
	}
}

func fundingSourceName(bankName, accountType, accountNumber string) string {
	name := strings.TrimSpace(bankName)
	if name == "" {
		name = "Bank"
	}
	return fmt.Sprintf("%s %s ****%s", name, accountType, accountNumber[len(accountNumber)-4:])
}

// InitiateMicroDeposits 发起小额打款（异步任务调用）
func (s *FundingSourceService) InitiateMicroDeposits(ctx context.Context, fundingSourceID uint) error {
	if s.gateway == nil {
		return ErrProcessorUnavailable
	}
	log := serviceLogger("funding_source_id", fundingSourceID)
	source, err := s.fundingRepo.GetByID(fundingSourceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if source == nil || source.Status != constants.FundingSourceStatusActive {
		return ErrFundingSourceNotFound
	}
	if source.Verified {
		log.Infow("micro_deposit_skip_verified")
		return nil
	}
	started := time.Now()
	err = s.gateway.InitiateMicroDeposits(ctx, source.ExternalRef)
	metrics.Payments().ObserveProcessorLatency(constants.ProcessorKindBankTransfer, "initiate_micro_deposits", time.Since(started).Seconds())
	if err != nil {
		log.Warnw("micro_deposit_initiate_failed", "funding_source_ref", source.ExternalRef, "error", err)
		return fmt.Errorf("%w: %v", ErrProcessorRequestFailed, err)
	}
	log.Infow("micro_deposit_initiated", "funding_source_ref", source.ExternalRef)
	return nil
}

// RetryMicroDeposits 参与方重新发起未验证账户的小额打款
func (s *FundingSourceService) RetryMicroDeposits(ctx context.Context, partyID, fundingSourceID uint) (*models.FundingSource, error) {
	source, err := s.ownedSource(partyID, fundingSourceID)
	if err != nil {
		return nil, err
	}
	if source.Verified {
		return source, nil
	}
	if err := s.InitiateMicroDeposits(ctx, source.ID); err != nil {
		requestLogger(ctx, "party_id", partyID, "funding_source_id", fundingSourceID).Warnw("micro_deposit_retry_failed", "error", err)
		return nil, err
	}
	return source, nil
}

func normalizeMicroDepositAmount(raw string) (string, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrMicroDepositAmountInvalid
	}
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "", ErrMicroDepositAmountInvalid
	}
	if !amount.Equal(amount.Round(2)) {
		return "", ErrMicroDepositAmountInvalid
	}
	return amount.StringFixed(2), nil
}

// VerifyMicroDeposits 提交两笔小额打款金额完成验证
func (s *FundingSourceService) VerifyMicroDeposits(ctx context.Context, partyID, fundingSourceID uint, amount1, amount2 string) (*models.FundingSource, error) {
	first, err := normalizeMicroDepositAmount(amount1)
	if err != nil {
		return nil, err
	}
	second, err := normalizeMicroDepositAmount(amount2)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, ErrProcessorUnavailable
	}
	log := requestLogger(ctx, "party_id", partyID, "funding_source_id", fundingSourceID)
	source, err := s.ownedSource(partyID, fundingSourceID)
	if err != nil {
		return nil, err
	}
	if source.Verified {
		return source, nil
	}
	if err := s.gateway.VerifyMicroDeposits(ctx, source.ExternalRef, first, second); err != nil {
		log.Warnw("micro_deposit_verify_failed", "funding_source_ref", source.ExternalRef, "error", err)
		if errors.Is(err, banktransfer.ErrRejected) {
			return nil, ErrMicroDepositRejected
		}
		return nil, ErrProcessorRequestFailed
	}
	party, err := s.partyRepo.GetByID(partyID)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	if err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.markVerified(tx, source, party)
	}); err != nil {
		log.Errorw("funding_source_mark_verified_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	log.Infow("funding_source_verified", "source", "micro_deposits")
	return source, nil
}

// markVerified 标记已验证，房东同时启用银行转账
func (s *FundingSourceService) markVerified(tx *gorm.DB, source *models.FundingSource, owner *models.Party) error {
	now := s.now()
	if _, err := s.fundingRepo.WithTx(tx).MarkVerified(source.ID, now); err != nil {
		return err
	}
	source.Verified = true
	source.VerifiedAt = &now
	if owner != nil && owner.Role == constants.PartyRoleLandlord && s.registry != nil {
		return s.registry.EnsureBankTransferActive(tx, owner.ID, source.ExternalRef)
	}
	return nil
}

// ListFundingSources 参与方有效的资金来源
func (s *FundingSourceService) ListFundingSources(_ context.Context, partyID uint) ([]models.FundingSource, error) {
	sources, err := s.fundingRepo.ListByParty(partyID)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	return sources, nil
}

// SetDefault 设为默认资金来源
func (s *FundingSourceService) SetDefault(_ context.Context, partyID, fundingSourceID uint) (*models.FundingSource, error) {
	source, err := s.ownedSource(partyID, fundingSourceID)
	if err != nil {
		return nil, err
	}
	if source.IsDefault {
		return source, nil
	}
	if err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.fundingRepo.WithTx(tx).SetDefault(partyID, source.Processor, source.ID)
	}); err != nil {
		serviceLogger("party_id", partyID, "funding_source_id", fundingSourceID).Errorw("funding_source_set_default_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	source.IsDefault = true
	return source, nil
}

func (s *FundingSourceService) ownedSource(partyID, fundingSourceID uint) (*models.FundingSource, error) {
	source, err := s.fundingRepo.GetByID(fundingSourceID)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	if source == nil || source.PartyID != partyID || source.Status != constants.FundingSourceStatusActive {
		return nil, ErrFundingSourceNotFound
	}
	return source, nil
}
