package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/metrics"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/payment/banktransfer"
	"github.com/rentflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// correlationNamespace 支付意图幂等键的命名空间
var correlationNamespace = uuid.MustParse("6f1c2a4e-8d1b-5b8e-9a57-3e0c1d2f4b60")

// PaymentCorrelationID 由支付意图 ID 确定性派生幂等键
func PaymentCorrelationID(paymentID uint) string {
	return uuid.NewSHA1(correlationNamespace, []byte(fmt.Sprintf("rent-payment:%d", paymentID))).String()
}

// InitiateTransferInput 发起租金转账输入
type InitiateTransferInput struct {
	TenantID  uint
	UnitID    uint
	Amount    models.Money
	DueDate   *time.Time
	PaymentID uint // 非 0 时重试已有支付意图
}

// TransferResult 发起结果
type TransferResult struct {
	Payment  *models.RentPayment `json:"payment"`
	Transfer *models.Transfer    `json:"transfer"`
	Replayed bool                `json:"replayed"`
}

// TransferServiceOptions 转账服务依赖
type TransferServiceOptions struct {
	PaymentRepo  repository.RentPaymentRepository
	TransferRepo repository.TransferRepository
	FundingRepo  repository.FundingSourceRepository
	PropertyRepo repository.PropertyRepository
	ConfigRepo   repository.ProcessorConfigRepository
	Ledger       *PaymentLedger
	Gateway      BankTransferGateway
	Fee          FeePolicy
	Currency     string
}

// TransferService 租金转账编排
type TransferService struct {
	paymentRepo  repository.RentPaymentRepository
	transferRepo repository.TransferRepository
	fundingRepo  repository.FundingSourceRepository
	propertyRepo repository.PropertyRepository
	configRepo   repository.ProcessorConfigRepository
	ledger       *PaymentLedger
	gateway      BankTransferGateway
	fee          FeePolicy
	currency     string
}

// NewTransferService 创建转账编排服务
func NewTransferService(opts TransferServiceOptions) *TransferService {
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = "USD"
	}
	ledger := opts.Ledger
	if ledger == nil {
		ledger = NewPaymentLedger(opts.PaymentRepo)
	}
	return &TransferService{
		paymentRepo:  opts.PaymentRepo,
		transferRepo: opts.TransferRepo,
		fundingRepo:  opts.FundingRepo,
		propertyRepo: opts.PropertyRepo,
		configRepo:   opts.ConfigRepo,
		ledger:       ledger,
		gateway:      opts.Gateway,
		fee:          opts.Fee,
		currency:     currency,
	}
}

// transferParties 前置检查通过后的双方资金来源
type transferParties struct {
	landlordID  uint
	source      *models.FundingSource
	destination *models.FundingSource
}

// InitiateTransfer 发起租金转账
//
// 先落库 pending 意图，再以意图派生的幂等键调用处理方；
// 受理后写入 Transfer 并迁移到 processing。首次调用失败则作废意图，
// 重试时处理方可能已受理过同一幂等键，失败只保留 pending 交给对账任务。
func (s *TransferService) InitiateTransfer(ctx context.Context, input InitiateTransferInput) (*TransferResult, error) {
	var payment *models.RentPayment
	retrying := input.PaymentID != 0
	if retrying {
		existing, result, err := s.loadRetry(input)
		if err != nil || result != nil {
			return result, err
		}
		payment = existing
		input.UnitID = existing.UnitID
		input.Amount = existing.Amount
	}

	parties, err := s.checkPreconditions(input, payment)
	if err != nil {
		return nil, err
	}
	fee, net := s.fee.Compute(input.Amount)
	if !net.GreaterThan(decimal.Zero) {
		return nil, ErrAmountBelowFee
	}

	log := requestLogger(ctx,
		"party_id", input.TenantID,
		"processor", constants.ProcessorKindBankTransfer,
		"landlord_id", parties.landlordID,
		"unit_id", input.UnitID,
	)

	if payment == nil {
		payment = &models.RentPayment{
			TenantID: input.TenantID,
			UnitID:   input.UnitID,
			Amount:   input.Amount,
			DueDate:  input.DueDate,
			Status:   constants.RentPaymentStatusPending,
			Method:   constants.ProcessorKindBankTransfer,

			SourceFundingSourceID:      parties.source.ID,
			DestinationFundingSourceID: parties.destination.ID,
		}
		if err := s.paymentRepo.Create(payment); err != nil {
			log.Errorw("rent_payment_create_failed", "error", err)
			return nil, ErrPersistenceFailed
		}
	} else if payment.SourceFundingSourceID == 0 {
		if err := s.paymentRepo.PinFundingSources(payment.ID, parties.source.ID, parties.destination.ID); err != nil {
			log.Errorw("rent_payment_pin_failed", "payment_id", payment.ID, "error", err)
			return nil, ErrPersistenceFailed
		}
	}
	correlationID := PaymentCorrelationID(payment.ID)
	log = log.With("payment_id", payment.ID, "correlation_id", correlationID)

	// 上次已写入 Transfer 但状态未推进
	if existing, err := s.transferRepo.GetByCorrelationID(correlationID); err != nil {
		log.Errorw("transfer_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	} else if existing != nil {
		if err := s.ledger.MarkProcessing(payment.ID, SourceOrchestrator); err != nil {
			log.Errorw("rent_payment_mark_processing_failed", "error", err)
			return nil, ErrPersistenceFailed
		}
		return s.replay(payment.ID, existing)
	}

	started := time.Now()
	accepted, err := s.gateway.CreateTransfer(ctx, banktransfer.TransferInput{
		SourceRef:      parties.source.ExternalRef,
		DestinationRef: parties.destination.ExternalRef,
		Amount:         input.Amount.String(),
		Currency:       s.currency,
		CorrelationID:  correlationID,
		IdempotencyKey: correlationID,
	})
	metrics.Payments().ObserveProcessorLatency(constants.ProcessorKindBankTransfer, "create_transfer", time.Since(started).Seconds())
	if err != nil {
		metrics.Payments().ObserveTransfer(constants.ProcessorKindBankTransfer, metrics.OutcomeFailed)
		if retrying {
			log.Warnw("transfer_redrive_provider_failed", "error", err)
			return nil, ErrPaymentInitiationFailed
		}
		log.Errorw("transfer_create_provider_failed", "error", err)
		s.compensate(payment.ID, SourceOrchestrator, "transfer_create_failed", log)
		return nil, ErrPaymentInitiationFailed
	}

	transfer := &models.Transfer{
		PaymentID:                  payment.ID,
		SourceFundingSourceID:      parties.source.ID,
		DestinationFundingSourceID: parties.destination.ID,
		Amount:                     input.Amount,
		Fee:                        fee,
		NetAmount:                  net,
		ExternalRef:                accepted.TransferRef,
		CorrelationID:              correlationID,
		Status:                     constants.TransferStatusPending,
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.transferRepo.WithTx(tx)
		if err := repo.Create(transfer); err != nil {
			if !repository.IsUniqueViolation(err) {
				return err
			}
			existing, err := repo.GetByCorrelationID(correlationID)
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrTransferNotFound
			}
			transfer = existing
		}
		return s.ledger.WithTx(tx).MarkProcessing(payment.ID, SourceOrchestrator)
	})
	if err != nil {
		// 处理方已受理，保持 pending 由对账任务以同一幂等键补写
		log.Errorw("transfer_persist_after_accept_failed",
			"transfer_ref", accepted.TransferRef,
			"error", err,
		)
		return nil, ErrPersistenceFailed
	}

	metrics.Payments().ObserveTransfer(constants.ProcessorKindBankTransfer, metrics.OutcomeSuccess)
	log.Infow("transfer_initiated",
		"transfer_ref", transfer.ExternalRef,
		"amount", transfer.Amount.String(),
		"fee", transfer.Fee.String(),
		"net_amount", transfer.NetAmount.String(),
	)
	reloaded, err := s.paymentRepo.GetByID(payment.ID)
	if err != nil || reloaded == nil {
		payment.Status = constants.RentPaymentStatusProcessing
		reloaded = payment
	}
	return &TransferResult{Payment: reloaded, Transfer: transfer}, nil
}

// loadRetry 读取重试的支付意图；已受理的直接返回原转账
func (s *TransferService) loadRetry(input InitiateTransferInput) (*models.RentPayment, *TransferResult, error) {
	payment, err := s.paymentRepo.GetByIDWithTransfer(input.PaymentID)
	if err != nil {
		return nil, nil, ErrPersistenceFailed
	}
	if payment == nil || (input.TenantID != 0 && payment.TenantID != input.TenantID) {
		return nil, nil, ErrPaymentNotFound
	}
	if payment.Method != constants.ProcessorKindBankTransfer {
		return nil, nil, ErrPaymentNotRetriable
	}
	if input.UnitID != 0 && input.UnitID != payment.UnitID {
		return nil, nil, fmt.Errorf("%w: unit does not match payment", ErrInvalidInput)
	}
	if !input.Amount.IsZero() && !input.Amount.Equal(payment.Amount.Decimal) {
		return nil, nil, fmt.Errorf("%w: amount does not match payment", ErrInvalidInput)
	}
	switch payment.Status {
	case constants.RentPaymentStatusPending:
		return payment, nil, nil
	case constants.RentPaymentStatusVoid:
		return nil, nil, ErrPaymentNotRetriable
	default:
		if payment.Transfer == nil {
			return nil, nil, ErrPaymentNotRetriable
		}
		metrics.Payments().ObserveTransfer(constants.ProcessorKindBankTransfer, metrics.OutcomeReplayed)
		return nil, &TransferResult{Payment: payment, Transfer: payment.Transfer, Replayed: true}, nil
	}
}

func (s *TransferService) replay(paymentID uint, transfer *models.Transfer) (*TransferResult, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil || payment == nil {
		return nil, ErrPersistenceFailed
	}
	metrics.Payments().ObserveTransfer(constants.ProcessorKindBankTransfer, metrics.OutcomeReplayed)
	return &TransferResult{Payment: payment, Transfer: transfer, Replayed: true}, nil
}

// checkPreconditions 依次检查前置条件，任何一项失败都不写账本
//
// 已锁定资金来源的意图沿用原来的双方账户，保证同一幂等键的请求体不变。
func (s *TransferService) checkPreconditions(input InitiateTransferInput, pinned *models.RentPayment) (*transferParties, error) {
	log := serviceLogger("party_id", input.TenantID, "unit_id", input.UnitID)
	var sourceID, destinationID uint
	if pinned != nil {
		sourceID = pinned.SourceFundingSourceID
		destinationID = pinned.DestinationFundingSourceID
	}

	source, err := s.fundingSourceFor(input.TenantID, sourceID)
	if err != nil {
		log.Errorw("transfer_tenant_funding_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	if source == nil {
		return nil, ErrTenantFundingSourceMissing
	}

	unit, err := s.propertyRepo.GetUnitWithProperty(input.UnitID)
	if err != nil {
		log.Errorw("transfer_unit_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	if unit == nil || unit.Property == nil || unit.Property.LandlordID == 0 {
		return nil, ErrLandlordNotFound
	}
	landlordID := unit.Property.LandlordID
	lease, err := s.propertyRepo.GetActiveLeaseByTenantUnit(input.TenantID, unit.ID)
	if err != nil {
		log.Errorw("transfer_lease_fetch_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	if lease == nil {
		return nil, ErrUnitNotLeased
	}

	destination, err := s.fundingSourceFor(landlordID, destinationID)
	if err != nil {
		log.Errorw("transfer_landlord_funding_fetch_failed", "landlord_id", landlordID, "error", err)
		return nil, ErrPersistenceFailed
	}
	if destination == nil {
		return nil, ErrLandlordFundingSourceMissing
	}
	if s.configRepo != nil {
		cfg, err := s.configRepo.GetByLandlordKind(landlordID, constants.ProcessorKindBankTransfer)
		if err != nil {
			return nil, ErrPersistenceFailed
		}
		if cfg == nil || cfg.Status != constants.ProcessorStatusActive {
			return nil, ErrProcessorUnavailable
		}
	}

	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, ErrAmountInvalid
	}
	if s.gateway == nil {
		return nil, ErrProcessorUnavailable
	}
	return &transferParties{landlordID: landlordID, source: source, destination: destination}, nil
}

// fundingSourceFor 读取锁定的资金来源；未锁定时取参与方默认的已验证来源
func (s *TransferService) fundingSourceFor(partyID, pinnedID uint) (*models.FundingSource, error) {
	if pinnedID == 0 {
		return s.fundingRepo.GetVerifiedForParty(partyID, constants.ProcessorKindBankTransfer)
	}
	source, err := s.fundingRepo.GetByID(pinnedID)
	if err != nil {
		return nil, err
	}
	if source == nil || source.PartyID != partyID || !source.Verified ||
		source.Status != constants.FundingSourceStatusActive {
		return nil, nil
	}
	return source, nil
}

// compensate 作废未被受理的支付意图
func (s *TransferService) compensate(paymentID uint, source TransitionSource, reason string, log *zap.SugaredLogger) {
	if err := s.ledger.Void(paymentID, source, reason); err != nil {
		log.Errorw("rent_payment_compensation_failed", "error", err)
		return
	}
	metrics.Payments().ObserveCompensation()
	log.Warnw("rent_payment_voided", "reason", reason)
}

// RedrivePayment 以同一幂等键重新驱动挂起的支付意图
func (s *TransferService) RedrivePayment(ctx context.Context, paymentID uint) (*TransferResult, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	result, err := s.InitiateTransfer(ctx, InitiateTransferInput{
		TenantID:  payment.TenantID,
		PaymentID: payment.ID,
	})
	if err != nil && ErrorKind(err) == ErrorKindPrecondition && !errors.Is(err, ErrPaymentNotRetriable) {
		// 前置条件已不满足，重试不会成功
		serviceLogger("payment_id", paymentID).Warnw("rent_payment_redrive_precondition_failed", "error", err)
		s.compensate(paymentID, SourceReconciler, "precondition_failed", serviceLogger("payment_id", paymentID))
	}
	return result, err
}

// GetPayment 租客查询支付详情
func (s *TransferService) GetPayment(_ context.Context, tenantID, paymentID uint) (*models.RentPayment, error) {
	payment, err := s.paymentRepo.GetByIDWithTransfer(paymentID)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	if payment == nil || payment.TenantID != tenantID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ListPayments 租客支付列表
func (s *TransferService) ListPayments(_ context.Context, filter repository.RentPaymentListFilter) ([]models.RentPayment, int64, error) {
	payments, total, err := s.paymentRepo.List(filter)
	if err != nil {
		return nil, 0, ErrPersistenceFailed
	}
	return payments, total, nil
}
