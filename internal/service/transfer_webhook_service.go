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
	"github.com/rentflow/internal/payment/card"
	"github.com/rentflow/internal/repository"

	"gorm.io/gorm"
)

// WebhookDeduper 回调事件的快速去重（Redis）
type WebhookDeduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// WebhookOutcome 回调处理结果
type WebhookOutcome struct {
	Processor string `json:"processor"`
	EventID   string `json:"event_id"`
	Topic     string `json:"topic"`
	PaymentID uint   `json:"payment_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
	Ignored   bool   `json:"ignored"`
}

// errDuplicateEvent 事务内发现重复事件，用于回滚
var errDuplicateEvent = errors.New("duplicate processor event")

// TransferWebhookServiceOptions 回调服务依赖
type TransferWebhookServiceOptions struct {
	TransferRepo repository.TransferRepository
	FundingRepo  repository.FundingSourceRepository
	CheckoutRepo repository.CardCheckoutRepository
	EventRepo    repository.ProcessorEventRepository
	Ledger       *PaymentLedger
	Funding      *FundingSourceService
	Deduper      WebhookDeduper
	DedupeTTL    time.Duration
	BankConfig   *banktransfer.Config
	CardConfig   *card.Config
}

// TransferWebhookService 处理方状态回调
type TransferWebhookService struct {
	transferRepo repository.TransferRepository
	fundingRepo  repository.FundingSourceRepository
	checkoutRepo repository.CardCheckoutRepository
	eventRepo    repository.ProcessorEventRepository
	ledger       *PaymentLedger
	funding      *FundingSourceService
	deduper      WebhookDeduper
	dedupeTTL    time.Duration
	bankConfig   *banktransfer.Config
	cardConfig   *card.Config
	now          func() time.Time
}

// NewTransferWebhookService 创建回调服务
func NewTransferWebhookService(opts TransferWebhookServiceOptions) *TransferWebhookService {
	ttl := opts.DedupeTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TransferWebhookService{
		transferRepo: opts.TransferRepo,
		fundingRepo:  opts.FundingRepo,
		checkoutRepo: opts.CheckoutRepo,
		eventRepo:    opts.EventRepo,
		ledger:       opts.Ledger,
		funding:      opts.Funding,
		deduper:      opts.Deduper,
		dedupeTTL:    ttl,
		bankConfig:   opts.BankConfig,
		cardConfig:   opts.CardConfig,
		now:          time.Now,
	}
}

// HandleBankTransferWebhook 处理银行转账回调
func (s *TransferWebhookService) HandleBankTransferWebhook(ctx context.Context, headers map[string]string, body []byte) (*WebhookOutcome, error) {
	log := requestLogger(ctx, "processor", constants.ProcessorKindBankTransfer, "body_size", len(body))
	event, err := banktransfer.VerifyAndParseWebhook(s.bankConfig, headers, body)
	if err != nil {
		log.Warnw("webhook_verify_failed", "error", err)
		metrics.Payments().ObserveWebhook(constants.ProcessorKindBankTransfer, "", metrics.OutcomeRejected)
		if errors.Is(err, banktransfer.ErrSignatureInvalid) || errors.Is(err, banktransfer.ErrConfigInvalid) {
			return nil, ErrWebhookSignatureInvalid
		}
		return nil, ErrWebhookPayloadInvalid
	}
	outcome := &WebhookOutcome{
		Processor: constants.ProcessorKindBankTransfer,
		EventID:   event.EventID,
		Topic:     event.Topic,
	}
	log = log.With("event_id", event.EventID, "topic", event.Topic, "resource_ref", event.ResourceRef)

	record := &models.ProcessorEvent{
		Processor:   constants.ProcessorKindBankTransfer,
		EventID:     event.EventID,
		Topic:       event.Topic,
		ResourceRef: event.ResourceRef,
		Payload:     models.JSON(event.Raw),
	}
	err = s.process(ctx, record, outcome, func(tx *gorm.DB) error {
		switch event.Topic {
		case constants.ProcessorEventTransferCompleted:
			return s.settleTransfer(tx, event, outcome, constants.TransferStatusProcessed)
		case constants.ProcessorEventTransferFailed:
			return s.settleTransfer(tx, event, outcome, constants.TransferStatusFailed)
		case constants.ProcessorEventTransferCancelled:
			return s.settleTransfer(tx, event, outcome, constants.TransferStatusCancelled)
		case constants.ProcessorEventFundingSourceVerified:
			return s.verifyFundingSource(tx, event.ResourceRef, outcome)
		default:
			outcome.Ignored = true
			return nil
		}
	})
	if err != nil {
		log.Warnw("webhook_process_failed", "error", err)
		return nil, err
	}
	log.Infow("webhook_processed",
		"payment_id", outcome.PaymentID,
		"duplicate", outcome.Duplicate,
		"ignored", outcome.Ignored,
	)
	return outcome, nil
}

// HandleCardWebhook 处理卡支付回调
func (s *TransferWebhookService) HandleCardWebhook(ctx context.Context, headers map[string]string, body []byte) (*WebhookOutcome, error) {
	log := requestLogger(ctx, "processor", constants.ProcessorKindCard, "body_size", len(body))
	event, err := card.VerifyAndParseWebhook(s.cardConfig, headers, body, s.now())
	if err != nil {
		log.Warnw("webhook_verify_failed", "error", err)
		metrics.Payments().ObserveWebhook(constants.ProcessorKindCard, "", metrics.OutcomeRejected)
		if errors.Is(err, card.ErrSignatureInvalid) || errors.Is(err, card.ErrConfigInvalid) {
			return nil, ErrWebhookSignatureInvalid
		}
		return nil, ErrWebhookPayloadInvalid
	}
	outcome := &WebhookOutcome{
		Processor: constants.ProcessorKindCard,
		EventID:   event.EventID,
		Topic:     event.EventType,
	}
	log = log.With("event_id", event.EventID, "topic", event.EventType, "session_ref", event.SessionID)

	record := &models.ProcessorEvent{
		Processor:   constants.ProcessorKindCard,
		EventID:     event.EventID,
		Topic:       event.EventType,
		ResourceRef: event.SessionID,
		Payload:     models.JSON(event.Raw),
	}
	err = s.process(ctx, record, outcome, func(tx *gorm.DB) error {
		if event.Status != card.StatusPaid && event.Status != card.StatusFailed {
			outcome.Ignored = true
			return nil
		}
		return s.settleCheckout(tx, event, outcome)
	})
	if err != nil {
		log.Warnw("webhook_process_failed", "error", err)
		return nil, err
	}
	log.Infow("webhook_processed",
		"payment_id", outcome.PaymentID,
		"duplicate", outcome.Duplicate,
		"ignored", outcome.Ignored,
	)
	return outcome, nil
}

// process 去重后在事务内应用事件；失败时释放去重标记以便处理方重投
func (s *TransferWebhookService) process(ctx context.Context, record *models.ProcessorEvent, outcome *WebhookOutcome, apply func(tx *gorm.DB) error) error {
	key := fmt.Sprintf("webhook:%s:%s", record.Processor, record.EventID)
	claimed := false
	if s.deduper != nil {
		ok, err := s.deduper.Claim(ctx, key, s.dedupeTTL)
		if err != nil {
			serviceLogger("event_id", record.EventID).Warnw("webhook_dedupe_claim_failed", "error", err)
		} else if !ok {
			outcome.Duplicate = true
			metrics.Payments().ObserveWebhook(record.Processor, record.Topic, metrics.OutcomeDuplicate)
			return nil
		} else {
			claimed = true
		}
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		inserted, err := s.eventRepo.WithTx(tx).Record(record)
		if err != nil {
			return err
		}
		if !inserted {
			return errDuplicateEvent
		}
		return apply(tx)
	})
	if errors.Is(err, errDuplicateEvent) {
		outcome.Duplicate = true
		metrics.Payments().ObserveWebhook(record.Processor, record.Topic, metrics.OutcomeDuplicate)
		return nil
	}
	if err != nil {
		if claimed {
			if releaseErr := s.deduper.Release(ctx, key); releaseErr != nil {
				serviceLogger("event_id", record.EventID).Warnw("webhook_dedupe_release_failed", "error", releaseErr)
			}
		}
		metrics.Payments().ObserveWebhook(record.Processor, record.Topic, metrics.OutcomeFailed)
		if ErrorKind(err) == ErrorKindUnknown {
			return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		}
		return err
	}
	result := metrics.OutcomeSuccess
	if outcome.Ignored {
		result = metrics.OutcomeIgnored
	}
	metrics.Payments().ObserveWebhook(record.Processor, record.Topic, result)
	return nil
}

// settleTransfer 按外部引用（回退到幂等键）定位转账，推进转账与支付终态
func (s *TransferWebhookService) settleTransfer(tx *gorm.DB, event *banktransfer.WebhookResult, outcome *WebhookOutcome, transferStatus string) error {
	repo := s.transferRepo.WithTx(tx)
	transfer, err := repo.GetByExternalRef(event.ResourceRef)
	if err != nil {
		return err
	}
	if transfer == nil && strings.TrimSpace(event.CorrelationID) != "" {
		transfer, err = repo.GetByCorrelationID(event.CorrelationID)
		if err != nil {
			return err
		}
	}
	if transfer == nil {
		return ErrTransferNotFound
	}
	outcome.PaymentID = transfer.PaymentID

	now := s.now()
	updates := map[string]interface{}{
		"callback_at": now,
		"updated_at":  now,
	}
	if transferStatus != constants.TransferStatusProcessed {
		updates["failure_reason"] = event.FailureReason
	}
	if _, err := repo.Transition(transfer.ID, []string{constants.TransferStatusPending}, transferStatus, updates); err != nil {
		return err
	}

	ledger := s.ledger.WithTx(tx)
	if transferStatus == constants.TransferStatusProcessed {
		return ledger.MarkPaid(transfer.PaymentID, SourceStatusCallback, now)
	}
	reason := strings.TrimSpace(event.FailureReason)
	if reason == "" {
		reason = transferStatus
	}
	return ledger.MarkFailed(transfer.PaymentID, SourceStatusCallback, reason)
}

// verifyFundingSource 处理方确认资金来源已验证
func (s *TransferWebhookService) verifyFundingSource(tx *gorm.DB, externalRef string, outcome *WebhookOutcome) error {
	source, err := s.fundingRepo.WithTx(tx).GetByExternalRef(externalRef)
	if err != nil {
		return err
	}
	if source == nil {
		outcome.Ignored = true
		return nil
	}
	if source.Verified {
		return nil
	}
	owner, err := s.ownerInTx(tx, source.PartyID)
	if err != nil {
		return err
	}
	return s.funding.markVerified(tx, source, owner)
}

func (s *TransferWebhookService) ownerInTx(tx *gorm.DB, partyID uint) (*models.Party, error) {
	var party models.Party
	if err := tx.First(&party, partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &party, nil
}

// settleCheckout 推进卡支付会话与支付终态
func (s *TransferWebhookService) settleCheckout(tx *gorm.DB, event *card.WebhookResult, outcome *WebhookOutcome) error {
	repo := s.checkoutRepo.WithTx(tx)
	checkout, err := repo.GetBySessionRef(event.SessionID)
	if err != nil {
		return err
	}
	if checkout == nil && strings.TrimSpace(event.CorrelationID) != "" {
		checkout, err = repo.GetByCorrelationID(event.CorrelationID)
		if err != nil {
			return err
		}
	}
	if checkout == nil {
		return ErrTransferNotFound
	}
	outcome.PaymentID = checkout.PaymentID

	ledger := s.ledger.WithTx(tx)
	if event.Status == card.StatusPaid {
		checkout.Status = constants.CardCheckoutStatusCompleted
		if err := repo.Update(checkout); err != nil {
			return err
		}
		return ledger.MarkPaid(checkout.PaymentID, SourceStatusCallback, s.now())
	}
	checkout.Status = constants.CardCheckoutStatusFailed
	if err := repo.Update(checkout); err != nil {
		return err
	}
	return ledger.MarkFailed(checkout.PaymentID, SourceStatusCallback, event.EventType)
}
