package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/metrics"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/payment/card"
	"github.com/rentflow/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardCheckoutInput 卡支付会话输入
type CardCheckoutInput struct {
	TenantID uint
	UnitID   uint
	Amount   models.Money
	DueDate  *time.Time
}

// CardCheckoutResult 卡支付会话结果
type CardCheckoutResult struct {
	Payment  *models.RentPayment `json:"payment"`
	Checkout *models.CardCheckout `json:"checkout"`
}

// CardCheckoutService 卡支付跳转流程
type CardCheckoutService struct {
	resolver     *ProcessorResolver
	propertyRepo repository.PropertyRepository
	paymentRepo  repository.RentPaymentRepository
	checkoutRepo repository.CardCheckoutRepository
	ledger       *PaymentLedger
	gateway      CardGateway
	currency     string
}

// NewCardCheckoutService 创建卡支付服务
func NewCardCheckoutService(resolver *ProcessorResolver, propertyRepo repository.PropertyRepository, paymentRepo repository.RentPaymentRepository, checkoutRepo repository.CardCheckoutRepository, ledger *PaymentLedger, gateway CardGateway, currency string) *CardCheckoutService {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return &CardCheckoutService{
		resolver:     resolver,
		propertyRepo: propertyRepo,
		paymentRepo:  paymentRepo,
		checkoutRepo: checkoutRepo,
		ledger:       ledger,
		gateway:      gateway,
		currency:     currency,
	}
}

// CreateCardCheckout 创建卡支付会话并返回跳转链接
func (s *CardCheckoutService) CreateCardCheckout(ctx context.Context, input CardCheckoutInput) (*CardCheckoutResult, error) {
	log := requestLogger(ctx, "party_id", input.TenantID, "processor", constants.ProcessorKindCard, "unit_id", input.UnitID)

	lease, err := s.propertyRepo.GetActiveLeaseByTenantUnit(input.TenantID, input.UnitID)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	if lease == nil {
		return nil, ErrUnitNotLeased
	}
	resolution, err := s.resolver.ResolveProcessors(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}
	if !resolution.Has(constants.ProcessorKindCard) || s.gateway == nil {
		return nil, ErrProcessorUnavailable
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, ErrAmountInvalid
	}

	payment := &models.RentPayment{
		TenantID: input.TenantID,
		UnitID:   input.UnitID,
		Amount:   input.Amount,
		DueDate:  input.DueDate,
		Status:   constants.RentPaymentStatusPending,
		Method:   constants.ProcessorKindCard,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		log.Errorw("rent_payment_create_failed", "error", err)
		return nil, ErrPersistenceFailed
	}
	correlationID := PaymentCorrelationID(payment.ID)
	log = log.With("payment_id", payment.ID, "correlation_id", correlationID, "landlord_id", resolution.LandlordID)

	started := time.Now()
	session, err := s.gateway.CreateCheckout(ctx, card.CheckoutInput{
		PaymentID:      payment.ID,
		CorrelationID:  correlationID,
		Amount:         input.Amount.String(),
		Currency:       s.currency,
		Description:    fmt.Sprintf("Rent payment #%d", payment.ID),
		IdempotencyKey: correlationID,
	})
	metrics.Payments().ObserveProcessorLatency(constants.ProcessorKindCard, "create_checkout", time.Since(started).Seconds())
	if err != nil {
		log.Errorw("card_checkout_provider_failed", "error", err)
		metrics.Payments().ObserveTransfer(constants.ProcessorKindCard, metrics.OutcomeFailed)
		if voidErr := s.ledger.Void(payment.ID, SourceOrchestrator, "checkout_create_failed"); voidErr != nil {
			log.Errorw("rent_payment_compensation_failed", "error", voidErr)
		} else {
			metrics.Payments().ObserveCompensation()
		}
		return nil, ErrPaymentInitiationFailed
	}

	checkout := &models.CardCheckout{
		PaymentID:     payment.ID,
		SessionRef:    session.SessionID,
		RedirectURL:   session.URL,
		CorrelationID: correlationID,
		Status:        constants.CardCheckoutStatusOpen,
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.checkoutRepo.WithTx(tx).Create(checkout); err != nil {
			return err
		}
		return s.ledger.WithTx(tx).MarkProcessing(payment.ID, SourceOrchestrator)
	})
	if err != nil {
		log.Errorw("card_checkout_persist_after_accept_failed", "session_ref", session.SessionID, "error", err)
		return nil, ErrPersistenceFailed
	}
	metrics.Payments().ObserveTransfer(constants.ProcessorKindCard, metrics.OutcomeSuccess)
	log.Infow("card_checkout_created", "session_ref", session.SessionID)
	payment.Status = constants.RentPaymentStatusProcessing
	return &CardCheckoutResult{Payment: payment, Checkout: checkout}, nil
}
