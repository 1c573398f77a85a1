package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rentflow/internal/config"
	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/payment/banktransfer"
	"github.com/rentflow/internal/payment/card"
	"github.com/rentflow/internal/queue"
	"github.com/rentflow/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_rentflow_test"

type fakeBankGateway struct {
	mu sync.Mutex

	customerCalls int
	fundingCalls  int
	microCalls    int
	verifyCalls   int
	transferCalls int

	transferKeys     []string
	lastFundingInput banktransfer.FundingSourceInput

	customerErr error
	fundingErr  error
	microErr    error
	verifyErr   error
	transferErr error
}

func (g *fakeBankGateway) CreateCustomer(_ context.Context, input banktransfer.CustomerInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerCalls++
	if g.customerErr != nil {
		return "", g.customerErr
	}
	return fmt.Sprintf("cus-%d", input.PartyID), nil
}

func (g *fakeBankGateway) CreateFundingSource(_ context.Context, input banktransfer.FundingSourceInput) (*banktransfer.FundingSourceResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fundingCalls++
	g.lastFundingInput = input
	if g.fundingErr != nil {
		return nil, g.fundingErr
	}
	return &banktransfer.FundingSourceResult{
		FundingSourceRef: fmt.Sprintf("fs-%s-%d", input.CustomerRef, g.fundingCalls),
		Status:           "unverified",
		BankName:         "Test Bank",
	}, nil
}

func (g *fakeBankGateway) InitiateMicroDeposits(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.microCalls++
	return g.microErr
}

func (g *fakeBankGateway) VerifyMicroDeposits(_ context.Context, _ string, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	return g.verifyErr
}

// CreateTransfer 相同幂等键返回相同转账引用
func (g *fakeBankGateway) CreateTransfer(_ context.Context, input banktransfer.TransferInput) (*banktransfer.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferCalls++
	g.transferKeys = append(g.transferKeys, input.IdempotencyKey)
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	return &banktransfer.TransferResult{
		TransferRef: "tr-" + input.IdempotencyKey,
		Status:      "pending",
	}, nil
}

type fakeCardGateway struct {
	calls int
	err   error
}

func (g *fakeCardGateway) CreateCheckout(_ context.Context, input card.CheckoutInput) (*card.CheckoutResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &card.CheckoutResult{
		SessionID: "cs_" + input.CorrelationID,
		URL:       "https://checkout.test/" + input.CorrelationID,
		Status:    "open",
	}, nil
}

type fakeDispatcher struct {
	enabled      bool
	microErr     error
	redriveErr   error
	microPayload []queue.MicroDepositPayload
	redrives     []queue.PaymentRedrivePayload
}

func (d *fakeDispatcher) Enabled() bool { return d.enabled }

func (d *fakeDispatcher) EnqueueMicroDeposit(payload queue.MicroDepositPayload, _ ...asynq.Option) error {
	if d.microErr != nil {
		return d.microErr
	}
	d.microPayload = append(d.microPayload, payload)
	return nil
}

func (d *fakeDispatcher) EnqueuePaymentRedrive(payload queue.PaymentRedrivePayload, _ time.Duration) error {
	if d.redriveErr != nil {
		return d.redriveErr
	}
	d.redrives = append(d.redrives, payload)
	return nil
}

type memoryDeduper struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (d *memoryDeduper) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys == nil {
		d.keys = map[string]bool{}
	}
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *memoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type rentflowFixture struct {
	db         *gorm.DB
	gateway    *fakeBankGateway
	cards      *fakeCardGateway
	dispatcher *fakeDispatcher
	deduper    *memoryDeduper

	partyRepo    *repository.GormPartyRepository
	propertyRepo *repository.GormPropertyRepository
	configRepo   *repository.GormProcessorConfigRepository
	fundingRepo  *repository.GormFundingSourceRepository
	paymentRepo  *repository.GormRentPaymentRepository
	transferRepo *repository.GormTransferRepository

	registry  *ProcessorRegistryService
	resolver  *ProcessorResolver
	funding   *FundingSourceService
	ledger    *PaymentLedger
	transfers *TransferService
	checkouts *CardCheckoutService
	webhooks  *TransferWebhookService
	reconcile *ReconcileService
	auth      *PartyAuthService

	landlord *models.Party
	tenant   *models.Party
	unit     *models.Unit
}

func setupRentflowServiceTest(t *testing.T, sandbox bool) *rentflowFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:rentflow_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Party{},
		&models.Property{},
		&models.Unit{},
		&models.Lease{},
		&models.ProcessorConfig{},
		&models.PayerIdentity{},
		&models.FundingSource{},
		&models.RentPayment{},
		&models.Transfer{},
		&models.CardCheckout{},
		&models.ProcessorEvent{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	f := &rentflowFixture{
		db:           db,
		gateway:      &fakeBankGateway{},
		cards:        &fakeCardGateway{},
		dispatcher:   &fakeDispatcher{enabled: true},
		deduper:      &memoryDeduper{},
		partyRepo:    repository.NewPartyRepository(db),
		propertyRepo: repository.NewPropertyRepository(db),
		configRepo:   repository.NewProcessorConfigRepository(db),
		fundingRepo:  repository.NewFundingSourceRepository(db),
		paymentRepo:  repository.NewRentPaymentRepository(db),
		transferRepo: repository.NewTransferRepository(db),
	}
	fee, err := NewFeePolicy("0.25")
	if err != nil {
		t.Fatalf("fee policy failed: %v", err)
	}
	f.registry = NewProcessorRegistryService(f.configRepo)
	f.resolver = NewProcessorResolver(f.propertyRepo, f.configRepo)
	f.funding = NewFundingSourceService(f.partyRepo, f.fundingRepo, f.registry, f.gateway, f.dispatcher, sandbox)
	f.ledger = NewPaymentLedger(f.paymentRepo)
	f.transfers = NewTransferService(TransferServiceOptions{
		PaymentRepo:  f.paymentRepo,
		TransferRepo: f.transferRepo,
		FundingRepo:  f.fundingRepo,
		PropertyRepo: f.propertyRepo,
		ConfigRepo:   f.configRepo,
		Ledger:       f.ledger,
		Gateway:      f.gateway,
		Fee:          fee,
		Currency:     "USD",
	})
	checkoutRepo := repository.NewCardCheckoutRepository(db)
	f.checkouts = NewCardCheckoutService(f.resolver, f.propertyRepo, f.paymentRepo, checkoutRepo, f.ledger, f.cards, "USD")
	f.webhooks = NewTransferWebhookService(TransferWebhookServiceOptions{
		TransferRepo: f.transferRepo,
		FundingRepo:  f.fundingRepo,
		CheckoutRepo: checkoutRepo,
		EventRepo:    repository.NewProcessorEventRepository(db),
		Ledger:       f.ledger,
		Funding:      f.funding,
		Deduper:      f.deduper,
		BankConfig:   &banktransfer.Config{WebhookSecret: testWebhookSecret},
		CardConfig:   &card.Config{WebhookSecret: testWebhookSecret},
	})
	f.reconcile = NewReconcileService(ReconcileServiceOptions{
		PaymentRepo: f.paymentRepo,
		Transfers:   f.transfers,
		Ledger:      f.ledger,
		Grace:       2 * time.Minute,
		MaxAge:      24 * time.Hour,
		BatchSize:   10,
	})
	f.auth = NewPartyAuthService(&config.Config{UserJWT: config.JWTConfig{SecretKey: "test-secret", ExpireHours: 1}}, f.partyRepo)
	return f
}

// seedLease 房东、租客、房产、单元与有效租约
func (f *rentflowFixture) seedLease(t *testing.T) {
	t.Helper()
	f.landlord = f.createParty(t, "landlord@example.com", constants.PartyRoleLandlord)
	f.tenant = f.createParty(t, "tenant@example.com", constants.PartyRoleTenant)
	property := &models.Property{LandlordID: f.landlord.ID, Name: "Maple Court", Address: "1 Maple St"}
	if err := f.propertyRepo.CreateProperty(property); err != nil {
		t.Fatalf("create property failed: %v", err)
	}
	f.unit = &models.Unit{PropertyID: property.ID, Label: "2B"}
	if err := f.propertyRepo.CreateUnit(f.unit); err != nil {
		t.Fatalf("create unit failed: %v", err)
	}
	lease := &models.Lease{
		UnitID:     f.unit.ID,
		TenantID:   f.tenant.ID,
		RentAmount: mustMoney(t, "1500.00"),
		Status:     constants.LeaseStatusActive,
		StartsAt:   time.Now().AddDate(0, -1, 0),
	}
	if err := f.propertyRepo.CreateLease(lease); err != nil {
		t.Fatalf("create lease failed: %v", err)
	}
}

// seedReady 双方已验证账户且银行转账已启用
func (f *rentflowFixture) seedReady(t *testing.T) {
	t.Helper()
	f.seedLease(t)
	f.addFundingSource(t, f.tenant.ID, true, true)
	f.addFundingSource(t, f.landlord.ID, true, true)
	f.activate(t, f.landlord.ID, constants.ProcessorKindBankTransfer, false)
}

func (f *rentflowFixture) createParty(t *testing.T, email, role string) *models.Party {
	t.Helper()
	party := &models.Party{
		Email:       email,
		DisplayName: role,
		Role:        role,
		Status:      constants.PartyStatusActive,
	}
	if err := f.partyRepo.Create(party); err != nil {
		t.Fatalf("create party failed: %v", err)
	}
	return party
}

func (f *rentflowFixture) addFundingSource(t *testing.T, partyID uint, verified, isDefault bool) *models.FundingSource {
	t.Helper()
	source := &models.FundingSource{
		PartyID:     partyID,
		Processor:   constants.ProcessorKindBankTransfer,
		ExternalRef: fmt.Sprintf("fs-seed-%d-%d", partyID, time.Now().UnixNano()),
		Name:        "Seed checking",
		AccountType: constants.BankAccountTypeChecking,
		Last4:       "6789",
		Verified:    verified,
		IsDefault:   isDefault,
		Status:      constants.FundingSourceStatusActive,
	}
	if err := f.fundingRepo.Create(source); err != nil {
		t.Fatalf("create funding source failed: %v", err)
	}
	return source
}

func (f *rentflowFixture) activate(t *testing.T, landlordID uint, kind string, primary bool) {
	t.Helper()
	if _, err := f.registry.UpsertConfig(landlordID, kind, UpsertProcessorConfigInput{Activate: true, Verified: true}); err != nil {
		t.Fatalf("activate %s failed: %v", kind, err)
	}
	if primary {
		if _, err := f.registry.SetPrimary(landlordID, kind); err != nil {
			t.Fatalf("set primary %s failed: %v", kind, err)
		}
	}
}

func (f *rentflowFixture) countLedgerRows(t *testing.T) (int64, int64) {
	t.Helper()
	payments, err := f.paymentRepo.Count()
	if err != nil {
		t.Fatalf("count payments failed: %v", err)
	}
	transfers, err := f.transferRepo.Count()
	if err != nil {
		t.Fatalf("count transfers failed: %v", err)
	}
	return payments, transfers
}

func mustMoney(t *testing.T, raw string) models.Money {
	t.Helper()
	amount, err := models.NewMoneyFromString(raw)
	if err != nil {
		t.Fatalf("parse money %q failed: %v", raw, err)
	}
	return amount
}

func moneyOf(value int64) models.Money {
	return models.NewMoneyFromDecimal(decimal.NewFromInt(value))
}
