package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupLedgerRepositoryTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.RentPayment{},
		&models.Transfer{},
		&models.FundingSource{},
		&models.PayerIdentity{},
		&models.ProcessorEvent{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func TestRentPaymentTransitionOnlyFromAllowedStatus(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewRentPaymentRepository(db)

	payment := &models.RentPayment{
		TenantID: 1,
		UnitID:   2,
		Amount:   models.NewMoneyFromDecimal(decimal.NewFromInt(1500)),
		Status:   constants.RentPaymentStatusPending,
		Method:   constants.ProcessorKindBankTransfer,
	}
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	ok, err := repo.Transition(payment.ID, []string{constants.RentPaymentStatusPending}, constants.RentPaymentStatusProcessing, nil)
	if err != nil || !ok {
		t.Fatalf("pending -> processing should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = repo.Transition(payment.ID, []string{constants.RentPaymentStatusPending}, constants.RentPaymentStatusVoid, nil)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if ok {
		t.Fatalf("processing payment should not be voided")
	}

	reloaded, err := repo.GetByID(payment.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.RentPaymentStatusProcessing {
		t.Fatalf("status want processing got %s", reloaded.Status)
	}
}

func TestRentPaymentListStalePending(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewRentPaymentRepository(db)
	old := time.Now().Add(-2 * time.Hour)

	rows := []models.RentPayment{
		{TenantID: 1, UnitID: 1, Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)), Status: constants.RentPaymentStatusPending, Method: constants.ProcessorKindBankTransfer, CreatedAt: old},
		{TenantID: 1, UnitID: 1, Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)), Status: constants.RentPaymentStatusPending, Method: constants.ProcessorKindCard, CreatedAt: old},
		{TenantID: 1, UnitID: 1, Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)), Status: constants.RentPaymentStatusProcessing, Method: constants.ProcessorKindBankTransfer, CreatedAt: old},
		{TenantID: 1, UnitID: 1, Amount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)), Status: constants.RentPaymentStatusPending, Method: constants.ProcessorKindBankTransfer},
	}
	for i := range rows {
		if err := repo.Create(&rows[i]); err != nil {
			t.Fatalf("create payment failed: %v", err)
		}
	}

	stale, err := repo.ListStalePending(StalePendingFilter{
		Method:        constants.ProcessorKindBankTransfer,
		CreatedBefore: time.Now().Add(-time.Hour),
		Limit:         10,
	})
	if err != nil {
		t.Fatalf("list stale pending failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != rows[0].ID {
		t.Fatalf("expected only the old bank transfer intent, got %+v", stale)
	}
}

func TestFundingSourceVerifiedLookupPrefersDefault(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewFundingSourceRepository(db)

	sources := []models.FundingSource{
		{PartyID: 7, Processor: constants.ProcessorKindBankTransfer, ExternalRef: "fs-a", Name: "A", AccountType: constants.BankAccountTypeChecking, Last4: "1111", Verified: true, Status: constants.FundingSourceStatusActive},
		{PartyID: 7, Processor: constants.ProcessorKindBankTransfer, ExternalRef: "fs-b", Name: "B", AccountType: constants.BankAccountTypeChecking, Last4: "2222", Verified: true, Status: constants.FundingSourceStatusActive},
		{PartyID: 7, Processor: constants.ProcessorKindBankTransfer, ExternalRef: "fs-c", Name: "C", AccountType: constants.BankAccountTypeSavings, Last4: "3333", Verified: false, Status: constants.FundingSourceStatusActive},
	}
	for i := range sources {
		if err := repo.Create(&sources[i]); err != nil {
			t.Fatalf("create source failed: %v", err)
		}
	}
	if err := repo.SetDefault(7, constants.ProcessorKindBankTransfer, sources[0].ID); err != nil {
		t.Fatalf("set default failed: %v", err)
	}

	got, err := repo.GetVerifiedForParty(7, constants.ProcessorKindBankTransfer)
	if err != nil || got == nil {
		t.Fatalf("lookup verified failed: %v", err)
	}
	if got.ID != sources[0].ID {
		t.Fatalf("expected default source %d, got %d", sources[0].ID, got.ID)
	}

	changed, err := repo.MarkVerified(sources[2].ID, time.Now())
	if err != nil || !changed {
		t.Fatalf("mark verified should change row, changed=%v err=%v", changed, err)
	}
	changed, err = repo.MarkVerified(sources[2].ID, time.Now())
	if err != nil || changed {
		t.Fatalf("second mark verified should be a no-op, changed=%v err=%v", changed, err)
	}
}

func TestProcessorEventRecordDedupes(t *testing.T) {
	db := setupLedgerRepositoryTest(t)
	repo := NewProcessorEventRepository(db)

	created, err := repo.Record(&models.ProcessorEvent{Processor: constants.ProcessorKindBankTransfer, EventID: "evt-1", Topic: constants.ProcessorEventTransferCompleted})
	if err != nil || !created {
		t.Fatalf("first record should be created, created=%v err=%v", created, err)
	}
	created, err = repo.Record(&models.ProcessorEvent{Processor: constants.ProcessorKindBankTransfer, EventID: "evt-1", Topic: constants.ProcessorEventTransferCompleted})
	if err != nil {
		t.Fatalf("duplicate record should not error: %v", err)
	}
	if created {
		t.Fatalf("duplicate event should not be recorded twice")
	}
}
