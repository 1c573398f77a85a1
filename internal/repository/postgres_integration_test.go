//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.Transfer{},
		&models.RentPayment{},
		&models.ProcessorEvent{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresTransferCorrelationIDUnique(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewTransferRepository(db)
	amount := models.NewMoneyFromDecimal(decimal.NewFromInt(1200))

	first := &models.Transfer{
		PaymentID:     1,
		Amount:        amount,
		NetAmount:     amount,
		CorrelationID: "pg-correlation-1",
		Status:        constants.TransferStatusPending,
	}
	if err := repo.Create(first); err != nil {
		t.Fatalf("create transfer failed: %v", err)
	}
	dup := &models.Transfer{
		PaymentID:     1,
		Amount:        amount,
		NetAmount:     amount,
		CorrelationID: "pg-correlation-1",
		Status:        constants.TransferStatusPending,
	}
	err := repo.Create(dup)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestPostgresRentPaymentLockedTransition(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewRentPaymentRepository(db)
	payment := &models.RentPayment{
		TenantID: 1,
		UnitID:   1,
		Amount:   models.NewMoneyFromDecimal(decimal.NewFromInt(900)),
		Status:   constants.RentPaymentStatusPending,
		Method:   constants.ProcessorKindBankTransfer,
	}
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		locked, err := txRepo.GetByIDForUpdate(payment.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			t.Fatalf("locked payment should exist")
		}
		_, err = txRepo.Transition(payment.ID, []string{constants.RentPaymentStatusPending}, constants.RentPaymentStatusProcessing, map[string]interface{}{
			"updated_at": time.Now(),
		})
		return err
	})
	if err != nil {
		t.Fatalf("locked transition failed: %v", err)
	}
	reloaded, err := repo.GetByID(payment.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.RentPaymentStatusProcessing {
		t.Fatalf("status want processing got %s", reloaded.Status)
	}
}
