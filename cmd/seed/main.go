package main

import (
	"errors"
	"strings"
	"time"

	"github.com/rentflow/internal/config"
	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 开发环境的演示数据：一位房东、一位租客、一位管理员，以及可直接付租的租约
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if !cfg.Seed.Enabled {
		stdLog.Fatalf("seed.enabled is false, refusing to write demo data")
	}
	password := strings.TrimSpace(cfg.Seed.Password)
	if len(password) < 8 {
		stdLog.Fatalf("seed.password must be at least 8 characters")
	}

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash seed password: %v", err)
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		landlord, err := ensureParty(tx, "landlord@rentflow.local", "Demo Landlord", constants.PartyRoleLandlord, string(hash))
		if err != nil {
			return err
		}
		tenant, err := ensureParty(tx, "tenant@rentflow.local", "Demo Tenant", constants.PartyRoleTenant, string(hash))
		if err != nil {
			return err
		}
		if _, err := ensureParty(tx, "admin@rentflow.local", "Demo Admin", constants.PartyRoleAdmin, string(hash)); err != nil {
			return err
		}

		property := models.Property{LandlordID: landlord.ID, Name: "Maple Court", Address: "100 Maple Ct, Springfield"}
		if err := tx.Where("landlord_id = ? AND name = ?", landlord.ID, property.Name).FirstOrCreate(&property).Error; err != nil {
			return err
		}
		unit := models.Unit{PropertyID: property.ID, Label: "2B"}
		if err := tx.Where("property_id = ? AND label = ?", property.ID, unit.Label).FirstOrCreate(&unit).Error; err != nil {
			return err
		}
		lease := models.Lease{
			UnitID:     unit.ID,
			TenantID:   tenant.ID,
			RentAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(1450)),
			Status:     constants.LeaseStatusActive,
			StartsAt:   time.Now().AddDate(0, -1, 0),
		}
		if err := tx.Where("unit_id = ? AND tenant_id = ?", unit.ID, tenant.ID).FirstOrCreate(&lease).Error; err != nil {
			return err
		}

		for _, party := range []*models.Party{landlord, tenant} {
			if err := ensureVerifiedFundingSource(tx, party); err != nil {
				return err
			}
		}

		processor := models.ProcessorConfig{
			LandlordID:  landlord.ID,
			Kind:        constants.ProcessorKindBankTransfer,
			ExternalRef: "sandbox-customer-landlord",
			IsPrimary:   models.BoolPtr(true),
			Status:      constants.ProcessorStatusActive,
			Verified:    true,
		}
		return tx.Where("landlord_id = ? AND kind = ?", landlord.ID, processor.Kind).FirstOrCreate(&processor).Error
	})
	if err != nil {
		stdLog.Fatalf("Failed to seed demo data: %v", err)
	}
	stdLog.Printf("Seeded demo parties: landlord@rentflow.local, tenant@rentflow.local, admin@rentflow.local")
}

func ensureParty(tx *gorm.DB, email, name, role, passwordHash string) (*models.Party, error) {
	var party models.Party
	err := tx.Where("email = ?", email).First(&party).Error
	if err == nil {
		return &party, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	party = models.Party{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  name,
		Role:         role,
		Status:       constants.PartyStatusActive,
	}
	if err := tx.Create(&party).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func ensureVerifiedFundingSource(tx *gorm.DB, party *models.Party) error {
	customerRef := "sandbox-customer-" + party.Role
	identity := models.PayerIdentity{
		PartyID:             party.ID,
		Processor:           constants.ProcessorKindBankTransfer,
		ExternalCustomerRef: customerRef,
	}
	if err := tx.Where("party_id = ? AND processor = ?", party.ID, identity.Processor).FirstOrCreate(&identity).Error; err != nil {
		return err
	}
	now := time.Now()
	source := models.FundingSource{
		PartyID:     party.ID,
		Processor:   constants.ProcessorKindBankTransfer,
		ExternalRef: "sandbox-funding-" + party.Role,
		Name:        party.DisplayName + " checking",
		AccountType: constants.BankAccountTypeChecking,
		Last4:       "6789",
		Verified:    true,
		IsDefault:   true,
		Status:      constants.FundingSourceStatusActive,
		VerifiedAt:  &now,
	}
	return tx.Where("external_ref = ?", source.ExternalRef).FirstOrCreate(&source).Error
}
