package service

import (
	"context"
	"testing"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"
)

func TestResolveFromConfigs(t *testing.T) {
	active := constants.ProcessorStatusActive
	disabled := constants.ProcessorStatusDisabled
	cases := []struct {
		name      string
		configs   []models.ProcessorConfig
		available []string
		def       string
	}{
		{
			name:      "bank transfer only",
			configs:   []models.ProcessorConfig{{Kind: constants.ProcessorKindBankTransfer, Status: active}},
			available: []string{constants.ProcessorKindBankTransfer},
			def:       constants.ProcessorKindBankTransfer,
		},
		{
			name: "both active card primary",
			configs: []models.ProcessorConfig{
				{Kind: constants.ProcessorKindBankTransfer, Status: active, IsPrimary: models.BoolPtr(false)},
				{Kind: constants.ProcessorKindCard, Status: active, IsPrimary: models.BoolPtr(true)},
			},
			available: []string{constants.ProcessorKindBankTransfer, constants.ProcessorKindCard},
			def:       constants.ProcessorKindCard,
		},
		{
			name: "both active no primary prefers bank transfer",
			configs: []models.ProcessorConfig{
				{Kind: constants.ProcessorKindCard, Status: active},
				{Kind: constants.ProcessorKindBankTransfer, Status: active},
			},
			available: []string{constants.ProcessorKindBankTransfer, constants.ProcessorKindCard},
			def:       constants.ProcessorKindBankTransfer,
		},
		{
			name: "primary inactive falls back",
			configs: []models.ProcessorConfig{
				{Kind: constants.ProcessorKindBankTransfer, Status: active},
				{Kind: constants.ProcessorKindCard, Status: disabled, IsPrimary: models.BoolPtr(true)},
			},
			available: []string{constants.ProcessorKindBankTransfer},
			def:       constants.ProcessorKindBankTransfer,
		},
		{
			name: "two primaries pick bank transfer regardless of row order",
			configs: []models.ProcessorConfig{
				{Kind: constants.ProcessorKindCard, Status: active, IsPrimary: models.BoolPtr(true)},
				{Kind: constants.ProcessorKindBankTransfer, Status: active, IsPrimary: models.BoolPtr(true)},
			},
			available: []string{constants.ProcessorKindBankTransfer, constants.ProcessorKindCard},
			def:       constants.ProcessorKindBankTransfer,
		},
		{
			name: "two primaries reversed rows",
			configs: []models.ProcessorConfig{
				{Kind: constants.ProcessorKindBankTransfer, Status: active, IsPrimary: models.BoolPtr(true)},
				{Kind: constants.ProcessorKindCard, Status: active, IsPrimary: models.BoolPtr(true)},
			},
			available: []string{constants.ProcessorKindBankTransfer, constants.ProcessorKindCard},
			def:       constants.ProcessorKindBankTransfer,
		},
		{
			name:      "card only",
			configs:   []models.ProcessorConfig{{Kind: constants.ProcessorKindCard, Status: active}},
			available: []string{constants.ProcessorKindCard},
			def:       constants.ProcessorKindCard,
		},
		{
			name: "neither active",
			configs: []models.ProcessorConfig{
				{Kind: constants.ProcessorKindBankTransfer, Status: constants.ProcessorStatusPending},
				{Kind: constants.ProcessorKindCard, Status: disabled},
			},
			available: []string{},
			def:       "",
		},
		{
			name:      "no configs",
			configs:   nil,
			available: []string{},
			def:       "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveFromConfigs(tc.configs)
			if got.Default != tc.def {
				t.Fatalf("default want %q got %q", tc.def, got.Default)
			}
			if len(got.Available) != len(tc.available) {
				t.Fatalf("available want %v got %v", tc.available, got.Available)
			}
			for i := range tc.available {
				if got.Available[i] != tc.available[i] {
					t.Fatalf("available want %v got %v", tc.available, got.Available)
				}
			}
			if got.Available == nil {
				t.Fatalf("available should be an empty set, not nil")
			}
		})
	}
}

func TestResolveProcessorsWithoutActiveLeaseIsEmpty(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	tenant := f.createParty(t, "drifter@example.com", constants.PartyRoleTenant)

	got, err := f.resolver.ResolveProcessors(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("resolve should not fail: %v", err)
	}
	if !got.IsEmpty() || got.Default != "" || got.LandlordID != 0 {
		t.Fatalf("expected empty resolution, got %+v", got)
	}
}

func TestResolveProcessorsFollowsLandlordConfigs(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	f.seedLease(t)
	ctx := context.Background()

	got, err := f.resolver.ResolveProcessors(ctx, f.tenant.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !got.IsEmpty() || got.LandlordID != f.landlord.ID {
		t.Fatalf("expected empty set for landlord %d, got %+v", f.landlord.ID, got)
	}

	f.activate(t, f.landlord.ID, constants.ProcessorKindBankTransfer, false)
	got, err = f.resolver.ResolveProcessors(ctx, f.tenant.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Default != constants.ProcessorKindBankTransfer || len(got.Available) != 1 {
		t.Fatalf("expected bank transfer only, got %+v", got)
	}

	f.activate(t, f.landlord.ID, constants.ProcessorKindCard, true)
	got, err = f.resolver.ResolveProcessors(ctx, f.tenant.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Default != constants.ProcessorKindCard || !got.Has(constants.ProcessorKindBankTransfer) {
		t.Fatalf("expected card default with both available, got %+v", got)
	}

	if _, err := f.registry.Disable(f.landlord.ID, constants.ProcessorKindCard); err != nil {
		t.Fatalf("disable card failed: %v", err)
	}
	got, err = f.resolver.ResolveProcessors(ctx, f.tenant.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Default != constants.ProcessorKindBankTransfer || got.Has(constants.ProcessorKindCard) {
		t.Fatalf("disabled primary should fall back to bank transfer, got %+v", got)
	}
}
