package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/payment/banktransfer"
)

func TestLinkBankAccountRejectsMalformedRoutingNumberWithoutCallingOut(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	tenant := f.createParty(t, "routing@example.com", constants.PartyRoleTenant)

	for _, routing := range []string{"12345", "1234567890", "12345678a", ""} {
		_, err := f.funding.LinkBankAccount(context.Background(), LinkBankAccountInput{
			PartyID:       tenant.ID,
			RoutingNumber: routing,
			AccountNumber: "123456789",
			AccountType:   constants.BankAccountTypeChecking,
		})
		if !errors.Is(err, ErrRoutingNumberInvalid) {
			t.Fatalf("routing %q: expected ErrRoutingNumberInvalid, got %v", routing, err)
		}
		if ErrorKind(err) != ErrorKindValidation {
			t.Fatalf("routing %q: expected validation kind, got %s", routing, ErrorKind(err))
		}
	}
	if f.gateway.customerCalls != 0 || f.gateway.fundingCalls != 0 {
		t.Fatalf("validation failure must not call the processor: %+v", f.gateway)
	}
	sources, err := f.funding.ListFundingSources(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no funding source rows, got %d", len(sources))
	}
}

func TestLinkBankAccountForwardsValidRoutingNumber(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	tenant := f.createParty(t, "forward@example.com", constants.PartyRoleTenant)

	source, err := f.funding.LinkBankAccount(context.Background(), LinkBankAccountInput{
		PartyID:       tenant.ID,
		RoutingNumber: "222222226",
		AccountNumber: "000123456789",
		AccountType:   "Savings",
		HolderName:    "Terry Tenant",
	})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if f.gateway.lastFundingInput.RoutingNumber != "222222226" {
		t.Fatalf("routing number not forwarded: %+v", f.gateway.lastFundingInput)
	}
	if f.gateway.lastFundingInput.CustomerRef != fmt.Sprintf("cus-%d", tenant.ID) {
		t.Fatalf("unexpected customer ref: %s", f.gateway.lastFundingInput.CustomerRef)
	}
	if !source.Verified || source.VerifiedAt == nil {
		t.Fatalf("sandbox funding source should be verified instantly")
	}
	if !source.IsDefault || source.Last4 != "6789" || source.AccountType != constants.BankAccountTypeSavings {
		t.Fatalf("unexpected funding source: %+v", source)
	}
	if len(f.dispatcher.microPayload) != 0 {
		t.Fatalf("sandbox should not enqueue micro deposits")
	}
}

func TestLinkBankAccountProductionEnqueuesMicroDeposits(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	tenant := f.createParty(t, "prod@example.com", constants.PartyRoleTenant)

	source, err := f.funding.LinkBankAccount(context.Background(), LinkBankAccountInput{
		PartyID:       tenant.ID,
		RoutingNumber: "222222226",
		AccountNumber: "123456789",
	})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if source.Verified {
		t.Fatalf("production funding source should wait for micro deposits")
	}
	if len(f.dispatcher.microPayload) != 1 || f.dispatcher.microPayload[0].FundingSourceID != source.ID {
		t.Fatalf("expected micro deposit task for %d, got %+v", source.ID, f.dispatcher.microPayload)
	}

	if err := f.funding.InitiateMicroDeposits(context.Background(), source.ID); err != nil {
		t.Fatalf("initiate micro deposits failed: %v", err)
	}
	if f.gateway.microCalls != 1 {
		t.Fatalf("expected one micro deposit call, got %d", f.gateway.microCalls)
	}
}

func TestLinkBankAccountEnqueueFailureIsNotFatal(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	f.dispatcher.microErr = errors.New("redis down")
	tenant := f.createParty(t, "enqueue@example.com", constants.PartyRoleTenant)

	source, err := f.funding.LinkBankAccount(context.Background(), LinkBankAccountInput{
		PartyID:       tenant.ID,
		RoutingNumber: "222222226",
		AccountNumber: "123456789",
	})
	if err != nil {
		t.Fatalf("enqueue failure should be swallowed, got %v", err)
	}
	if source == nil || source.ID == 0 {
		t.Fatalf("funding source should be persisted")
	}
	if f.gateway.microCalls != 1 {
		t.Fatalf("enqueue failure should fall back to inline micro deposits, got %d calls", f.gateway.microCalls)
	}
}

func TestLinkBankAccountQueueDisabledInitiatesMicroDepositsInline(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	f.dispatcher.enabled = false
	tenant := f.createParty(t, "inline@example.com", constants.PartyRoleTenant)

	source, err := f.funding.LinkBankAccount(context.Background(), LinkBankAccountInput{
		PartyID:       tenant.ID,
		RoutingNumber: "222222226",
		AccountNumber: "123456789",
	})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if source.Verified {
		t.Fatalf("production funding source should wait for micro deposits")
	}
	if len(f.dispatcher.microPayload) != 0 {
		t.Fatalf("disabled queue must not receive tasks, got %+v", f.dispatcher.microPayload)
	}
	if f.gateway.microCalls != 1 {
		t.Fatalf("expected inline micro deposit call, got %d", f.gateway.microCalls)
	}
}

func TestLinkBankAccountInlineMicroDepositFailureIsNotFatal(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	f.dispatcher.enabled = false
	f.gateway.microErr = errors.New("request failed: 503")
	tenant := f.createParty(t, "inline-fail@example.com", constants.PartyRoleTenant)

	source, err := f.funding.LinkBankAccount(context.Background(), LinkBankAccountInput{
		PartyID:       tenant.ID,
		RoutingNumber: "222222226",
		AccountNumber: "123456789",
	})
	if err != nil {
		t.Fatalf("micro deposit failure should be swallowed, got %v", err)
	}
	if source == nil || source.ID == 0 || source.Verified {
		t.Fatalf("unverified funding source should be persisted: %+v", source)
	}
}

func TestRetryMicroDeposits(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	tenant := f.createParty(t, "retry@example.com", constants.PartyRoleTenant)
	other := f.createParty(t, "other@example.com", constants.PartyRoleTenant)
	pending := f.addFundingSource(t, tenant.ID, false, true)
	verified := f.addFundingSource(t, tenant.ID, true, false)
	ctx := context.Background()

	source, err := f.funding.RetryMicroDeposits(ctx, tenant.ID, pending.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if source.ID != pending.ID || f.gateway.microCalls != 1 {
		t.Fatalf("expected one micro deposit call for %d, got %d", pending.ID, f.gateway.microCalls)
	}

	if _, err := f.funding.RetryMicroDeposits(ctx, tenant.ID, verified.ID); err != nil {
		t.Fatalf("retry on verified source failed: %v", err)
	}
	if f.gateway.microCalls != 1 {
		t.Fatalf("verified source must not call the processor, got %d", f.gateway.microCalls)
	}

	if _, err := f.funding.RetryMicroDeposits(ctx, other.ID, pending.ID); !errors.Is(err, ErrFundingSourceNotFound) {
		t.Fatalf("expected ErrFundingSourceNotFound for another party, got %v", err)
	}

	f.gateway.microErr = errors.New("request failed: 503")
	if _, err := f.funding.RetryMicroDeposits(ctx, tenant.ID, pending.ID); !errors.Is(err, ErrProcessorRequestFailed) {
		t.Fatalf("expected ErrProcessorRequestFailed, got %v", err)
	}
}

func TestFundingSourceOperationsWithoutGateway(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	tenant := f.createParty(t, "nogateway@example.com", constants.PartyRoleTenant)
	if err := f.fundingRepo.CreateIdentity(&models.PayerIdentity{
		PartyID:             tenant.ID,
		Processor:           constants.ProcessorKindBankTransfer,
		ExternalCustomerRef: "cus-existing",
	}); err != nil {
		t.Fatalf("create identity failed: %v", err)
	}
	pending := f.addFundingSource(t, tenant.ID, false, true)
	svc := NewFundingSourceService(f.partyRepo, f.fundingRepo, f.registry, nil, f.dispatcher, true)
	ctx := context.Background()

	if _, err := svc.LinkBankAccount(ctx, LinkBankAccountInput{
		PartyID:       tenant.ID,
		RoutingNumber: "222222226",
		AccountNumber: "123456789",
	}); !errors.Is(err, ErrProcessorUnavailable) {
		t.Fatalf("link: expected ErrProcessorUnavailable, got %v", err)
	}
	if err := svc.InitiateMicroDeposits(ctx, pending.ID); !errors.Is(err, ErrProcessorUnavailable) {
		t.Fatalf("initiate: expected ErrProcessorUnavailable, got %v", err)
	}
	if _, err := svc.VerifyMicroDeposits(ctx, tenant.ID, pending.ID, "0.12", "0.34"); !errors.Is(err, ErrProcessorUnavailable) {
		t.Fatalf("verify: expected ErrProcessorUnavailable, got %v", err)
	}
	sources, err := svc.ListFundingSources(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("no funding source may be added without a gateway, got %d", len(sources))
	}
}

func TestLinkBankAccountProcessorRejectionPersistsNothing(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	f.gateway.fundingErr = &banktransfer.APIError{StatusCode: 400, Code: "ValidationError", Message: "invalid account"}
	tenant := f.createParty(t, "reject@example.com", constants.PartyRoleTenant)

	_, err := f.funding.LinkBankAccount(context.Background(), LinkBankAccountInput{
		PartyID:       tenant.ID,
		RoutingNumber: "222222226",
		AccountNumber: "123456789",
	})
	if !errors.Is(err, ErrFundingSourceRejected) {
		t.Fatalf("expected ErrFundingSourceRejected, got %v", err)
	}
	count, err := f.fundingRepo.CountActive(tenant.ID, constants.ProcessorKindBankTransfer)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no funding source rows, got %d", count)
	}
}

func TestCreatePayerIdentityIsIdempotent(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	tenant := f.createParty(t, "identity@example.com", constants.PartyRoleTenant)
	ctx := context.Background()

	first, err := f.funding.CreatePayerIdentity(ctx, tenant.ID, constants.ProcessorKindBankTransfer)
	if err != nil {
		t.Fatalf("create identity failed: %v", err)
	}
	second, err := f.funding.CreatePayerIdentity(ctx, tenant.ID, "")
	if err != nil {
		t.Fatalf("second create identity failed: %v", err)
	}
	if first.ID != second.ID || first.ExternalCustomerRef != second.ExternalCustomerRef {
		t.Fatalf("identity should be reused: %+v vs %+v", first, second)
	}
	if f.gateway.customerCalls != 1 {
		t.Fatalf("expected one createCustomer call, got %d", f.gateway.customerCalls)
	}
	if _, err := f.funding.CreatePayerIdentity(ctx, tenant.ID, constants.ProcessorKindCard); !errors.Is(err, ErrProcessorKindInvalid) {
		t.Fatalf("expected ErrProcessorKindInvalid for card, got %v", err)
	}
}

func TestVerifyMicroDepositsActivatesLandlordBankTransfer(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	landlord := f.createParty(t, "verify-owner@example.com", constants.PartyRoleLandlord)
	ctx := context.Background()

	source, err := f.funding.LinkBankAccount(ctx, LinkBankAccountInput{
		PartyID:       landlord.ID,
		RoutingNumber: "222222226",
		AccountNumber: "987654321",
	})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if cfg, _ := f.configRepo.GetByLandlordKind(landlord.ID, constants.ProcessorKindBankTransfer); cfg != nil {
		t.Fatalf("unverified account must not activate bank transfer")
	}

	if _, err := f.funding.VerifyMicroDeposits(ctx, landlord.ID, source.ID, "0.3", "1.50"); !errors.Is(err, ErrMicroDepositAmountInvalid) {
		t.Fatalf("expected ErrMicroDepositAmountInvalid, got %v", err)
	}
	verified, err := f.funding.VerifyMicroDeposits(ctx, landlord.ID, source.ID, "0.03", "0.09")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verified.Verified {
		t.Fatalf("funding source should be verified")
	}
	cfg, err := f.configRepo.GetByLandlordKind(landlord.ID, constants.ProcessorKindBankTransfer)
	if err != nil || cfg == nil {
		t.Fatalf("bank transfer config should exist: %v", err)
	}
	if cfg.Status != constants.ProcessorStatusActive || !cfg.Verified {
		t.Fatalf("bank transfer should be active, got %+v", cfg)
	}
}

func TestVerifyMicroDepositsRejectedByProcessor(t *testing.T) {
	f := setupRentflowServiceTest(t, false)
	tenant := f.createParty(t, "wrong-amounts@example.com", constants.PartyRoleTenant)
	source := f.addFundingSource(t, tenant.ID, false, true)
	f.gateway.verifyErr = &banktransfer.APIError{StatusCode: 400, Code: "InvalidAmount"}

	if _, err := f.funding.VerifyMicroDeposits(context.Background(), tenant.ID, source.ID, "0.01", "0.02"); !errors.Is(err, ErrMicroDepositRejected) {
		t.Fatalf("expected ErrMicroDepositRejected, got %v", err)
	}
	other := f.createParty(t, "stranger@example.com", constants.PartyRoleTenant)
	if _, err := f.funding.VerifyMicroDeposits(context.Background(), other.ID, source.ID, "0.01", "0.02"); !errors.Is(err, ErrFundingSourceNotFound) {
		t.Fatalf("expected ErrFundingSourceNotFound for other party, got %v", err)
	}
}

func TestSetDefaultMovesDefaultFlag(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	tenant := f.createParty(t, "default@example.com", constants.PartyRoleTenant)
	first := f.addFundingSource(t, tenant.ID, true, true)
	second := f.addFundingSource(t, tenant.ID, true, false)

	if _, err := f.funding.SetDefault(context.Background(), tenant.ID, second.ID); err != nil {
		t.Fatalf("set default failed: %v", err)
	}
	sources, err := f.funding.ListFundingSources(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, source := range sources {
		if source.ID == first.ID && source.IsDefault {
			t.Fatalf("previous default should be cleared")
		}
		if source.ID == second.ID && !source.IsDefault {
			t.Fatalf("second source should be default")
		}
	}
}
