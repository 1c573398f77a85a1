package service

import (
	"errors"
	"testing"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{constants.RentPaymentStatusPending, constants.RentPaymentStatusProcessing},
		{constants.RentPaymentStatusPending, constants.RentPaymentStatusVoid},
		{constants.RentPaymentStatusProcessing, constants.RentPaymentStatusPaid},
		{constants.RentPaymentStatusProcessing, constants.RentPaymentStatusFailed},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("%s -> %s should be allowed", pair[0], pair[1])
		}
	}
	denied := [][2]string{
		{constants.RentPaymentStatusProcessing, constants.RentPaymentStatusPending},
		{constants.RentPaymentStatusPending, constants.RentPaymentStatusPaid},
		{constants.RentPaymentStatusPending, constants.RentPaymentStatusFailed},
		{constants.RentPaymentStatusPaid, constants.RentPaymentStatusFailed},
		{constants.RentPaymentStatusVoid, constants.RentPaymentStatusProcessing},
		{constants.RentPaymentStatusProcessing, constants.RentPaymentStatusVoid},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("%s -> %s should be denied", pair[0], pair[1])
		}
	}
}

func TestLedgerMonotonicity(t *testing.T) {
	f := setupRentflowServiceTest(t, true)
	payment := &models.RentPayment{
		TenantID: 1,
		UnitID:   1,
		Amount:   moneyOf(1000),
		Status:   constants.RentPaymentStatusPending,
		Method:   constants.ProcessorKindBankTransfer,
	}
	if err := f.paymentRepo.Create(payment); err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	if err := f.ledger.MarkPaid(payment.ID, SourceOrchestrator, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("orchestrator must not mark paid, got %v", err)
	}
	if err := f.ledger.MarkPaid(payment.ID, SourceStatusCallback, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending must not skip processing, got %v", err)
	}
	if err := f.ledger.MarkProcessing(payment.ID, SourceStatusCallback); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("callback must not drive the initiating half, got %v", err)
	}
	if err := f.ledger.MarkProcessing(payment.ID, SourceOrchestrator); err != nil {
		t.Fatalf("mark processing failed: %v", err)
	}
	if err := f.ledger.MarkProcessing(payment.ID, SourceOrchestrator); err != nil {
		t.Fatalf("repeating the same transition should be a no-op, got %v", err)
	}
	if err := f.ledger.Void(payment.ID, SourceOrchestrator, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("processing must not be voided, got %v", err)
	}
	if err := f.ledger.Transition(payment.ID, constants.RentPaymentStatusPending, SourceOrchestrator, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("processing must never return to pending, got %v", err)
	}
	if err := f.ledger.MarkFailed(payment.ID, SourceStatusCallback, "R01"); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}
	if err := f.ledger.MarkPaid(payment.ID, SourceStatusCallback, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failed must be terminal, got %v", err)
	}

	reloaded, err := f.paymentRepo.GetByID(payment.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != constants.RentPaymentStatusFailed || reloaded.FailureReason != "R01" {
		t.Fatalf("unexpected final state: %+v", reloaded)
	}
	if err := f.ledger.MarkProcessing(9999, SourceOrchestrator); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
