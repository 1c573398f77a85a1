package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrRoutingNumberInvalid, ErrorKindValidation},
		{fmt.Errorf("%w: unit does not match", ErrInvalidInput), ErrorKindValidation},
		{ErrTenantFundingSourceMissing, ErrorKindPrecondition},
		{ErrProcessorUnavailable, ErrorKindPrecondition},
		{ErrPaymentInitiationFailed, ErrorKindProcessor},
		{ErrFundingSourceRejected, ErrorKindProcessor},
		{fmt.Errorf("%w: boom", ErrPersistenceFailed), ErrorKindPersistence},
		{errors.New("boom"), ErrorKindUnknown},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) want %q got %q", tc.err, tc.want, got)
		}
	}
}

func TestPublicMessageDropsWrappedDetail(t *testing.T) {
	err := fmt.Errorf("%w: upstream said 503 for account 123456789", ErrProcessorRequestFailed)
	if got := PublicMessage(err); got != ErrProcessorRequestFailed.Error() {
		t.Fatalf("public message want %q got %q", ErrProcessorRequestFailed.Error(), got)
	}
	if got := PublicMessage(errors.New("db exploded")); got != "internal error" {
		t.Fatalf("unknown error should be generic, got %q", got)
	}
	if got := PublicMessage(nil); got != "" {
		t.Fatalf("nil error should be empty, got %q", got)
	}
}
