package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rentflow/internal/config"
	"github.com/rentflow/internal/models"
)

func TestDisabledCacheIsPassThrough(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: false}); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	ctx := context.Background()

	deduper := NewWebhookDeduper()
	ok, err := deduper.Claim(ctx, "webhook:bank_transfer:evt-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("disabled cache should always grant claim, ok=%v err=%v", ok, err)
	}
	if err := deduper.Release(ctx, "webhook:bank_transfer:evt-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	party := &models.Party{ID: 7, Role: "tenant", Status: "active"}
	if err := SetPartyAuthState(ctx, BuildPartyAuthState(party)); err != nil {
		t.Fatalf("set auth state failed: %v", err)
	}
	if _, hit, err := GetPartyAuthState(ctx, 7); err != nil || hit {
		t.Fatalf("disabled cache should miss, hit=%v err=%v", hit, err)
	}
}

func TestBuildKeyUsesPrefix(t *testing.T) {
	redisPrefix = "rf"
	if got := buildKey(" auth:party:1 "); got != "rf:auth:party:1" {
		t.Fatalf("key want rf:auth:party:1 got %s", got)
	}
	if got := buildKey(""); got != "rf" {
		t.Fatalf("empty key want prefix got %s", got)
	}
}

func TestBuildPartyAuthState(t *testing.T) {
	if BuildPartyAuthState(nil) != nil {
		t.Fatalf("nil party should build nil state")
	}
	state := BuildPartyAuthState(&models.Party{ID: 3, Role: "landlord", Status: "disabled"})
	if state.PartyID != 3 || state.Role != "landlord" || state.Status != "disabled" || state.UpdatedAt == 0 {
		t.Fatalf("unexpected state: %+v", state)
	}
}
