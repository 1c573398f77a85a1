package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rentflow/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// PartyAuthState 参与方鉴权快照
// 仅缓存鉴权中间件需要的字段
type PartyAuthState struct {
	PartyID   uint   `json:"party_id"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	UpdatedAt int64  `json:"updated_at"`
}

func partyAuthStateKey(partyID uint) string {
	return fmt.Sprintf("auth:party:%d", partyID)
}

// BuildPartyAuthState 从参与方模型构建鉴权快照
func BuildPartyAuthState(party *models.Party) *PartyAuthState {
	if party == nil {
		return nil
	}
	return &PartyAuthState{
		PartyID:   party.ID,
		Role:      party.Role,
		Status:    party.Status,
		UpdatedAt: time.Now().Unix(),
	}
}

// GetPartyAuthState 获取参与方鉴权快照
func GetPartyAuthState(ctx context.Context, partyID uint) (*PartyAuthState, bool, error) {
	if partyID == 0 {
		return nil, false, nil
	}
	var state PartyAuthState
	hit, err := GetJSON(ctx, partyAuthStateKey(partyID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetPartyAuthState 写入参与方鉴权快照
func SetPartyAuthState(ctx context.Context, state *PartyAuthState) error {
	if state == nil || state.PartyID == 0 {
		return nil
	}
	return SetJSON(ctx, partyAuthStateKey(state.PartyID), state, authStateCacheTTL)
}

// DelPartyAuthState 删除参与方鉴权快照
func DelPartyAuthState(ctx context.Context, partyID uint) error {
	if partyID == 0 {
		return nil
	}
	return Del(ctx, partyAuthStateKey(partyID))
}
