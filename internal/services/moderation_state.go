package services

import (
	"context"
	"fmt"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

type FlagKind string

const (
	FlagMute     FlagKind = "mute"
	FlagExile    FlagKind = "exile"
	FlagSlowMode FlagKind = "slowmode"
	// FlagCooldown is the armed per-user send cooldown derived from slow mode.
	FlagCooldown FlagKind = "cooldown"
)

const groupWideScope = "group_wide"

func FlagKey(kind FlagKind, groupID, userID int64) string {
	return fmt.Sprintf("%s:%d:%d", kind, groupID, userID)
}

func GroupFlagKey(kind FlagKind, groupID int64) string {
	return fmt.Sprintf("%s:%d:%s", kind, groupID, groupWideScope)
}

// ModerationState holds time-bounded flags. Store-native expiry is the only
// automatic removal; a missing key means the flag is not applied.
type ModerationState interface {
	SetFlag(ctx context.Context, key, value string, ttl time.Duration) error
	GetFlag(ctx context.Context, key string) (value string, ok bool, err error)
	ClearFlag(ctx context.Context, keys ...string) error
}

type moderationState struct {
	store kv.Store
}

func NewModerationState(store kv.Store) ModerationState {
	return &moderationState{store: store}
}

func (m *moderationState) SetFlag(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("flag %s: ttl must be positive", key)
	}
	return m.store.Set(ctx, key, value, ttl)
}

func (m *moderationState) GetFlag(ctx context.Context, key string) (string, bool, error) {
	return m.store.Get(ctx, key)
}

func (m *moderationState) ClearFlag(ctx context.Context, keys ...string) error {
	return m.store.Del(ctx, keys...)
}
