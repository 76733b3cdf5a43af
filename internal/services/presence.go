package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

// PresenceStore tracks who is online per chat group. Errors mean presence
// is unknown; callers must not block messaging on them.
type PresenceStore interface {
	Join(ctx context.Context, groupID, userID int64) error
	Leave(ctx context.Context, groupID, userID int64) error
	ListOnline(ctx context.Context, groupID int64) ([]int64, error)
}

type presenceStore struct {
	log   *logger.Logger
	store kv.Store
}

func NewPresenceStore(log *logger.Logger, store kv.Store) PresenceStore {
	return &presenceStore{log: log.With("service", "PresenceStore"), store: store}
}

func presenceKey(groupID int64) string { return fmt.Sprintf("presence:%d", groupID) }

func (p *presenceStore) Join(ctx context.Context, groupID, userID int64) error {
	return p.store.SAdd(ctx, presenceKey(groupID), strconv.FormatInt(userID, 10))
}

func (p *presenceStore) Leave(ctx context.Context, groupID, userID int64) error {
	return p.store.SRem(ctx, presenceKey(groupID), strconv.FormatInt(userID, 10))
}

// ListOnline returns user ids in ascending order.
func (p *presenceStore) ListOnline(ctx context.Context, groupID int64) ([]int64, error) {
	members, err := p.store.SMembers(ctx, presenceKey(groupID))
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			p.log.Warn("dropping malformed presence member", "group_id", groupID, "member", m)
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
