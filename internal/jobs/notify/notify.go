// Package notify turns event-derived deliveries into in-app notification
// rows. Deliveries travel through asynq when Redis is configured and run
// inline otherwise.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

const TypeDeliver = "notify:deliver"

type Delivery struct {
	EventID      string          `json:"eventId"`
	Kind         string          `json:"kind"`
	RecipientIDs []int64         `json:"recipientIds"`
	ChatGroupID  *int64          `json:"chatGroupId,omitempty"`
	ActorID      *int64          `json:"actorId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// DedupeKey identifies the delivery per recipient across redeliveries.
func (d Delivery) DedupeKey() string { return d.EventID + ":" + d.Kind }

func (d Delivery) Validate() error {
	if strings.TrimSpace(d.EventID) == "" || strings.TrimSpace(d.Kind) == "" {
		return fmt.Errorf("delivery: eventId and kind are required")
	}
	if len(d.RecipientIDs) == 0 {
		return fmt.Errorf("delivery: no recipients")
	}
	return nil
}

type Enqueuer interface {
	Enqueue(ctx context.Context, d Delivery) error
}

type Handler struct {
	log  *logger.Logger
	repo repos.NotificationRepo
}

func NewHandler(log *logger.Logger, repo repos.NotificationRepo) *Handler {
	return &Handler{log: log.With("component", "NotifyHandler"), repo: repo}
}

// Deliver writes one row per recipient. Replays of the same delivery are no-ops.
func (h *Handler) Deliver(ctx context.Context, d Delivery) error {
	if err := d.Validate(); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(d.RecipientIDs))
	rows := make([]*chat.Notification, 0, len(d.RecipientIDs))
	for _, uid := range d.RecipientIDs {
		if uid <= 0 || seen[uid] {
			continue
		}
		seen[uid] = true
		rows = append(rows, &chat.Notification{
			UserID:      uid,
			DedupeKey:   d.DedupeKey(),
			Kind:        d.Kind,
			ChatGroupID: d.ChatGroupID,
			ActorID:     d.ActorID,
			Payload:     datatypes.JSON(d.Payload),
		})
	}
	n, err := h.repo.CreateIgnoreDuplicates(dbctx.Context{Ctx: ctx}, rows)
	if err != nil {
		return fmt.Errorf("persist notifications: %w", err)
	}
	h.log.Debug("notifications delivered", "kind", d.Kind, "event_id", d.EventID, "inserted", n)
	return nil
}

// InlineEnqueuer runs deliveries on the caller's goroutine.
type InlineEnqueuer struct{ Handler *Handler }

func (e InlineEnqueuer) Enqueue(ctx context.Context, d Delivery) error {
	return e.Handler.Deliver(ctx, d)
}
