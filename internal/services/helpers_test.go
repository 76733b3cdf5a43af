package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos/testutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

type fakeMedia struct {
	mu      sync.Mutex
	uploads map[string][]byte
	failURL bool
}

func newFakeMedia() *fakeMedia { return &fakeMedia{uploads: map[string][]byte{}} }

func (f *fakeMedia) Upload(_ context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("media/%d", len(f.uploads)+1)
	f.uploads[key] = data
	return key, nil
}

func (f *fakeMedia) URL(_ context.Context, key string) (string, error) {
	if f.failURL {
		return "", fmt.Errorf("signing unavailable")
	}
	return "https://cdn.test/" + key, nil
}

// recorder captures every event of the given names in publish order.
type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func record(bus events.Bus, names ...string) *recorder {
	r := &recorder{}
	for _, n := range names {
		bus.Subscribe(n, func(_ context.Context, ev events.Event) {
			r.mu.Lock()
			r.evs = append(r.evs, ev)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) named(name string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.evs {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	db    *gorm.DB
	store *kv.MemoryStore
	bus   *events.LocalBus
	media *fakeMedia

	groups   repos.GroupRepo
	audit    repos.ModerationAuditRepo
	users    repos.UserRepo
	messages repos.MessageRepo
	threads  repos.ThreadRepo
	reacts   repos.ReactionRepo
	stats    repos.ActivityStatsRepo
	levels   repos.LevelHistoryRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &harness{
		db:       db,
		store:    kv.NewMemoryStore(),
		bus:      events.NewLocalBus(log),
		media:    newFakeMedia(),
		groups:   repos.NewGroupRepo(db, log),
		audit:    repos.NewModerationAuditRepo(db, log),
		users:    repos.NewUserRepo(db, log),
		messages: repos.NewMessageRepo(db, log),
		threads:  repos.NewThreadRepo(db, log),
		reacts:   repos.NewReactionRepo(db, log),
		stats:    repos.NewActivityStatsRepo(db, log),
		levels:   repos.NewLevelHistoryRepo(db, log),
	}
}

func (h *harness) moderation(t *testing.T) ModerationService {
	return NewModerationService(testutil.Logger(t), h.store, h.groups, h.audit, h.bus, ModerationConfig{})
}

func (h *harness) gamification(t *testing.T) GamificationService {
	return NewGamificationService(h.db, testutil.Logger(t), h.store, h.stats, h.levels, h.bus, GamificationConfig{})
}

func (h *harness) messageService(t *testing.T) MessageService {
	return NewMessageService(h.db, testutil.Logger(t), h.store, h.media, h.users, h.messages, h.threads, h.reacts, MessageConfig{})
}
