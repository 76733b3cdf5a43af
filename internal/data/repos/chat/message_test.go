package chat

import (
	"context"
	"testing"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos/testutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
)

func TestMessageRepo_CreateGetAndThreadBackfill(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	fx := testutil.SeedGroupFixture(t, ctx, tx)

	msgs := NewMessageRepo(db, testutil.Logger(t))
	threads := NewThreadRepo(db, testutil.Logger(t))

	text := "hello"
	created, err := msgs.Create(dbc, &chat.Message{
		SenderID:    fx.Member.ID,
		ChatGroupID: fx.Group.ID,
		Text:        &text,
		Media:       chat.JoinMedia([]string{"a.png", "b.png"}),
		Mentions:    chat.EncodeMentions([]chat.Mention{{UserID: fx.Admin.ID, Name: "Admin"}}),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := msgs.GetByID(dbc, created.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if got.Text == nil || *got.Text != "hello" {
		t.Fatalf("GetByID text: want=hello got=%v", got.Text)
	}
	if media := chat.SplitMedia(got.Media); len(media) != 2 || media[1] != "b.png" {
		t.Fatalf("GetByID media: want=[a.png b.png] got=%v", media)
	}
	if m := chat.DecodeMentions(got.Mentions); len(m) != 1 || m[0].UserID != fx.Admin.ID {
		t.Fatalf("GetByID mentions: got=%+v", m)
	}

	miss, err := msgs.GetByID(dbc, created.ID+999)
	if err != nil || miss != nil {
		t.Fatalf("GetByID miss: want=(nil,nil) got=(%v,%v)", miss, err)
	}

	if _, err := msgs.Create(dbc, &chat.Message{SenderID: fx.Member.ID, ChatGroupID: fx.Group.ID}); err == nil {
		t.Fatalf("Create empty: want error")
	}

	th, err := threads.Create(dbc, &chat.Thread{
		ParentMessageID: created.ID,
		CreatorID:       fx.Member.ID,
		ChatGroupID:     fx.Group.ID,
	})
	if err != nil {
		t.Fatalf("Thread Create: %v", err)
	}

	base := time.Now().UTC()
	var ids []int64
	for i, body := range []string{"first", "second", "third"} {
		b := body
		m, err := msgs.Create(dbc, &chat.Message{
			SenderID:    fx.Member.ID,
			ChatGroupID: fx.Group.ID,
			Text:        &b,
			CreatedAt:   base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Create %s: %v", body, err)
		}
		ids = append(ids, m.ID)
	}
	// Attach out of order; reads still follow creation order.
	for _, id := range []int64{ids[2], ids[0], ids[1]} {
		ok, err := msgs.SetThreadID(dbc, id, th.ID)
		if err != nil || !ok {
			t.Fatalf("SetThreadID(%d): ok=%v err=%v", id, ok, err)
		}
	}
	ok, err := msgs.SetThreadID(dbc, ids[2]+999, th.ID)
	if err != nil || ok {
		t.Fatalf("SetThreadID missing: want=false got=%v err=%v", ok, err)
	}

	list, err := msgs.ListByThread(dbc, th.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListByThread: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListByThread: want=3 got=%d", len(list))
	}
	for i, m := range list {
		if m.ID != ids[i] {
			t.Fatalf("ListByThread order[%d]: want=%d got=%d", i, ids[i], m.ID)
		}
	}

	page, err := msgs.ListByThread(dbc, th.ID, ids[0], 1)
	if err != nil || len(page) != 1 || page[0].ID != ids[1] {
		t.Fatalf("ListByThread page: got=%v err=%v", page, err)
	}

	recent, err := msgs.ListRecentByGroup(dbc, fx.Group.ID, 2)
	if err != nil || len(recent) != 2 || recent[1].ID != ids[2] {
		t.Fatalf("ListRecentByGroup: got=%v err=%v", recent, err)
	}
}

func TestReactionRepo_OnePerUserPerMessage(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	fx := testutil.SeedGroupFixture(t, ctx, tx)
	msg := testutil.SeedMessage(t, ctx, tx, fx.Group.ID, fx.Admin.ID, "react to me")

	repo := NewReactionRepo(db, testutil.Logger(t))

	first, replaced, err := repo.Upsert(dbc, &chat.Reaction{MessageID: msg.ID, UserID: fx.Member.ID, ReactionType: "like"})
	if err != nil {
		t.Fatalf("Upsert first: %v", err)
	}
	if replaced {
		t.Fatalf("Upsert first: want replaced=false")
	}

	emote := "nya"
	second, replaced, err := repo.Upsert(dbc, &chat.Reaction{MessageID: msg.ID, UserID: fx.Member.ID, CustomEmote: &emote})
	if err != nil {
		t.Fatalf("Upsert second: %v", err)
	}
	if !replaced || second.ID != first.ID {
		t.Fatalf("Upsert second: want replaced on id=%d got replaced=%v id=%d", first.ID, replaced, second.ID)
	}

	if _, _, err := repo.Upsert(dbc, &chat.Reaction{MessageID: msg.ID, UserID: fx.Admin.ID, ReactionType: "fire"}); err != nil {
		t.Fatalf("Upsert other user: %v", err)
	}

	rows, err := repo.ListByMessage(dbc, msg.ID)
	if err != nil {
		t.Fatalf("ListByMessage: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListByMessage: want=2 got=%d", len(rows))
	}
	if rows[0].CustomEmote == nil || *rows[0].CustomEmote != "nya" || rows[0].ReactionType != "" {
		t.Fatalf("ListByMessage: replaced row not updated: %+v", rows[0])
	}
}
