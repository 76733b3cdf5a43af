package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *user.User {
	tb.Helper()
	u := &user.User{
		Username:  username,
		FirstName: "First_" + username,
		LastName:  "Last_" + username,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCommunity(tb testing.TB, ctx context.Context, tx *gorm.DB, creatorID int64) *chat.Community {
	tb.Helper()
	c := &chat.Community{Name: "community", CreatorID: creatorID}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed community: %v", err)
	}
	return c
}

func SeedGroup(tb testing.TB, ctx context.Context, tx *gorm.DB, communityID int64) *chat.ChatGroup {
	tb.Helper()
	g := &chat.ChatGroup{CommunityID: communityID, Name: "group"}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed group: %v", err)
	}
	return g
}

func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB, groupID, userID int64) {
	tb.Helper()
	m := &chat.GroupMember{ChatGroupID: groupID, UserID: userID, JoinedAt: time.Now().UTC()}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed member: %v", err)
	}
}

func SeedAdmin(tb testing.TB, ctx context.Context, tx *gorm.DB, communityID, userID int64) {
	tb.Helper()
	a := &chat.CommunityAdmin{CommunityID: communityID, UserID: userID, CreatedAt: time.Now().UTC()}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed admin: %v", err)
	}
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, groupID, senderID int64, text string) *chat.Message {
	tb.Helper()
	m := &chat.Message{
		SenderID:    senderID,
		ChatGroupID: groupID,
		Text:        &text,
		Mentions:    chat.EncodeMentions(nil),
		CreatedAt:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

// GroupFixture is a community with one group, an admin and a plain member.
type GroupFixture struct {
	Community *chat.Community
	Group     *chat.ChatGroup
	Admin     *user.User
	Member    *user.User
}

func SeedGroupFixture(tb testing.TB, ctx context.Context, tx *gorm.DB) GroupFixture {
	tb.Helper()
	admin := SeedUser(tb, ctx, tx, "admin")
	member := SeedUser(tb, ctx, tx, "member")
	c := SeedCommunity(tb, ctx, tx, admin.ID)
	g := SeedGroup(tb, ctx, tx, c.ID)
	SeedAdmin(tb, ctx, tx, c.ID, admin.ID)
	SeedMember(tb, ctx, tx, g.ID, admin.ID)
	SeedMember(tb, ctx, tx, g.ID, member.ID)
	return GroupFixture{Community: c, Group: g, Admin: admin, Member: member}
}
