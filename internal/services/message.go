package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

type UserInfo struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	ProfileImage *string `json:"profileImage"`
}

func (u *UserInfo) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// ReplyView is the resolved context of a replied-to message.
type ReplyView struct {
	ID       int64     `json:"id"`
	SenderID int64     `json:"senderId"`
	Message  *string   `json:"message"`
	Sender   *UserInfo `json:"sender"`
}

type MessageView struct {
	ID          int64          `json:"id"`
	ChatGroupID int64          `json:"chatGroupId"`
	SenderID    int64          `json:"senderId"`
	Sender      *UserInfo      `json:"sender"`
	Message     *string        `json:"message"`
	Media       []string       `json:"media"`
	MediaURLs   []string       `json:"mediaUrls"`
	Audio       *string        `json:"audio"`
	AudioURL    *string        `json:"audioUrl"`
	ReplyToID   *int64         `json:"replyToId"`
	ReplyTo     *ReplyView     `json:"replyTo"`
	ThreadID    *int64         `json:"threadId"`
	Spoiler     bool           `json:"spoiler"`
	Mentions    []chat.Mention `json:"mentions"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type ThreadView struct {
	ID              int64        `json:"id"`
	ParentMessageID int64        `json:"parentMessageId"`
	ChatGroupID     int64        `json:"chatGroupId"`
	CreatorID       int64        `json:"creatorId"`
	CreatedAt       time.Time    `json:"createdAt"`
	InitialMessage  *MessageView `json:"initialMessage"`
}

type SaveMessageInput struct {
	SenderID         int64
	ChatGroupID      int64
	Text             *string
	Media            []string
	Audio            *string
	ReplyToMessageID *int64
	ThreadID         *int64
	Spoiler          bool
	Mentions         []chat.Mention
}

type CreateThreadInput struct {
	ParentMessageID int64
	CreatorID       int64
	ChatGroupID     int64
}

type ReactionInput struct {
	MessageID    int64
	UserID       int64
	ReactionType string
	CustomEmote  *string
}

// MessageService persists and resolves chat content. It trusts that the
// caller already passed the moderation gate.
type MessageService interface {
	SaveMessage(ctx context.Context, in SaveMessageInput) (*chat.Message, error)
	// StoreInlineAudio uploads a data: URI and returns its media key. Any
	// other value is returned unchanged as an existing key.
	StoreInlineAudio(ctx context.Context, audio string) (string, error)
	GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error)
	// GetMessageByID returns (nil, nil) when the message does not exist.
	GetMessageByID(ctx context.Context, id int64) (*MessageView, error)
	GetMessageRow(ctx context.Context, id int64) (*chat.Message, error)
	BuildView(ctx context.Context, msg *chat.Message) (*MessageView, error)

	CreateThread(ctx context.Context, in CreateThreadInput) (*chat.Thread, error)
	// StartThread creates the thread and, when first is set, saves and
	// attaches the initial message in the same transaction.
	StartThread(ctx context.Context, in CreateThreadInput, first *SaveMessageInput) (*chat.Thread, *chat.Message, error)
	AddMessageToThread(ctx context.Context, threadID, messageID int64) error
	// GetThread returns (nil, nil) when the thread does not exist.
	GetThread(ctx context.Context, threadID int64) (*chat.Thread, error)
	GetThreadMessages(ctx context.Context, threadID int64) ([]*MessageView, error)
	// ListGroupMessages returns the latest limit messages, oldest first.
	ListGroupMessages(ctx context.Context, groupID int64, limit int) ([]*MessageView, error)

	AddReaction(ctx context.Context, in ReactionInput) (reaction *chat.Reaction, replaced bool, err error)
}

type MessageConfig struct {
	UserCacheTTL    time.Duration
	MessageCacheTTL time.Duration
}

type messageService struct {
	db           *gorm.DB
	log          *logger.Logger
	cache        jsonCache
	media        MediaStore
	userRepo     repos.UserRepo
	messageRepo  repos.MessageRepo
	threadRepo   repos.ThreadRepo
	reactionRepo repos.ReactionRepo
	cfg          MessageConfig
}

func NewMessageService(
	db *gorm.DB,
	log *logger.Logger,
	store kv.Store,
	media MediaStore,
	userRepo repos.UserRepo,
	messageRepo repos.MessageRepo,
	threadRepo repos.ThreadRepo,
	reactionRepo repos.ReactionRepo,
	cfg MessageConfig,
) MessageService {
	if cfg.UserCacheTTL <= 0 {
		cfg.UserCacheTTL = 300 * time.Second
	}
	if cfg.MessageCacheTTL <= 0 {
		cfg.MessageCacheTTL = 300 * time.Second
	}
	serviceLog := log.With("service", "MessageService")
	return &messageService{
		db:           db,
		log:          serviceLog,
		cache:        jsonCache{store: store, log: serviceLog},
		media:        media,
		userRepo:     userRepo,
		messageRepo:  messageRepo,
		threadRepo:   threadRepo,
		reactionRepo: reactionRepo,
		cfg:          cfg,
	}
}

func userCacheKey(id int64) string    { return "user:" + strconv.FormatInt(id, 10) }
func messageCacheKey(id int64) string { return "message:" + strconv.FormatInt(id, 10) }

func (s *messageService) SaveMessage(ctx context.Context, in SaveMessageInput) (*chat.Message, error) {
	if in.SenderID <= 0 || in.ChatGroupID <= 0 {
		return nil, apierr.Validation("chatGroupId is required")
	}
	row := &chat.Message{
		SenderID:         in.SenderID,
		ChatGroupID:      in.ChatGroupID,
		Text:             textOrNil(in.Text),
		Media:            chat.JoinMedia(in.Media),
		Audio:            trimmedOrNil(in.Audio),
		ReplyToMessageID: positiveOrNil(in.ReplyToMessageID),
		ThreadID:         positiveOrNil(in.ThreadID),
		Spoiler:          in.Spoiler,
		Mentions:         chat.EncodeMentions(in.Mentions),
		CreatedAt:        time.Now().UTC(),
	}
	if !row.HasContent() {
		return nil, apierr.Validation("message must include text, media or audio")
	}
	out, err := s.messageRepo.Create(dbctx.Context{Ctx: ctx}, row)
	if err != nil {
		return nil, apierr.Dependency("save message", err)
	}
	return out, nil
}

func (s *messageService) StoreInlineAudio(ctx context.Context, audio string) (string, error) {
	data, contentType, isURI, err := decodeDataURI(audio)
	if !isURI {
		return strings.TrimSpace(audio), nil
	}
	if err != nil {
		return "", apierr.Validation("invalid audio: %v", err)
	}
	if s.media == nil {
		return "", apierr.Dependency("upload audio", fmt.Errorf("media store not configured"))
	}
	key, err := s.media.Upload(ctx, data, contentType)
	if err != nil {
		return "", apierr.Dependency("upload audio", err)
	}
	return key, nil
}

func (s *messageService) GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	if userID <= 0 {
		return nil, nil
	}
	key := userCacheKey(userID)
	var cached UserInfo
	if s.cache.get(ctx, key, &cached) {
		return &cached, nil
	}
	u, err := s.userRepo.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, apierr.Dependency("load user", err)
	}
	if u == nil {
		return nil, nil
	}
	info := &UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	info.ProfileImage = s.resolveURL(ctx, u.ProfileImageKey)
	s.cache.set(ctx, key, info, s.cfg.UserCacheTTL)
	return info, nil
}

func (s *messageService) GetMessageRow(ctx context.Context, id int64) (*chat.Message, error) {
	m, err := s.messageRepo.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, apierr.Dependency("load message", err)
	}
	return m, nil
}

func (s *messageService) GetMessageByID(ctx context.Context, id int64) (*MessageView, error) {
	if id <= 0 {
		return nil, nil
	}
	key := messageCacheKey(id)
	var cached MessageView
	if s.cache.get(ctx, key, &cached) {
		return &cached, nil
	}
	m, err := s.GetMessageRow(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}
	view, err := s.BuildView(ctx, m)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, key, view, s.cfg.MessageCacheTTL)
	return view, nil
}

// BuildView resolves sender, reply context and media URLs in parallel. Only
// a failure to load the sender is fatal; the rest degrade to empty.
func (s *messageService) BuildView(ctx context.Context, m *chat.Message) (*MessageView, error) {
	if m == nil {
		return nil, nil
	}
	view := &MessageView{
		ID:          m.ID,
		ChatGroupID: m.ChatGroupID,
		SenderID:    m.SenderID,
		Message:     m.Text,
		Media:       chat.SplitMedia(m.Media),
		Audio:       m.Audio,
		ReplyToID:   m.ReplyToMessageID,
		ThreadID:    m.ThreadID,
		Spoiler:     m.Spoiler,
		Mentions:    chat.DecodeMentions(m.Mentions),
		CreatedAt:   m.CreatedAt,
	}
	view.MediaURLs = make([]string, len(view.Media))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sender, err := s.GetUserInfo(gctx, m.SenderID)
		if err != nil {
			return err
		}
		view.Sender = sender
		return nil
	})
	if m.ReplyToMessageID != nil {
		replyID := *m.ReplyToMessageID
		g.Go(func() error {
			view.ReplyTo = s.resolveReply(gctx, replyID)
			return nil
		})
	}
	for i, k := range view.Media {
		g.Go(func() error {
			if u := s.resolveURL(gctx, k); u != nil {
				view.MediaURLs[i] = *u
			}
			return nil
		})
	}
	if m.Audio != nil {
		audioKey := *m.Audio
		g.Go(func() error {
			view.AudioURL = s.resolveURL(gctx, audioKey)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// resolveReply treats any failure as "no reply context".
func (s *messageService) resolveReply(ctx context.Context, id int64) *ReplyView {
	parent, err := s.messageRepo.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		s.log.Warn("reply context lookup failed", "message_id", id, "error", err)
		return nil
	}
	if parent == nil {
		return nil
	}
	rv := &ReplyView{ID: parent.ID, SenderID: parent.SenderID, Message: parent.Text}
	sender, err := s.GetUserInfo(ctx, parent.SenderID)
	if err != nil {
		s.log.Warn("reply sender lookup failed", "message_id", id, "error", err)
	}
	rv.Sender = sender
	return rv
}

func (s *messageService) resolveURL(ctx context.Context, key string) *string {
	key = strings.TrimSpace(key)
	if key == "" || s.media == nil {
		return nil
	}
	u, err := s.media.URL(ctx, key)
	if err != nil {
		s.log.Warn("media url resolution failed", "key", key, "error", err)
		return nil
	}
	return &u
}

func (s *messageService) CreateThread(ctx context.Context, in CreateThreadInput) (*chat.Thread, error) {
	if in.ParentMessageID <= 0 || in.ChatGroupID <= 0 || in.CreatorID <= 0 {
		return nil, apierr.Validation("parentMessageId and chatGroupId are required")
	}
	th, err := s.threadRepo.Create(dbctx.Context{Ctx: ctx}, &chat.Thread{
		ParentMessageID: in.ParentMessageID,
		CreatorID:       in.CreatorID,
		ChatGroupID:     in.ChatGroupID,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return nil, apierr.Dependency("create thread", err)
	}
	return th, nil
}

func (s *messageService) StartThread(ctx context.Context, in CreateThreadInput, first *SaveMessageInput) (*chat.Thread, *chat.Message, error) {
	if first == nil {
		th, err := s.CreateThread(ctx, in)
		return th, nil, err
	}
	if in.ParentMessageID <= 0 || in.ChatGroupID <= 0 || in.CreatorID <= 0 {
		return nil, nil, apierr.Validation("parentMessageId and chatGroupId are required")
	}
	msg := &chat.Message{
		SenderID:    first.SenderID,
		ChatGroupID: first.ChatGroupID,
		Text:        textOrNil(first.Text),
		Media:       chat.JoinMedia(first.Media),
		Audio:       trimmedOrNil(first.Audio),
		Spoiler:     first.Spoiler,
		Mentions:    chat.EncodeMentions(first.Mentions),
	}
	if !msg.HasContent() {
		return nil, nil, apierr.Validation("initial message must include text, media or audio")
	}

	var th *chat.Thread
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := time.Now().UTC()
		var err error
		th, err = s.threadRepo.Create(dbc, &chat.Thread{
			ParentMessageID: in.ParentMessageID,
			CreatorID:       in.CreatorID,
			ChatGroupID:     in.ChatGroupID,
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		msg.ThreadID = &th.ID
		msg.CreatedAt = now
		_, err = s.messageRepo.Create(dbc, msg)
		return err
	})
	if err != nil {
		return nil, nil, apierr.Dependency("start thread", err)
	}
	return th, msg, nil
}

func (s *messageService) AddMessageToThread(ctx context.Context, threadID, messageID int64) error {
	ok, err := s.messageRepo.SetThreadID(dbctx.Context{Ctx: ctx}, messageID, threadID)
	if err != nil {
		return apierr.Dependency("attach message to thread", err)
	}
	if !ok {
		return apierr.NotFound("message %d not found", messageID)
	}
	s.cache.del(ctx, messageCacheKey(messageID))
	return nil
}

func (s *messageService) GetThread(ctx context.Context, threadID int64) (*chat.Thread, error) {
	th, err := s.threadRepo.GetByID(dbctx.Context{Ctx: ctx}, threadID)
	if err != nil {
		return nil, apierr.Dependency("load thread", err)
	}
	return th, nil
}

func (s *messageService) GetThreadMessages(ctx context.Context, threadID int64) ([]*MessageView, error) {
	rows, err := s.messageRepo.ListByThread(dbctx.Context{Ctx: ctx}, threadID, 0, 0)
	if err != nil {
		return nil, apierr.Dependency("load thread messages", err)
	}
	return s.views(ctx, rows)
}

func (s *messageService) ListGroupMessages(ctx context.Context, groupID int64, limit int) ([]*MessageView, error) {
	if groupID <= 0 {
		return nil, apierr.Validation("chatGroupId is required")
	}
	rows, err := s.messageRepo.ListRecentByGroup(dbctx.Context{Ctx: ctx}, groupID, limit)
	if err != nil {
		return nil, apierr.Dependency("load group messages", err)
	}
	return s.views(ctx, rows)
}

func (s *messageService) views(ctx context.Context, rows []*chat.Message) ([]*MessageView, error) {
	out := make([]*MessageView, 0, len(rows))
	for _, m := range rows {
		v, err := s.BuildView(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *messageService) AddReaction(ctx context.Context, in ReactionInput) (*chat.Reaction, bool, error) {
	in.ReactionType = strings.TrimSpace(in.ReactionType)
	in.CustomEmote = trimmedOrNil(in.CustomEmote)
	if in.MessageID <= 0 || in.UserID <= 0 {
		return nil, false, apierr.Validation("messageId is required")
	}
	if in.ReactionType == "" && in.CustomEmote == nil {
		return nil, false, apierr.Validation("reactionType or customEmote is required")
	}
	r, replaced, err := s.reactionRepo.Upsert(dbctx.Context{Ctx: ctx}, &chat.Reaction{
		MessageID:    in.MessageID,
		UserID:       in.UserID,
		ReactionType: in.ReactionType,
		CustomEmote:  in.CustomEmote,
	})
	if err != nil {
		return nil, false, apierr.Dependency("save reaction", err)
	}
	return r, replaced, nil
}

var mentionPattern = regexp.MustCompile(`@\[([^\[\]\r\n]+)\]\((\d+)\)`)

// ParseMentions extracts @[DisplayName](userId) references in order.
// Anything that does not match the full form is ignored.
func ParseMentions(text string) []chat.Mention {
	out := []chat.Mention{}
	if text == "" {
		return out
	}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		out = append(out, chat.Mention{UserID: id, Name: strings.TrimSpace(m[1])})
	}
	return out
}

// textOrNil keeps message text byte for byte and only drops blank text.
func textOrNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func positiveOrNil(v *int64) *int64 {
	if v == nil || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}
