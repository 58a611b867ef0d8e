package conversations

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/services/notify"
)

const previewRunes = 80

type Transactor interface {
	InPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	ReadPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	Snapshot(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type MessageStore interface {
	Create(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, content string, now time.Time) (model.Message, error)
	Get(ctx context.Context, tx pgx.Tx, messageID int64) (model.Message, bool, error)
	UpdateContent(ctx context.Context, tx pgx.Tx, messageID int64, content string, now time.Time) (model.Message, error)
	Delete(ctx context.Context, tx pgx.Tx, messageID int64) (bool, error)
	MarkRead(ctx context.Context, tx pgx.Tx, readerID, senderID int64) (int64, error)
	ListBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey, limit int) ([]model.Message, error)
	Summaries(ctx context.Context, tx pgx.Tx, userID int64) (map[int64]model.ThreadSummary, error)
}

type MatchStore interface {
	Get(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.Match, bool, error)
	ListForUser(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Match, error)
}

type BlockStore interface {
	Between(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, bool, error)
}

type Notifier interface {
	Emit(ctx context.Context, events []notify.Event)
}

type Config struct {
	MaxMessageLength    int
	MaxHistoryLimit     int
	MaxConversationList int
}

type Dependencies struct {
	Tx       Transactor
	Messages MessageStore
	Matches  MatchStore
	Blocks   BlockStore
	Notifier Notifier
	Logger   *zap.Logger
}

type Service struct {
	tx       Transactor
	messages MessageStore
	matches  MatchStore
	blocks   BlockStore
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	if cfg.MaxHistoryLimit <= 0 {
		cfg.MaxHistoryLimit = 100
	}
	if cfg.MaxConversationList <= 0 {
		cfg.MaxConversationList = 500
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}

	return &Service{
		tx:       deps.Tx,
		messages: deps.Messages,
		matches:  deps.Matches,
		blocks:   deps.Blocks,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SendMessage appends to the thread of a matched pair. Block and match are
// re-checked under the pair lock so a concurrent block can never leave the
// new message behind.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (model.Message, error) {
	content, err := s.validateContent(content)
	if err != nil {
		return model.Message{}, err
	}
	if senderID == receiverID {
		return model.Message{}, errs.SelfReference("message")
	}
	key := rules.NewPairKey(senderID, receiverID)

	var (
		msg   model.Message
		match model.Match
	)
	err = s.tx.InPair(ctx, key, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		match, err = s.requireOpenPair(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}

		msg, err = s.messages.Create(ctx, tx, senderID, receiverID, content, s.now())
		if err != nil {
			return errs.Wrap("create message", err)
		}
		return nil
	})
	if err != nil {
		return model.Message{}, errs.Wrap("send message", err)
	}

	s.notifier.Emit(ctx, []notify.Event{{
		RecipientID: receiverID,
		Type:        enums.NotificationTypeMessage,
		Payload: model.NotificationPayload{
			ActorID:   senderID,
			MatchID:   match.ID,
			MessageID: msg.ID,
			Preview:   preview(msg.Content),
		},
	}})
	return msg, nil
}

// MarkRead flags everything otherID sent to readerID as read. Zero rows is success.
func (s *Service) MarkRead(ctx context.Context, readerID, otherID int64) (int64, error) {
	if readerID == otherID {
		return 0, errs.SelfReference("read messages from")
	}

	var updated int64
	err := s.tx.InPair(ctx, rules.NewPairKey(readerID, otherID), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		updated, err = s.messages.MarkRead(ctx, tx, readerID, otherID)
		return err
	})
	if err != nil {
		return 0, errs.Wrap("mark messages read", err)
	}
	return updated, nil
}

// ListConversations returns one entry per current match of userID, most
// recent activity first. Matches and messages come from one snapshot.
func (s *Service) ListConversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	var items []model.Conversation
	err := s.tx.Snapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		matchList, err := s.matches.ListForUser(ctx, tx, userID, s.cfg.MaxConversationList)
		if err != nil {
			return err
		}
		summaries, err := s.messages.Summaries(ctx, tx, userID)
		if err != nil {
			return err
		}

		items = make([]model.Conversation, 0, len(matchList))
		for _, match := range matchList {
			other := match.Other(userID)
			conv := model.Conversation{
				MatchID:     match.ID,
				OtherUserID: other,
				MatchedAt:   match.MatchedAt,
			}
			if summary, ok := summaries[other]; ok {
				latest := summary.Latest
				conv.LatestMessage = &latest
				conv.UnreadCount = summary.UnreadCount
			}
			items = append(items, conv)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap("list conversations", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastActivity().After(items[j].LastActivity())
	})
	return items, nil
}

// History returns the latest limit messages of a matched pair, oldest first.
func (s *Service) History(ctx context.Context, userID, otherID int64, limit int) ([]model.Message, error) {
	if userID == otherID {
		return nil, errs.SelfReference("message")
	}
	if limit <= 0 || limit > s.cfg.MaxHistoryLimit {
		limit = s.cfg.MaxHistoryLimit
	}
	key := rules.NewPairKey(userID, otherID)

	var items []model.Message
	err := s.tx.ReadPair(ctx, key, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := s.requireOpenPair(ctx, tx, userID, otherID); err != nil {
			return err
		}
		var err error
		items, err = s.messages.ListBetween(ctx, tx, key, limit)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("message history", err)
	}
	return items, nil
}

// EditMessage replaces the content of the caller's own message while the
// pair is still matched.
func (s *Service) EditMessage(ctx context.Context, callerID, messageID int64, content string) (model.Message, error) {
	content, err := s.validateContent(content)
	if err != nil {
		return model.Message{}, err
	}

	original, err := s.ownMessage(ctx, callerID, messageID)
	if err != nil {
		return model.Message{}, err
	}

	var msg model.Message
	err = s.tx.InPair(ctx, rules.NewPairKey(original.SenderID, original.ReceiverID), func(ctx context.Context, tx pgx.Tx) error {
		if _, ok, err := s.messages.Get(ctx, tx, messageID); err != nil {
			return errs.Wrap("get message", err)
		} else if !ok {
			return errs.NotFound("message")
		}
		if _, err := s.requireOpenPair(ctx, tx, original.SenderID, original.ReceiverID); err != nil {
			return err
		}

		msg, err = s.messages.UpdateContent(ctx, tx, messageID, content, s.now())
		if err != nil {
			return errs.Wrap("edit message", err)
		}
		return nil
	})
	if err != nil {
		return model.Message{}, errs.Wrap("edit message", err)
	}
	return msg, nil
}

func (s *Service) DeleteMessage(ctx context.Context, callerID, messageID int64) error {
	original, err := s.ownMessage(ctx, callerID, messageID)
	if err != nil {
		return err
	}

	err = s.tx.InPair(ctx, rules.NewPairKey(original.SenderID, original.ReceiverID), func(ctx context.Context, tx pgx.Tx) error {
		deleted, err := s.messages.Delete(ctx, tx, messageID)
		if err != nil {
			return errs.Wrap("delete message", err)
		}
		if !deleted {
			return errs.NotFound("message")
		}
		return nil
	})
	return errs.Wrap("delete message", err)
}

func (s *Service) ownMessage(ctx context.Context, callerID, messageID int64) (model.Message, error) {
	if messageID <= 0 {
		return model.Message{}, errs.NotFound("message")
	}
	msg, ok, err := s.messages.Get(ctx, nil, messageID)
	if err != nil {
		return model.Message{}, errs.Wrap("get message", err)
	}
	if !ok {
		return model.Message{}, errs.NotFound("message")
	}
	if msg.SenderID != callerID {
		return model.Message{}, errs.NotOwner("messages")
	}
	return msg, nil
}

// requireOpenPair fails unless the pair is matched and unblocked.
func (s *Service) requireOpenPair(ctx context.Context, tx pgx.Tx, actorID, otherID int64) (model.Match, error) {
	actorBlocks, otherBlocks, err := s.blocks.Between(ctx, tx, actorID, otherID)
	if err != nil {
		return model.Match{}, errs.Wrap("check blocks", err)
	}
	if actorBlocks || otherBlocks {
		return model.Match{}, errs.Blocked(actorBlocks)
	}

	match, ok, err := s.matches.Get(ctx, tx, rules.NewPairKey(actorID, otherID))
	if err != nil {
		return model.Match{}, errs.Wrap("get match", err)
	}
	if !ok {
		return model.Match{}, errs.ErrNotMatched
	}
	return match, nil
}

func (s *Service) validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errs.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxMessageLength {
		return "", errs.ErrContentTooLong
	}
	return content, nil
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewRunes]) + "…"
}
