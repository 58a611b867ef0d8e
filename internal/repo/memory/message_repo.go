package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type MessageRepo struct {
	s *Store
}

func NewMessageRepo(s *Store) *MessageRepo {
	return &MessageRepo{s: s}
}

func (r *MessageRepo) Create(ctx context.Context, _ pgx.Tx, senderID, receiverID int64, content string, now time.Time) (model.Message, error) {
	if err := r.s.lock(ctx, "messages.create"); err != nil {
		return model.Message{}, err
	}
	defer r.s.mu.Unlock()

	r.s.messageSeq++
	msg := model.Message{
		ID:         r.s.messageSeq,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     now.UTC(),
	}
	r.s.messages[msg.ID] = msg
	return msg, nil
}

func (r *MessageRepo) Get(ctx context.Context, _ pgx.Tx, messageID int64) (model.Message, bool, error) {
	if err := r.s.lock(ctx, "messages.get"); err != nil {
		return model.Message{}, false, err
	}
	defer r.s.mu.Unlock()

	msg, ok := r.s.messages[messageID]
	return msg, ok, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, _ pgx.Tx, messageID int64, content string, now time.Time) (model.Message, error) {
	if err := r.s.lock(ctx, "messages.update_content"); err != nil {
		return model.Message{}, err
	}
	defer r.s.mu.Unlock()

	msg, ok := r.s.messages[messageID]
	if !ok {
		return model.Message{}, fmt.Errorf("update message: message %d not found", messageID)
	}
	edited := now.UTC()
	msg.Content = content
	msg.EditedAt = &edited
	r.s.messages[messageID] = msg
	return msg, nil
}

func (r *MessageRepo) Delete(ctx context.Context, _ pgx.Tx, messageID int64) (bool, error) {
	if err := r.s.lock(ctx, "messages.delete"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[messageID]; !ok {
		return false, nil
	}
	delete(r.s.messages, messageID)
	return true, nil
}

func (r *MessageRepo) DeleteBetween(ctx context.Context, _ pgx.Tx, key rules.PairKey) (int64, error) {
	if err := r.s.lock(ctx, "messages.delete_between"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var removed int64
	for id, msg := range r.s.messages {
		if inPair(msg, key) {
			delete(r.s.messages, id)
			removed++
		}
	}
	return removed, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, _ pgx.Tx, readerID, senderID int64) (int64, error) {
	if err := r.s.lock(ctx, "messages.mark_read"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var updated int64
	for id, msg := range r.s.messages {
		if msg.ReceiverID == readerID && msg.SenderID == senderID && !msg.IsRead {
			msg.IsRead = true
			r.s.messages[id] = msg
			updated++
		}
	}
	return updated, nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, _ pgx.Tx, key rules.PairKey, limit int) ([]model.Message, error) {
	if err := r.s.lock(ctx, "messages.list_between"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	items := make([]model.Message, 0)
	for _, msg := range r.s.messages {
		if inPair(msg, key) {
			items = append(items, msg)
		}
	}
	sortMessages(items)

	if limit <= 0 {
		limit = 50
	}
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (r *MessageRepo) CountBetween(ctx context.Context, _ pgx.Tx, key rules.PairKey) (int64, error) {
	if err := r.s.lock(ctx, "messages.count_between"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var count int64
	for _, msg := range r.s.messages {
		if inPair(msg, key) {
			count++
		}
	}
	return count, nil
}

func (r *MessageRepo) Summaries(ctx context.Context, _ pgx.Tx, userID int64) (map[int64]model.ThreadSummary, error) {
	if err := r.s.lock(ctx, "messages.summaries"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	out := make(map[int64]model.ThreadSummary)
	for _, msg := range r.s.messages {
		var other int64
		switch userID {
		case msg.SenderID:
			other = msg.ReceiverID
		case msg.ReceiverID:
			other = msg.SenderID
		default:
			continue
		}

		item, ok := out[other]
		if !ok || later(msg, item.Latest) {
			item.Latest = msg
		}
		item.OtherUserID = other
		if msg.ReceiverID == userID && !msg.IsRead {
			item.UnreadCount++
		}
		out[other] = item
	}
	return out, nil
}

func inPair(msg model.Message, key rules.PairKey) bool {
	return (msg.SenderID == key.Low && msg.ReceiverID == key.High) ||
		(msg.SenderID == key.High && msg.ReceiverID == key.Low)
}

func later(a, b model.Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.After(b.SentAt)
	}
	return a.ID > b.ID
}

func sortMessages(items []model.Message) {
	sort.Slice(items, func(i, j int) bool { return later(items[j], items[i]) })
}
