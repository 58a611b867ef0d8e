package model

import "time"

type Conversation struct {
	MatchID       int64     `json:"match_id"`
	OtherUserID   int64     `json:"other_user_id"`
	MatchedAt     time.Time `json:"matched_at"`
	LatestMessage *Message  `json:"latest_message,omitempty"`
	UnreadCount   int       `json:"unread_count"`
}

// LastActivity is the latest message time, or the match time for an empty conversation.
func (c Conversation) LastActivity() time.Time {
	if c.LatestMessage != nil {
		return c.LatestMessage.SentAt
	}
	return c.MatchedAt
}

// ThreadSummary is the latest message and unread count of one pair thread,
// seen from the user the summary was built for.
type ThreadSummary struct {
	OtherUserID int64
	Latest      Message
	UnreadCount int
}
