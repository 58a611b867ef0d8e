package model

import "time"

// Match is stored with UserAID < UserBID.
type Match struct {
	ID                int64     `json:"id"`
	UserAID           int64     `json:"user_a_id"`
	UserBID           int64     `json:"user_b_id"`
	FormedFromSwipeID int64     `json:"formed_from_swipe_id"`
	IsMutual          bool      `json:"is_mutual"`
	MatchedAt         time.Time `json:"matched_at"`
}

// Other returns the participant that is not userID.
func (m Match) Other(userID int64) int64 {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}

func (m Match) Includes(userID int64) bool {
	return m.UserAID == userID || m.UserBID == userID
}
