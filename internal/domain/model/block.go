package model

import "time"

type Block struct {
	BlockerID int64     `json:"blocker_id"`
	BlockedID int64     `json:"blocked_id"`
	BlockedAt time.Time `json:"blocked_at"`
}
