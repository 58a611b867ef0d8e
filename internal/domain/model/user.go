package model

import "time"

type User struct {
	ID          int64     `json:"id"`
	ExternalRef string    `json:"external_ref"`
	CreatedAt   time.Time `json:"created_at"`
}
