package model

import (
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
)

type NotificationPayload struct {
	ActorID   int64             `json:"actor_id"`
	MatchID   int64             `json:"match_id,omitempty"`
	MessageID int64             `json:"message_id,omitempty"`
	SwipeID   int64             `json:"swipe_id,omitempty"`
	Status    enums.SwipeStatus `json:"status,omitempty"`
	Preview   string            `json:"preview,omitempty"`
}

type Notification struct {
	ID          string                 `json:"id"`
	RecipientID int64                  `json:"recipient_id"`
	Type        enums.NotificationType `json:"type"`
	Payload     NotificationPayload    `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	ReadAt      *time.Time             `json:"read_at,omitempty"`
}
