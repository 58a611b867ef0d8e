package dto

import (
	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type RelationshipResponse struct {
	UserID       int64              `json:"user_id"`
	OtherUserID  int64              `json:"other_user_id"`
	Relationship enums.Relationship `json:"relationship"`
	State        enums.PairState    `json:"state"`
	MatchID      int64              `json:"match_id,omitempty"`
	BlockedBy    int64              `json:"blocked_by,omitempty"`
}

type ConnectionsResponse struct {
	Matches  []MatchItemResponse `json:"matches"`
	Outgoing []model.Swipe       `json:"outgoing"`
	Incoming []model.Swipe       `json:"incoming"`
}
