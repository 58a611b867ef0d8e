package dto

import "github.com/ivankudzin/matchcore/internal/domain/model"

type MatchItemResponse struct {
	model.Match
	OtherUserID int64 `json:"other_user_id"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}

type UnmatchRequest struct {
	Target string `json:"target"`
}

type UnmatchResponse struct {
	OK      bool                `json:"ok"`
	Removed model.CascadeCounts `json:"removed"`
}
