package dto

import "github.com/ivankudzin/matchcore/internal/domain/model"

type BlockRequest struct {
	Target string `json:"target"`
}

type BlockResponse struct {
	OK      bool                `json:"ok"`
	Block   model.Block         `json:"block"`
	Removed model.CascadeCounts `json:"removed"`
}

type BlocksResponse struct {
	Items []model.Block `json:"items"`
}

type BlockStatusResponse struct {
	Blocked         bool `json:"blocked"`
	BlockedByViewer bool `json:"blocked_by_you"`
	BlockedByOther  bool `json:"blocked_you"`
}
