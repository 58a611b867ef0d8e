package dto

import (
	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type SwipeRequest struct {
	Target string `json:"target"`
	Status string `json:"status"`
}

type SwipeResponse struct {
	OK           bool                `json:"ok"`
	Swipe        model.Swipe         `json:"swipe"`
	Created      bool                `json:"created"`
	Changed      bool                `json:"changed"`
	MatchCreated bool                `json:"match_created"`
	Match        *model.Match        `json:"match,omitempty"`
	TornDown     bool                `json:"torn_down"`
	Removed      model.CascadeCounts `json:"removed"`
}

type SwipeBatchRequest struct {
	Items []SwipeRequest `json:"items"`
}

type SwipeBatchError struct {
	Index   int    `json:"index"`
	Target  string `json:"target"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SwipeBatchResponse struct {
	Processed int               `json:"processed"`
	Created   int               `json:"created"`
	Updated   int               `json:"updated"`
	Unchanged int               `json:"unchanged"`
	Matches   int               `json:"matches"`
	Failed    []SwipeBatchError `json:"failed"`
}

type SwipesResponse struct {
	Items []model.Swipe `json:"items"`
}

type SwipeStatsResponse struct {
	Sent           map[enums.SwipeStatus]int `json:"sent"`
	Received       map[enums.SwipeStatus]int `json:"received"`
	PositiveSent   int                       `json:"positive_sent"`
	Matches        int                       `json:"matches"`
	ConversionRate float64                   `json:"conversion_rate"`
}

type DeleteSwipeResponse struct {
	OK       bool                `json:"ok"`
	TornDown bool                `json:"torn_down"`
	Removed  model.CascadeCounts `json:"removed"`
}
