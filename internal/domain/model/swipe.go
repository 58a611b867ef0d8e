package model

import (
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
)

type Swipe struct {
	ID        int64             `json:"id"`
	SwiperID  int64             `json:"swiper_id"`
	TargetID  int64             `json:"target_id"`
	Status    enums.SwipeStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type SwipeStatusCount struct {
	Status enums.SwipeStatus `json:"status"`
	Count  int               `json:"count"`
}
