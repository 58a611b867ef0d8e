package dto

import "github.com/ivankudzin/matchcore/internal/domain/model"

type NotificationsResponse struct {
	Items []model.Notification `json:"items"`
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

type MarkNotificationsReadRequest struct {
	IDs []string `json:"ids"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
