package dto

import "github.com/ivankudzin/matchcore/internal/domain/model"

type SendMessageRequest struct {
	Target  string `json:"target"`
	Content string `json:"content"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type MarkReadRequest struct {
	Target string `json:"target"`
}

type MarkReadResponse struct {
	OK      bool  `json:"ok"`
	Updated int64 `json:"updated"`
}

type MessagesResponse struct {
	Items []model.Message `json:"items"`
}

type ConversationsResponse struct {
	Items []model.Conversation `json:"items"`
}
