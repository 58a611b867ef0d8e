package handlers

import (
	"net/http"
	"strings"

	"github.com/ivankudzin/matchcore/internal/services/notify"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type NotificationHandler struct {
	inbox *notify.Inbox
}

func NewNotificationHandler(inbox *notify.Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.inbox == nil {
		writeInternal(w, "NOTIFICATIONS_UNAVAILABLE", "notification inbox is disabled")
		return
	}

	unreadOnly := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("unread")), "true")
	items, err := h.inbox.List(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 0), unreadOnly)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.NotificationsResponse{Items: items})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.inbox == nil {
		writeInternal(w, "NOTIFICATIONS_UNAVAILABLE", "notification inbox is disabled")
		return
	}

	count, err := h.inbox.UnreadCount(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.UnreadCountResponse{Unread: count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.inbox == nil {
		writeInternal(w, "NOTIFICATIONS_UNAVAILABLE", "notification inbox is disabled")
		return
	}

	var req dto.MarkNotificationsReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	updated, err := h.inbox.MarkRead(r.Context(), identity.UserID, req.IDs)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MarkReadResponse{OK: true, Updated: updated})
}
