package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	convsvc "github.com/ivankudzin/matchcore/internal/services/conversations"
	ratesvc "github.com/ivankudzin/matchcore/internal/services/rate"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type MessageHandler struct {
	service  *convsvc.Service
	resolver Resolver
	limiter  RateLimiter
}

func NewMessageHandler(service *convsvc.Service, resolver Resolver, limiter RateLimiter) *MessageHandler {
	return &MessageHandler{service: service, resolver: resolver, limiter: limiter}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGE_SERVICE_UNAVAILABLE", "message service is unavailable")
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, req.Target)
	if !ok {
		return
	}
	if !allowAction(w, r, h.limiter, ratesvc.ActionMessage, identity.UserID) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), identity.UserID, targetID, req.Content)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, msg)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGE_SERVICE_UNAVAILABLE", "message service is unavailable")
		return
	}

	var req dto.MarkReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, req.Target)
	if !ok {
		return
	}

	updated, err := h.service.MarkRead(r.Context(), identity.UserID, targetID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MarkReadResponse{OK: true, Updated: updated})
}

func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGE_SERVICE_UNAVAILABLE", "message service is unavailable")
		return
	}

	items, err := h.service.ListConversations(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.ConversationsResponse{Items: items})
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGE_SERVICE_UNAVAILABLE", "message service is unavailable")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, pathTarget(r))
	if !ok {
		return
	}

	items, err := h.service.History(r.Context(), identity.UserID, targetID, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{Items: items})
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGE_SERVICE_UNAVAILABLE", "message service is unavailable")
		return
	}
	messageID, ok := pathMessageID(w, r)
	if !ok {
		return
	}

	var req dto.EditMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.service.EditMessage(r.Context(), identity.UserID, messageID, req.Content)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGE_SERVICE_UNAVAILABLE", "message service is unavailable")
		return
	}
	messageID, ok := pathMessageID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(r.Context(), identity.UserID, messageID); err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func pathMessageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		httperrors.WriteDomain(w, errs.NotFound("message"))
		return 0, false
	}
	return id, true
}
