package handlers

import (
	"net/http"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	matchessvc "github.com/ivankudzin/matchcore/internal/services/matches"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type MatchesHandler struct {
	engine   *matchessvc.Engine
	resolver Resolver
}

func NewMatchesHandler(engine *matchessvc.Engine, resolver Resolver) *MatchesHandler {
	return &MatchesHandler{engine: engine, resolver: resolver}
}

func (h *MatchesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.engine == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	items, err := h.engine.ListMatches(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: matchItems(items, identity.UserID)})
}

func (h *MatchesHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.engine == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	var req dto.UnmatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, req.Target)
	if !ok {
		return
	}

	removed, err := h.engine.Unmatch(r.Context(), identity.UserID, targetID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.UnmatchResponse{OK: true, Removed: removed})
}

func matchItems(items []model.Match, viewerID int64) []dto.MatchItemResponse {
	out := make([]dto.MatchItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.MatchItemResponse{Match: item, OtherUserID: item.Other(viewerID)})
	}
	return out
}
