package handlers

import (
	"net/http"

	blocksvc "github.com/ivankudzin/matchcore/internal/services/blocks"
	ratesvc "github.com/ivankudzin/matchcore/internal/services/rate"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type BlockHandler struct {
	service  *blocksvc.Service
	resolver Resolver
	limiter  RateLimiter
}

func NewBlockHandler(service *blocksvc.Service, resolver Resolver, limiter RateLimiter) *BlockHandler {
	return &BlockHandler{service: service, resolver: resolver, limiter: limiter}
}

func (h *BlockHandler) Block(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCK_SERVICE_UNAVAILABLE", "block service is unavailable")
		return
	}

	var req dto.BlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, req.Target)
	if !ok {
		return
	}
	if !allowAction(w, r, h.limiter, ratesvc.ActionBlock, identity.UserID) {
		return
	}

	result, err := h.service.Block(r.Context(), identity.UserID, targetID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.BlockResponse{
		OK:      true,
		Block:   result.Block,
		Removed: result.Removed,
	})
}

func (h *BlockHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCK_SERVICE_UNAVAILABLE", "block service is unavailable")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, pathTarget(r))
	if !ok {
		return
	}

	if err := h.service.Unblock(r.Context(), identity.UserID, targetID); err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *BlockHandler) Check(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCK_SERVICE_UNAVAILABLE", "block service is unavailable")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, pathTarget(r))
	if !ok {
		return
	}

	status, err := h.service.Check(r.Context(), identity.UserID, targetID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.BlockStatusResponse{
		Blocked:         status.Blocked(),
		BlockedByViewer: status.BlockedByViewer,
		BlockedByOther:  status.BlockedByOther,
	})
}

func (h *BlockHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCK_SERVICE_UNAVAILABLE", "block service is unavailable")
		return
	}

	items, err := h.service.ListBlocked(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.BlocksResponse{Items: items})
}

func (h *BlockHandler) ListBlockers(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "BLOCK_SERVICE_UNAVAILABLE", "block service is unavailable")
		return
	}

	items, err := h.service.ListBlockers(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.BlocksResponse{Items: items})
}
