package handlers

import (
	"net/http"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	ratesvc "github.com/ivankudzin/matchcore/internal/services/rate"
	swipesvc "github.com/ivankudzin/matchcore/internal/services/swipes"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type SwipeHandler struct {
	service  *swipesvc.Service
	resolver Resolver
	limiter  RateLimiter
}

func NewSwipeHandler(service *swipesvc.Service, resolver Resolver, limiter RateLimiter) *SwipeHandler {
	return &SwipeHandler{service: service, resolver: resolver, limiter: limiter}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, req.Target)
	if !ok {
		return
	}
	if !allowAction(w, r, h.limiter, ratesvc.ActionSwipe, identity.UserID) {
		return
	}

	result, err := h.service.RecordSwipe(r.Context(), identity.UserID, targetID, req.Status)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SwipeResponse{
		OK:           true,
		Swipe:        result.Swipe,
		Created:      result.Created,
		Changed:      result.Changed,
		MatchCreated: result.Match != nil,
		Match:        result.Match,
		TornDown:     result.TornDown,
		Removed:      result.Removed,
	})
}

func (h *SwipeHandler) Batch(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if !allowAction(w, r, h.limiter, ratesvc.ActionSwipe, identity.UserID) {
		return
	}

	// Unresolvable targets fail their own item only.
	resp := dto.SwipeBatchResponse{Failed: make([]dto.SwipeBatchError, 0)}
	items := make([]swipesvc.BatchItem, 0, len(req.Items))
	refs := make(map[int]string, len(req.Items))
	for i, item := range req.Items {
		refs[i] = item.Target
		targetID, err := h.resolver.Resolve(r.Context(), item.Target)
		if err != nil {
			if errs.IsRetryable(err) {
				httperrors.WriteDomain(w, err)
				return
			}
			resp.Failed = append(resp.Failed, batchError(i, item.Target, err))
			continue
		}
		items = append(items, swipesvc.BatchItem{Index: i, TargetID: targetID, Status: item.Status})
	}

	if len(items) == 0 && len(resp.Failed) > 0 {
		httperrors.Write(w, http.StatusOK, resp)
		return
	}

	result, err := h.service.RecordBatch(r.Context(), identity.UserID, items)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}

	resp.Processed = result.Processed
	resp.Created = result.Created
	resp.Updated = result.Updated
	resp.Unchanged = result.Unchanged
	resp.Matches = result.Matches
	for _, failed := range result.Failed {
		resp.Failed = append(resp.Failed, batchError(failed.Index, refs[failed.Index], failed.Err))
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *SwipeHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	items, err := h.service.ListByActor(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.SwipesResponse{Items: items})
}

func (h *SwipeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	stats, err := h.service.Stats(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.SwipeStatsResponse{
		Sent:           stats.Sent,
		Received:       stats.Received,
		PositiveSent:   stats.PositiveSent,
		Matches:        stats.Matches,
		ConversionRate: stats.ConversionRate,
	})
}

func (h *SwipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, pathTarget(r))
	if !ok {
		return
	}

	swipe, err := h.service.GetSwipe(r.Context(), identity.UserID, targetID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, swipe)
}

func (h *SwipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, pathTarget(r))
	if !ok {
		return
	}

	result, err := h.service.DeleteSwipe(r.Context(), identity.UserID, identity.UserID, targetID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.DeleteSwipeResponse{
		OK:       true,
		TornDown: result.TornDown,
		Removed:  result.Removed,
	})
}

func batchError(index int, ref string, err error) dto.SwipeBatchError {
	item := dto.SwipeBatchError{Index: index, Target: ref, Code: "TEMP_UNAVAILABLE", Message: "service temporarily unavailable, please retry"}
	if domainErr, ok := errs.AsError(err); ok {
		item.Code = domainErr.Code
		item.Message = domainErr.Message
	}
	return item
}
