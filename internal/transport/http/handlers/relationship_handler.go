package handlers

import (
	"net/http"

	relsvc "github.com/ivankudzin/matchcore/internal/services/relationships"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type RelationshipHandler struct {
	service  *relsvc.Service
	resolver Resolver
}

func NewRelationshipHandler(service *relsvc.Service, resolver Resolver) *RelationshipHandler {
	return &RelationshipHandler{service: service, resolver: resolver}
}

func (h *RelationshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "RELATIONSHIP_SERVICE_UNAVAILABLE", "relationship service is unavailable")
		return
	}
	targetID, ok := resolveTarget(w, r, h.resolver, pathTarget(r))
	if !ok {
		return
	}

	view, err := h.service.GetRelationship(r.Context(), identity.UserID, targetID)
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.RelationshipResponse{
		UserID:       view.ViewerID,
		OtherUserID:  view.OtherID,
		Relationship: view.Relationship,
		State:        view.State,
		MatchID:      view.MatchID,
		BlockedBy:    view.BlockedBy,
	})
}

func (h *RelationshipHandler) Connections(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "RELATIONSHIP_SERVICE_UNAVAILABLE", "relationship service is unavailable")
		return
	}

	conns, err := h.service.Connections(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		httperrors.WriteDomain(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, dto.ConnectionsResponse{
		Matches:  matchItems(conns.Matches, identity.UserID),
		Outgoing: conns.Outgoing,
		Incoming: conns.Incoming,
	})
}
