package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	pingers map[string]Pinger
}

// NewHealthHandler checks every named dependency on each call. Nil pingers
// are skipped, so a memory-backed process is always healthy.
func NewHealthHandler(pingers map[string]Pinger) *HealthHandler {
	return &HealthHandler{pingers: pingers}
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, pinger := range h.pingers {
		if pinger == nil {
			continue
		}
		if err := pinger.Ping(ctx); err != nil {
			httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
				Code:    "DEPENDENCY_DOWN",
				Message: name + " is unreachable",
			})
			return
		}
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}
