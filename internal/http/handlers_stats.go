package http

import (
	"context"
	"net/http"
	"time"

	"moneylens/internal/auth"
	"moneylens/internal/query"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	st, err := s.expenses.Stats(r.Context(), id.UserID, query.ParamsFromValues(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Payload(st).Write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Payload(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports whether the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Payload(map[string]string{"status": "ready"}).Write(w)
}

func handleHome(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Payload(map[string]string{"message": "MoneyLens API"}).Write(w)
}
