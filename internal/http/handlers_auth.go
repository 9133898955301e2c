package http

import (
	"errors"
	"net/http"

	"moneylens/internal/auth"
	"moneylens/internal/core"
	applog "moneylens/internal/log"
	"moneylens/internal/storage"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg core.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.users.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		applog.FieldUserID, sess.User.ID,
		applog.FieldOperation, applog.OpRegister)
	NewJSONResponse().Status(http.StatusCreated).Payload(sess).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds core.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.users.Login(r.Context(), creds)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Login rejected",
				applog.FieldOperation, applog.OpLogin,
				applog.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Payload(sess).Write(w)
}

// handleMe returns the caller's profile.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	u, err := s.users.Profile(r.Context(), id.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		// The token outlived its account.
		writeError(w, r, auth.ErrInvalidToken)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Payload(u).Write(w)
}
