package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moneylens/internal/auth"
	"moneylens/internal/core"
	"moneylens/internal/storage"
)

// Session is what register and login hand back to the client.
type Session struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

type UserService struct {
	store  storage.UserStore
	issuer *auth.Issuer
	now    func() time.Time
}

func NewUserService(store storage.UserStore, issuer *auth.Issuer) *UserService {
	return &UserService{store: store, issuer: issuer, now: time.Now}
}

// Register creates an account and signs the caller in. Emails are compared
// case-insensitively.
func (s *UserService) Register(ctx context.Context, r core.Registration) (Session, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return Session{}, err
	}

	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return Session{}, err
	}

	u, err := s.store.CreateUser(ctx, core.User{
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.session(u)
}

// Login returns auth.ErrBadCredentials for an unknown email and for a wrong
// password alike.
func (s *UserService) Login(ctx context.Context, c core.Credentials) (Session, error) {
	if err := c.Validate(); err != nil {
		return Session{}, err
	}

	u, err := s.store.UserByEmail(ctx, strings.TrimSpace(c.Email))
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, auth.ErrBadCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}

	if err := auth.CheckPassword(u.PasswordHash, c.Password); err != nil {
		return Session{}, err
	}
	return s.session(u)
}

func (s *UserService) session(u core.User) (Session, error) {
	token, err := s.issuer.Issue(auth.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (core.User, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return core.User{}, fmt.Errorf("find user %s: %w", userID, err)
	}
	return u, nil
}
