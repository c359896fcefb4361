// Package service contains the session manager and the catalog object list.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/model"
	"github.com/jk100/archiv-admin/internal/repository"
)

// StorageSlot is the fixed slot name of the persisted credential record.
const StorageSlot = "directus-data"

// AuthAPI is the part of the backend the session talks to.
type AuthAPI interface {
	// Login exchanges email and password for credentials.
	Login(ctx context.Context, email, password string) (model.Credentials, error)
	// Refresh exchanges a refresh token for new credentials.
	Refresh(ctx context.Context, refreshToken string) (model.Credentials, error)
	// Logout invalidates the refresh token remotely.
	Logout(ctx context.Context, refreshToken string) error
	// CurrentUser reads the profile owning accessToken.
	CurrentUser(ctx context.Context, accessToken string) (*model.User, error)
}

// SessionState is a snapshot of the session for display.
type SessionState struct {
	User          *model.User `json:"user,omitempty"`
	Authenticated bool        `json:"authenticated"`
	Loading       bool        `json:"loading"`
	LastError     string      `json:"last_error,omitempty"`
	IsAdmin       bool        `json:"is_admin"`
}

// Session owns login state, the persisted credential record and the current user.
// It implements oauth2.TokenSource so that backend clients can authenticate through it.
type Session struct {
	api       AuthAPI
	store     repository.CredentialRepository
	adminRole string
	log       *zap.Logger
	now       func() time.Time

	initFlight singleflight.Group

	mu            sync.RWMutex
	creds         model.Credentials
	user          *model.User
	authenticated bool
	loading       bool
	lastErr       string
}

var _ oauth2.TokenSource = (*Session)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionClock overrides time.Now for expiry checks.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession constructs an empty, unauthenticated session.
func NewSession(api AuthAPI, store repository.CredentialRepository, adminRoleID string, log *zap.Logger, opts ...SessionOption) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{api: api, store: store, adminRole: adminRoleID, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize replays the persisted credential record. Callers arriving while an
// initialization is in flight wait for that one instead of starting another.
// Failures are logged and leave the session unauthenticated; the only error returned is
// ctx.Err() when the caller stops waiting.
func (s *Session) Initialize(ctx context.Context) error {
	ch := s.initFlight.DoChan("init", func() (any, error) {
		s.initialize(context.WithoutCancel(ctx))
		return nil, nil
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) initialize(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	cr, err := s.store.Load(ctx, StorageSlot)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Warn("load stored credentials", zap.Error(err))
		}
		return
	}

	if cr.Expired(s.now()) {
		if cr.RefreshToken == "" {
			s.log.Info("stored credentials expired without refresh token")
			s.forget(ctx)
			return
		}
		fresh, err := s.api.Refresh(ctx, cr.RefreshToken)
		if err != nil {
			s.log.Warn("refresh stored credentials", zap.Error(err))
			s.forget(ctx)
			return
		}
		if err := s.store.Save(ctx, StorageSlot, fresh); err != nil {
			s.log.Warn("persist refreshed credentials", zap.Error(err))
		}
		cr = fresh
	}

	s.mu.Lock()
	s.creds = cr
	s.authenticated = true
	s.mu.Unlock()

	s.loadUser(ctx)
}

// Login authenticates against the backend, persists the credential record and loads the
// current user. Any failure is reported as errs.ErrInvalidCredentials with a generic message.
func (s *Session) Login(ctx context.Context, email, password string) error {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
	defer s.setLoading(false)

	cr, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.log.Warn("login failed", zap.String("email", email), zap.Error(err))
		s.mu.Lock()
		s.creds = model.Credentials{}
		s.user = nil
		s.authenticated = false
		s.lastErr = errs.MsgInvalidCredentials
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", errs.ErrInvalidCredentials, err)
	}

	if err := s.store.Save(ctx, StorageSlot, cr); err != nil {
		s.log.Warn("persist credentials", zap.Error(err))
	}

	s.mu.Lock()
	s.creds = cr
	s.authenticated = true
	s.mu.Unlock()

	s.loadUser(ctx)
	return nil
}

// Logout invalidates the session remotely (best effort) and clears it locally.
func (s *Session) Logout(ctx context.Context) {
	s.mu.RLock()
	refresh := s.creds.RefreshToken
	s.mu.RUnlock()

	if refresh != "" {
		if err := s.api.Logout(ctx, refresh); err != nil {
			s.log.Warn("remote logout", zap.Error(err))
		}
	}
	s.forget(ctx)
}

// Invalidate force-clears a session whose credentials the backend rejected.
func (s *Session) Invalidate(ctx context.Context) {
	s.log.Info("session invalidated")
	s.forget(ctx)
}

// forget clears the in-memory state and the persisted record.
func (s *Session) forget(ctx context.Context) {
	s.mu.Lock()
	s.creds = model.Credentials{}
	s.user = nil
	s.authenticated = false
	s.mu.Unlock()

	if err := s.store.Delete(ctx, StorageSlot); err != nil {
		s.log.Warn("delete stored credentials", zap.Error(err))
	}
}

func (s *Session) loadUser(ctx context.Context) {
	s.mu.RLock()
	token := s.creds.AccessToken
	s.mu.RUnlock()

	u, err := s.api.CurrentUser(ctx, token)
	if err != nil {
		s.log.Warn("fetch current user", zap.Error(err))
		if errors.Is(err, errs.ErrUnauthorized) {
			s.forget(ctx)
		}
		return
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Authenticated reports whether the session holds accepted credentials.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// IsAdmin reports whether the current user's role is the configured administrator role.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAdminLocked()
}

func (s *Session) isAdminLocked() bool {
	return s.user != nil && s.adminRole != "" && s.user.Role.ID == s.adminRole
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// LastError returns the message of the last failed login.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SessionState{
		Authenticated: s.authenticated,
		Loading:       s.loading,
		LastError:     s.lastErr,
		IsAdmin:       s.isAdminLocked(),
	}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// AccessToken returns the live access token, or "" when there is none.
func (s *Session) AccessToken() string {
	tok, err := s.Token()
	if err != nil {
		return ""
	}
	return tok.AccessToken
}

// Token implements oauth2.TokenSource. It fails with errs.ErrUnauthorized when the
// session holds no credentials.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated || s.creds.AccessToken == "" {
		return nil, errs.ErrUnauthorized
	}
	return &oauth2.Token{
		AccessToken:  s.creds.AccessToken,
		RefreshToken: s.creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.creds.ExpiryTime(),
	}, nil
}
