package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/AnTengye/contractchat/model"
	"github.com/AnTengye/contractchat/pkg/logger"
)

// View is what the client should render.
type View string

const (
	ViewLogin View = "login"
	ViewApp   View = "app"
)

// BootstrapParams are the URL query values inspected on startup.
type BootstrapParams struct {
	Token          string
	PaymentSuccess bool
	SessionID      string
}

func ParseBootstrapParams(q url.Values) BootstrapParams {
	return BootstrapParams{
		Token:          q.Get("token"),
		PaymentSuccess: q.Get("payment") == "success",
		SessionID:      q.Get("session_id"),
	}
}

// CarriesState reports whether the URL held anything that must be stripped.
func (p BootstrapParams) CarriesState() bool {
	return p.Token != "" || p.PaymentSuccess || p.SessionID != ""
}

type BootstrapResult struct {
	View            View        `json:"view"`
	User            *model.User `json:"user,omitempty"`
	CleanURL        bool        `json:"clean_url"`
	PaymentVerified bool        `json:"payment_verified"`
}

// Session owns the cached user profile next to the stored token.
type Session struct {
	backend  *BackendClient
	tokens   *TokenStore
	checkout *Checkout
	premium  *PremiumReconciler // set by NewPremiumReconciler
	now      func() time.Time

	mu        sync.RWMutex
	user      *model.User
	onSignOut []func()
}

func NewSession(backend *BackendClient, tokens *TokenStore) *Session {
	s := &Session{
		backend:  backend,
		tokens:   tokens,
		checkout: NewCheckout(backend, tokens),
		now:      time.Now,
	}
	backend.OnUnauthorized(s.signOut)
	return s
}

// OnSignOut registers fns to run whenever the session ends: on logout, on a
// 401 from the backend and when the profile cannot be loaded. They must not
// call the backend.
func (s *Session) OnSignOut(fns ...func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignOut = append(s.onSignOut, fns...)
}

// User returns the cached profile or nil. The value is replaced wholesale on
// every refresh and never mutated in place.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) SetUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

func (s *Session) dropUser() {
	s.SetUser(nil)
}

// signOut drops the user and everything the client kept on their behalf.
func (s *Session) signOut() {
	s.mu.Lock()
	s.user = nil
	hooks := append([]func(){}, s.onSignOut...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// RevokePremium marks the cached profile as not premium without touching
// the token.
func (s *Session) RevokePremium() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		s.user = s.user.WithPremiumRevoked()
	}
}

// Authenticated requires both a stored token and a loaded profile.
func (s *Session) Authenticated() bool {
	return s.tokens.Get() != "" && s.User() != nil
}

func (s *Session) View() View {
	if s.Authenticated() {
		return ViewApp
	}
	return ViewLogin
}

func (s *Session) Logout() error {
	s.signOut()
	return s.tokens.Clear()
}

// StatusReport is the backend status as seen with the stored token.
type StatusReport struct {
	TokenSent bool           `json:"token_sent"`
	Service   map[string]any `json:"service"`
}

// CheckBackend calls the backend status endpoint with the stored token, if
// any. A rejected token ends the session like any other 401.
func (s *Session) CheckBackend(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{TokenSent: s.tokens.Get() != ""}
	status, err := s.backend.ServiceStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil {
		status = map[string]any{}
	}
	report.Service = status
	return report, nil
}

// LoginURL is the backend OAuth entry the browser is sent to.
func (s *Session) LoginURL() string {
	return s.backend.URL("/auth/google")
}

// LoadUser fetches the profile. Any failure, transport errors included,
// clears the token and the cached user.
func (s *Session) LoadUser(ctx context.Context) (*model.User, error) {
	token := s.tokens.Get()
	if token == "" {
		s.dropUser()
		return nil, ErrNoSession
	}
	if info := InspectToken(token, s.now()); info.Expired {
		s.failClosed(ctx, errStaleToken)
		return nil, errStaleToken
	}

	user, err := s.backend.Me(ctx)
	if err != nil {
		s.failClosed(ctx, err)
		return nil, err
	}
	s.SetUser(user)
	logger.Info(logger.With(ctx, logger.EmailKey, user.Email), "user profile loaded",
		"premium", user.Premium.Active,
		"premium_source", user.Premium.Source,
	)
	return user, nil
}

func (s *Session) failClosed(ctx context.Context, cause error) {
	logger.Warn(ctx, "profile unavailable, signing out", "error", cause)
	s.signOut()
	if err := s.tokens.Clear(); err != nil {
		logger.Error(ctx, "failed to clear token", "error", err)
	}
}

// Bootstrap decides the startup state from the URL parameters and the stored
// token. It may be called with a stale or already consumed token.
func (s *Session) Bootstrap(ctx context.Context, p BootstrapParams) *BootstrapResult {
	result := &BootstrapResult{CleanURL: p.CarriesState()}

	switch {
	case p.Token != "":
		if err := s.tokens.Set(p.Token); err != nil {
			logger.Error(ctx, "failed to persist token", "error", err)
		}
	case p.PaymentSuccess:
		if s.tokens.Get() == "" {
			s.dropUser()
			result.View = ViewLogin
			return result
		}
		result.PaymentVerified = s.verifyPayment(ctx, p.SessionID)
		if s.premium != nil {
			// picks up a token rotated by the subscription refresh
			s.premium.Refresh(ctx)
		}
	default:
		if s.tokens.Get() == "" {
			s.dropUser()
			result.View = ViewLogin
			return result
		}
	}

	user, err := s.LoadUser(ctx)
	if err != nil {
		result.View = ViewLogin
		return result
	}
	result.View = ViewApp
	result.User = user
	return result
}

// verifyPayment confirms a checkout. Failure is logged and otherwise ignored:
// the profile is reloaded either way so a late webhook cannot strand the user.
func (s *Session) verifyPayment(ctx context.Context, sessionID string) bool {
	resp, err := s.checkout.Verify(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			logger.Warn(ctx, "payment verification failed", "session_id", sessionID, "error", err)
		}
		return false
	}
	if resp.Token != "" {
		if err := s.tokens.Set(resp.Token); err != nil {
			logger.Error(ctx, "failed to persist rotated token", "error", err)
		}
	}
	logger.Info(ctx, "payment session verified", "session_id", sessionID, "status", resp.Status)
	return resp.Verified || resp.Status == "complete" || resp.Status == "paid"
}
