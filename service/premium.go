package service

import (
	"context"
	"sync/atomic"

	"github.com/AnTengye/contractchat/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// PremiumReconciler keeps the premium view in line with the backend.
// Concurrent refreshes share one in-flight call.
type PremiumReconciler struct {
	backend *BackendClient
	session *Session
	tokens  *TokenStore

	group      singleflight.Group
	refreshing atomic.Bool
}

// NewPremiumReconciler also hooks the reconciler into session's payment
// return.
func NewPremiumReconciler(backend *BackendClient, session *Session, tokens *TokenStore) *PremiumReconciler {
	r := &PremiumReconciler{
		backend: backend,
		session: session,
		tokens:  tokens,
	}
	session.premium = r
	return r
}

// HasPremium reads the cached profile only.
func (r *PremiumReconciler) HasPremium() bool {
	u := r.session.User()
	return u != nil && u.Premium.Active
}

func (r *PremiumReconciler) Refreshing() bool {
	return r.refreshing.Load()
}

// Refresh asks the backend to re-evaluate the subscription and reloads the
// profile. It never fails: any error yields false. A caller whose context
// ends early gets false while the shared refresh carries on for the others.
func (r *PremiumReconciler) Refresh(ctx context.Context) bool {
	ch := r.group.DoChan("refresh", func() (any, error) {
		r.refreshing.Store(true)
		defer r.refreshing.Store(false)
		return r.refresh(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		active, _ := res.Val.(bool)
		return active
	case <-ctx.Done():
		return false
	}
}

func (r *PremiumReconciler) refresh(ctx context.Context) bool {
	if r.tokens.Get() == "" {
		return false
	}

	resp, err := r.backend.RefreshPremiumStatus(ctx)
	if err != nil {
		logger.Warn(ctx, "premium status refresh failed", "error", err)
		return false
	}
	if resp.Token != "" {
		if err := r.tokens.Set(resp.Token); err != nil {
			logger.Error(ctx, "failed to persist rotated token", "error", err)
			return false
		}
	}

	user, err := r.backend.Me(ctx)
	if err != nil {
		logger.Warn(ctx, "profile reload after premium refresh failed", "error", err)
		return false
	}
	r.session.SetUser(user)
	logger.Info(ctx, "premium status refreshed", "premium", user.Premium.Active)
	return user.Premium.Active
}
