package service

import (
	"context"
	"strings"

	"github.com/AnTengye/contractchat/pkg/logger"
)

// Checkout starts the hosted payment flow.
type Checkout struct {
	backend *BackendClient
	tokens  *TokenStore
}

func NewCheckout(backend *BackendClient, tokens *TokenStore) *Checkout {
	return &Checkout{backend: backend, tokens: tokens}
}

// CreateSession returns the provider URL the browser should be sent to.
func (c *Checkout) CreateSession(ctx context.Context) (string, error) {
	if c.tokens.Get() == "" {
		return "", ErrNoSession
	}
	checkoutURL, err := c.backend.CreateCheckoutSession(ctx)
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "checkout session created")
	return checkoutURL, nil
}

// Verify confirms a completed checkout. The session id is optional; without
// one the backend checks the user's latest checkout.
func (c *Checkout) Verify(ctx context.Context, sessionID string) (*VerifySessionResponse, error) {
	if c.tokens.Get() == "" {
		return nil, ErrNoSession
	}
	return c.backend.VerifySession(ctx, strings.TrimSpace(sessionID))
}
