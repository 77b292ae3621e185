package model

import (
	"encoding/json"
	"strings"
)

// Subscription statuses that grant premium access.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
)

// PremiumState is the normalized premium view of a profile. Source names the
// backend field that granted access, empty when inactive.
type PremiumState struct {
	Active bool   `json:"active"`
	Source string `json:"source,omitempty"`
}

// User mirrors the backend profile. The backend reports premium access in
// several redundant fields; Premium is computed from all of them when the
// profile is decoded and is the only value callers should consult.
type User struct {
	ID                     string `json:"id,omitempty"`
	Name                   string `json:"name"`
	Email                  string `json:"email"`
	Picture                string `json:"picture,omitempty"`
	Credits                int    `json:"credits"`
	HasPremium             bool   `json:"has_premium"`
	HasPremiumSubscription bool   `json:"hasPremiumSubscription"`
	SubscriptionStatus     string `json:"subscription_status,omitempty"`

	Premium PremiumState `json:"premium"`
}

// ComputePremium ORs every recognized premium field.
func ComputePremium(hasPremium, hasPremiumSubscription bool, subscriptionStatus string) PremiumState {
	switch {
	case hasPremium:
		return PremiumState{Active: true, Source: "has_premium"}
	case hasPremiumSubscription:
		return PremiumState{Active: true, Source: "hasPremiumSubscription"}
	}
	switch strings.ToLower(strings.TrimSpace(subscriptionStatus)) {
	case SubscriptionActive, SubscriptionTrialing:
		return PremiumState{Active: true, Source: "subscription_status"}
	}
	return PremiumState{}
}

func (u *User) UnmarshalJSON(data []byte) error {
	type raw User
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*u = User(r)
	u.Premium = ComputePremium(u.HasPremium, u.HasPremiumSubscription, u.SubscriptionStatus)
	return nil
}

// WithPremiumRevoked returns a copy whose premium state is inactive. Used when
// the backend rejects a premium action even though the cached profile said
// otherwise.
func (u User) WithPremiumRevoked() *User {
	u.Premium = PremiumState{}
	return &u
}
