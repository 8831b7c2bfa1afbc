// Package gateway talks to the hosted payment provider.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by gateways.
var (
	ErrSessionNotFound = errors.New("payment session not found")
	ErrSessionExpired  = errors.New("payment session expired")
)

// SessionStatus is the provider's view of a checkout session.
type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

// LineItem is one priced line shown on the hosted checkout page.
type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// OpenRequest describes a new checkout session.
type OpenRequest struct {
	Lines    []LineItem
	Currency string
	Metadata map[string]string
}

// Session is the state of a checkout session as reported by the provider.
type Session struct {
	Token      string
	Status     SessionStatus
	PaymentRef string
	Metadata   map[string]string
}

// Paid reports whether the provider has captured payment for the session.
func (s *Session) Paid() bool {
	return s.Status == SessionComplete
}

// Gateway opens and inspects hosted checkout sessions.
type Gateway interface {
	Open(ctx context.Context, req OpenRequest) (string, error)
	Get(ctx context.Context, token string) (*Session, error)
}

// MinorUnits converts a decimal amount to the provider's integer minor units.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
