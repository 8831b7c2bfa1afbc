// Package intent seals checkout snapshots into payment session metadata.
//
// The snapshot travels with the gateway session as plain metadata fields so
// the hosted checkout can show it, and an HS256 token over the canonical
// (RFC 8785) digest of those fields lets fulfilment detect any edit.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gowebpki/jcs"
	"github.com/shopspring/decimal"
)

// Metadata keys written to the payment session.
const (
	KeyItems    = "items"
	KeySubtotal = "subtotal"
	KeyTotal    = "total"
	KeyCurrency = "currency"
	KeyIntent   = "intent"
)

const issuer = "storefront-checkout"

// Signer converts snapshots to and from gateway metadata.
type Signer interface {
	Sign(snapshot model.Snapshot) (map[string]string, error)
	Verify(metadata map[string]string) (model.Snapshot, error)
}

type claims struct {
	Digest string `json:"dig"`
	jwt.RegisteredClaims
}

type hmacSigner struct {
	key []byte
	now func() time.Time
}

// NewSigner returns a Signer keyed with key.
func NewSigner(key []byte) Signer {
	return &hmacSigner{key: key, now: time.Now}
}

// Sign serialises the snapshot and appends a token binding the fields together.
func (s *hmacSigner) Sign(snapshot model.Snapshot) (map[string]string, error) {
	items, err := json.Marshal(snapshot.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot items: %w", err)
	}

	metadata := map[string]string{
		KeyItems:    string(items),
		KeySubtotal: snapshot.Subtotal.StringFixed(2),
		KeyTotal:    snapshot.Total.StringFixed(2),
		KeyCurrency: snapshot.Currency,
	}

	digest, err := digestOf(metadata)
	if err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Digest: digest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign snapshot: %w", err)
	}

	metadata[KeyIntent] = signed
	return metadata, nil
}

// Verify checks the token against the metadata fields and rebuilds the
// snapshot. Every failure maps to model.ErrInvalidSession.
func (s *hmacSigner) Verify(metadata map[string]string) (model.Snapshot, error) {
	raw, ok := metadata[KeyIntent]
	if !ok || raw == "" {
		return model.Snapshot{}, fmt.Errorf("%w: missing intent token", model.ErrInvalidSession)
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", model.ErrInvalidSession, err)
	}

	fields := map[string]string{
		KeyItems:    metadata[KeyItems],
		KeySubtotal: metadata[KeySubtotal],
		KeyTotal:    metadata[KeyTotal],
		KeyCurrency: metadata[KeyCurrency],
	}
	digest, err := digestOf(fields)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", model.ErrInvalidSession, err)
	}
	if digest != c.Digest {
		return model.Snapshot{}, fmt.Errorf("%w: snapshot digest mismatch", model.ErrInvalidSession)
	}

	snapshot, err := decode(fields)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %w", model.ErrInvalidSession, err)
	}
	if err := snapshot.Validate(); err != nil {
		return model.Snapshot{}, err
	}
	return snapshot, nil
}

func decode(fields map[string]string) (model.Snapshot, error) {
	var snapshot model.Snapshot
	if err := json.Unmarshal([]byte(fields[KeyItems]), &snapshot.Lines); err != nil {
		return snapshot, fmt.Errorf("malformed items: %w", err)
	}

	var err error
	if snapshot.Subtotal, err = decimal.NewFromString(fields[KeySubtotal]); err != nil {
		return snapshot, fmt.Errorf("malformed subtotal: %w", err)
	}
	if snapshot.Total, err = decimal.NewFromString(fields[KeyTotal]); err != nil {
		return snapshot, fmt.Errorf("malformed total: %w", err)
	}
	snapshot.Currency = fields[KeyCurrency]

	if snapshot.Currency == "" {
		return snapshot, errors.New("missing currency")
	}
	return snapshot, nil
}

// digestOf hashes the JCS canonical form of the snapshot fields, so key
// order and whitespace in the gateway's copy cannot change the result.
func digestOf(fields map[string]string) (string, error) {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	canonical, err := jcs.Transform(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalise snapshot: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
