package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is an in-process gateway for local development and tests.
// Sessions stay open until Pay or Expire is called.
type Sandbox struct {
	mu       sync.RWMutex
	sessions map[string]*sandboxSession
}

type sandboxSession struct {
	req        OpenRequest
	status     SessionStatus
	paymentRef string
}

// NewSandbox creates an empty sandbox gateway.
func NewSandbox() *Sandbox {
	return &Sandbox{sessions: make(map[string]*sandboxSession)}
}

// Open records a new session.
func (s *Sandbox) Open(ctx context.Context, req OpenRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	token := "cs_sandbox_" + uuid.NewString()
	req.Metadata = copyMetadata(req.Metadata)
	req.Lines = append([]LineItem(nil), req.Lines...)

	s.mu.Lock()
	s.sessions[token] = &sandboxSession{req: req, status: SessionOpen}
	s.mu.Unlock()

	return token, nil
}

// Get returns a copy of the session.
func (s *Sandbox) Get(ctx context.Context, token string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &Session{
		Token:      token,
		Status:     sess.status,
		PaymentRef: sess.paymentRef,
		Metadata:   copyMetadata(sess.req.Metadata),
	}, nil
}

// Pay marks an open session complete. An empty ref gets a generated one.
// Paying a completed session is a no-op that returns the existing ref.
func (s *Sandbox) Pay(token, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	switch sess.status {
	case SessionComplete:
		return sess.paymentRef, nil
	case SessionExpired:
		return "", ErrSessionExpired
	}

	if ref == "" {
		ref = "pi_sandbox_" + uuid.NewString()
	}
	sess.status = SessionComplete
	sess.paymentRef = ref
	return ref, nil
}

// Expire closes an unpaid session.
func (s *Sandbox) Expire(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.status == SessionOpen {
		sess.status = SessionExpired
	}
	return nil
}

// SetMetadata overwrites one metadata field. Tests use it to simulate a
// session edited outside the storefront.
func (s *Sandbox) SetMetadata(token, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}
	sess.req.Metadata[key] = value
	return nil
}

// Request returns the request a session was opened with.
func (s *Sandbox) Request(token string) (OpenRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return OpenRequest{}, false
	}
	req := sess.req
	req.Metadata = copyMetadata(req.Metadata)
	return req, true
}
