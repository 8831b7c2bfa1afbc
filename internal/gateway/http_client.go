package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	sessionsPath   = "/v1/checkout/sessions"
	maxErrorDetail = 512
)

// HTTPConfig configures the REST gateway client.
type HTTPConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// HTTPGateway is a client for a hosted-checkout REST API. Amounts are sent in
// minor units and the secret key is passed as a bearer token.
type HTTPGateway struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPGateway creates an HTTP gateway client.
func NewHTTPGateway(cfg HTTPConfig) *HTTPGateway {
	return &HTTPGateway{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type lineItemPayload struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}

type openPayload struct {
	Mode      string            `json:"mode"`
	Currency  string            `json:"currency"`
	LineItems []lineItemPayload `json:"line_items"`
	Metadata  map[string]string `json:"metadata"`
}

type sessionPayload struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// Open creates a hosted checkout session and returns its token.
func (g *HTTPGateway) Open(ctx context.Context, req OpenRequest) (string, error) {
	body := openPayload{
		Mode:      "payment",
		Currency:  req.Currency,
		LineItems: make([]lineItemPayload, 0, len(req.Lines)),
		Metadata:  req.Metadata,
	}
	for _, l := range req.Lines {
		body.LineItems = append(body.LineItems, lineItemPayload{
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitAmount: MinorUnits(l.UnitPrice),
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode session request: %w", err)
	}

	var out sessionPayload
	if err := g.do(ctx, http.MethodPost, g.config.BaseURL+sessionsPath, bytes.NewReader(payload), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("gateway returned a session without id")
	}
	return out.ID, nil
}

// Get fetches a session by token.
func (g *HTTPGateway) Get(ctx context.Context, token string) (*Session, error) {
	var out sessionPayload
	endpoint := g.config.BaseURL + sessionsPath + "/" + url.PathEscape(token)
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}

	status := SessionOpen
	switch {
	case out.Status == string(SessionExpired):
		status = SessionExpired
	case out.Status == string(SessionComplete) && out.PaymentStatus != "unpaid":
		status = SessionComplete
	}

	return &Session{
		Token:      out.ID,
		Status:     status,
		PaymentRef: out.PaymentIntent,
		Metadata:   out.Metadata,
	}, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.config.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrSessionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		return fmt.Errorf("gateway returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
