// Package crm wraps the tenant's CRM integration. The executor calls it for
// add_tag and add_to_crm actions; the wire protocol is a JSON webhook.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/retainly/retention-api/pkg/circuitbreaker"
)

type Service interface {
	AddTag(ctx context.Context, ownerID, customerID uuid.UUID, tag string) error
	UpsertContact(ctx context.Context, ownerID, customerID uuid.UUID, email, name string) error
}

type Config struct {
	WebhookURL string
	APIKey     string
	Timeout    time.Duration
}

type webhookService struct {
	url    string
	apiKey string
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
}

// NewWebhookService returns a CRM client posting to a single webhook
// endpoint. Calls are bounded by the configured timeout and guarded by a
// circuit breaker so a dead CRM cannot slow the whole executor batch.
func NewWebhookService(cfg Config) Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &webhookService{
		url:    cfg.WebhookURL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: cfg.Timeout},
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "crm-webhook",
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		}),
	}
}

type webhookPayload struct {
	Event      string `json:"event"`
	OwnerID    string `json:"owner_id"`
	CustomerID string `json:"customer_id"`
	Tag        string `json:"tag,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
}

func (s *webhookService) AddTag(ctx context.Context, ownerID, customerID uuid.UUID, tag string) error {
	return s.post(ctx, webhookPayload{
		Event:      "add_tag",
		OwnerID:    ownerID.String(),
		CustomerID: customerID.String(),
		Tag:        tag,
	})
}

func (s *webhookService) UpsertContact(ctx context.Context, ownerID, customerID uuid.UUID, email, name string) error {
	return s.post(ctx, webhookPayload{
		Event:      "upsert_contact",
		OwnerID:    ownerID.String(),
		CustomerID: customerID.String(),
		Email:      email,
		Name:       name,
	})
}

func (s *webhookService) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal CRM payload: %w", err)
	}

	return s.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build CRM request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("CRM webhook call failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("CRM webhook returned status %d", resp.StatusCode)
		}
		return nil
	})
}

// NoopService acknowledges every CRM call without side effects. Used when no
// CRM webhook is configured.
type NoopService struct{}

func (NoopService) AddTag(context.Context, uuid.UUID, uuid.UUID, string) error { return nil }
func (NoopService) UpsertContact(context.Context, uuid.UUID, uuid.UUID, string, string) error {
	return nil
}
