package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Broadcaster notifies the configured subscriber services that a user
// registered. Every subscriber receives a POST carrying a short lived,
// uuid-only token; the fan-out succeeds only if all of them acknowledge
// with 201. Partial delivery is reported, never rolled back or retried
// here: redelivery is the task queue's job.
type Broadcaster struct {
	client      *http.Client
	subscribers []string
	issuer      *TokenIssuer
	ttl         time.Duration
	logger      Logger
}

type broadcastPayload struct {
	Token string `json:"token"`
}

func NewBroadcaster(issuer *TokenIssuer, cfg Config, logger Logger) *Broadcaster {
	if logger == nil {
		logger = defLogger{}
	}

	ttl := cfg.GetBroadcastTokenTTL()
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Broadcaster{
		client:      &http.Client{Timeout: 10 * time.Second},
		subscribers: cfg.GetSubscribers(),
		issuer:      issuer,
		ttl:         ttl,
		logger:      logger,
	}
}

// WithHTTPClient overrides the outbound client, used from tests.
func (b *Broadcaster) WithHTTPClient(client *http.Client) *Broadcaster {
	if client != nil {
		b.client = client
	}
	return b
}

// Broadcast contacts every subscriber exactly once and reports whether all
// of them acknowledged. A non-nil error means the broadcast could not even
// be attempted; delivery failures only flip the boolean.
func (b *Broadcaster) Broadcast(ctx context.Context, userID string) (bool, error) {
	token, _, err := b.issuer.IssueScoped(userID, b.ttl)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue broadcast token")
	}

	body, err := json.Marshal(broadcastPayload{Token: token})
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode broadcast payload")
	}

	ok := true
	for _, subscriber := range b.subscribers {
		if !b.post(ctx, subscriber, body) {
			ok = false
		}
	}

	return ok, nil
}

func (b *Broadcaster) post(ctx context.Context, subscriber string, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, subscriber, bytes.NewReader(body))
	if err != nil {
		b.logger.Error("broadcast request build failed for %s: %v", subscriber, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Error("broadcast delivery failed for %s: %v", subscriber, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b.logger.Error("subscriber %s rejected broadcast with status %d", subscriber, resp.StatusCode)
		return false
	}

	return true
}

// BroadcastRegistrationHandler adapts the broadcaster to the task worker.
type BroadcastRegistrationHandler struct {
	Broadcaster *Broadcaster
	Logger      Logger
}

func (h *BroadcastRegistrationHandler) Execute(ctx context.Context, task BroadcastRegistrationTask) error {
	ok, err := h.Broadcaster.Broadcast(ctx, task.UUID)
	if err != nil {
		return err
	}

	if !ok && h.Logger != nil {
		h.Logger.Error("registration broadcast partially failed for user %s", task.UUID)
	}

	return nil
}
