// Package clients contains HTTP clients for the bot backend and for
// reference price exchanges.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/botwatch/internal/domain"
)

const (
	statePath   = "/api/state"
	commandPath = "/api/command"

	defaultTimeout = 10 * time.Second

	// maxStateBody guards against a misconfigured endpoint returning
	// something that is not the bot API.
	maxStateBody = 8 << 20
)

// ErrBadSchema marks responses that were readable but not decodable as
// a state snapshot. Callers treat it like any other poll failure but
// log it louder: it usually means the endpoint points at the wrong
// service.
var ErrBadSchema = errors.New("unexpected state payload")

// BotClient talks to the bot backend.
type BotClient struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string

	mu      sync.Mutex
	backoff *backoff.Backoff
}

// NewBotClient creates a client for the backend at baseURL.
func NewBotClient(logger *zap.Logger, baseURL string) *BotClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		backoff: &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    30 * time.Second,
			Jitter: true,
		},
	}
}

// FetchState issues GET /api/state and decodes the snapshot.
func (c *BotClient) FetchState(ctx context.Context) (*domain.StateSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build state request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch state")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("state endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var snapshot domain.StateSnapshot
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxStateBody))
	if err := dec.Decode(&snapshot); err != nil {
		return nil, errors.Wrap(ErrBadSchema, err.Error())
	}
	if snapshot.Timestamp.IsZero() {
		return nil, errors.Wrap(ErrBadSchema, "missing snapshot timestamp")
	}

	return &snapshot, nil
}

// SendCommand issues POST /api/command with the given command.
func (c *BotClient) SendCommand(ctx context.Context, cmd domain.Command) (*domain.CommandReceipt, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, errors.Wrap(err, "marshal command")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build command request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "send command %s", cmd.Name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("command endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var receipt domain.CommandReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, errors.Wrap(err, "decode command receipt")
	}
	c.logger.Info("command acknowledged",
		zap.String("command", string(cmd.Name)),
		zap.String("id", receipt.ID),
		zap.Bool("accepted", receipt.Accepted))

	return &receipt, nil
}

// NextRetryDelay returns how long the poller should wait after a
// failed fetch. The delay grows exponentially until ResetBackoff.
func (c *BotClient) NextRetryDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff.Duration()
}

// ResetBackoff clears the failure backoff after a successful fetch.
func (c *BotClient) ResetBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoff.Reset()
}

// Endpoint returns the configured backend base URL.
func (c *BotClient) Endpoint() string { return c.baseURL }
