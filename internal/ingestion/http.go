package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	logpkg "github.com/rzbill/spool/pkg/log"
)

// Header names of the ingestion contract.
const (
	HeaderAppSecret     = "App-Secret"
	HeaderInstallID     = "Install-ID"
	HeaderAuthorization = "Authorization"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 1 << 10

// HTTPConfig configures an HTTP ingestion client.
type HTTPConfig struct {
	// BaseURL is the service root; batches go to {BaseURL}/logs.
	BaseURL   string
	AppSecret string
	InstallID string
	// AuthToken is sent as a bearer token when set.
	AuthToken string
	Timeout   time.Duration
	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
	Logger logpkg.Logger
}

// HTTP posts batches as JSON.
type HTTP struct {
	client    *http.Client
	endpoint  string
	appSecret string
	installID string
	authToken string
	log       logpkg.Logger

	mu     sync.Mutex
	closed bool
}

var _ Ingestion = (*HTTP)(nil)

// NewHTTP validates cfg and returns a client.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	endpoint, err := logsEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AppSecret == "" {
		return nil, fmt.Errorf("ingestion: app secret is required")
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &HTTP{
		client:    client,
		appSecret: cfg.AppSecret,
		installID: cfg.InstallID,
		authToken: cfg.AuthToken,
		endpoint:  endpoint,
		log:       logger.With(logpkg.Component("ingestion")),
	}, nil
}

func logsEndpoint(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("ingestion: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("ingestion: url %q must be http or https", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/logs"
	q := u.Query()
	q.Set("api-version", APIVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send posts batch and classifies the outcome. Non-2xx responses return an
// *HTTPError; use errors.Is(err, ErrRejected) to decide whether to drop.
func (h *HTTP) Send(ctx context.Context, batch Container) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("ingestion: marshal batch: %w: %w", ErrRejected, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ingestion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAppSecret, h.appSecret)
	if h.installID != "" {
		req.Header.Set(HeaderInstallID, h.installID)
	}
	if h.authToken != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+h.authToken)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingestion: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		h.log.Debug("batch sent",
			logpkg.Int("logs", len(batch.Logs)),
			logpkg.Int("status", resp.StatusCode),
			logpkg.Dur("took", time.Since(start)))
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// Close stops further sends.
func (h *HTTP) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.client.CloseIdleConnections()
	}
	return nil
}
