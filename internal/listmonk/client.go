// Package listmonk forwards canonical subscribers to a listmonk instance.
package listmonk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/intake"
	"github.com/JakeFAU/mailproxy/internal/metrics"
)

const (
	subscribersPath = "/api/subscribers"
	maxErrorBody    = 512
	defaultTimeout  = 10 * time.Second
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NameGenerator fills in a placeholder name for subscribers that have none.
type NameGenerator interface {
	Name(email string) string
}

// Config controls the listmonk client.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// SynthesizeName fills empty names via the NameGenerator.
	SynthesizeName bool
}

// Client implements intake.Forwarder against listmonk's subscriber API.
type Client struct {
	cfg      Config
	endpoint string
	http     HTTPDoer
	names    NameGenerator
	logger   *zap.Logger
}

// New constructs a Client. A nil doer gets an http.Client bounded by cfg.Timeout.
func New(cfg Config, doer HTTPDoer, names NameGenerator, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("listmonk base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.SynthesizeName && names == nil {
		return nil, errors.New("name generator is required when name synthesis is enabled")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		endpoint: base + subscribersPath,
		http:     doer,
		names:    names,
		logger:   logger,
	}, nil
}

type createResponse struct {
	Data *struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// Forward performs a single create-subscriber call. There are no retries; the
// form's caller decides whether to submit again.
func (c *Client) Forward(ctx context.Context, sub intake.Subscriber) intake.ForwardOutcome {
	start := time.Now()
	outcome := c.forward(ctx, sub)
	metrics.ObserveForward(outcome.Result.String(), time.Since(start))
	return outcome
}

func (c *Client) forward(ctx context.Context, sub intake.Subscriber) intake.ForwardOutcome {
	if sub.Name == "" && c.cfg.SynthesizeName {
		sub.Name = c.names.Name(sub.Email)
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return intake.Failed(fmt.Errorf("marshal subscriber: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return intake.Failed(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return intake.Failed(classifyTransportError(err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close listmonk response body", zap.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return intake.AlreadyRegistered()
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return intake.Registered(c.backendID(resp.Body))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return intake.Failed(&UpstreamError{
			Kind:       UnexpectedStatus,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}
}

// backendID extracts data.id when present. Some listmonk versions answer with
// an empty body, so decode failures only cost us the id.
func (c *Client) backendID(body io.Reader) string {
	var parsed createResponse
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		if !errors.Is(err, io.EOF) {
			c.logger.Debug("listmonk response carried no usable payload", zap.Error(err))
		}
		return ""
	}
	if parsed.Data == nil {
		return ""
	}
	return parsed.Data.ID.String()
}
