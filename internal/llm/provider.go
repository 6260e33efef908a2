// Package llm contains the clients for the two interchangeable model providers.
// Both take raw user text plus a fixed instruction prompt and return the decoded
// JSON reply without interpreting it; interpretation belongs to the normalizer.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/synapse-qa/synapse-backend/internal/logging"
)

const maxReplyBytes = 4 << 20

// Request is one analysis call.
type Request struct {
	Input  string
	APIKey string
	Mode   Mode
}

// Provider is a model backend.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, req Request) (any, error)
}

// Config configures one provider client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

type baseClient struct {
	name    string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	metrics *Metrics
}

func newBaseClient(name string, cfg Config) baseClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return baseClient{
		name:    name,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		metrics: metricsFor(name),
	}
}

// HasSystemKey reports whether a server-side key is configured.
func (b *baseClient) HasSystemKey() bool {
	return b.apiKey != ""
}

// SystemKeyAvailable reports whether p can serve a request that carries no API
// key. Providers that do not say are assumed to manage their own credentials.
func SystemKeyAvailable(p Provider) bool {
	if sk, ok := p.(interface{ HasSystemKey() bool }); ok {
		return sk.HasSystemKey()
	}
	return true
}

// ErrNoSystemKey builds the error returned when a keyless request reaches a
// provider without a server-side key.
func ErrNoSystemKey(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindInvalidKey, Message: "no system API key configured for " + provider + ", use your own key"}
}

func (b *baseClient) key(req Request) (string, error) {
	if k := strings.TrimSpace(req.APIKey); k != "" {
		return k, nil
	}
	if b.apiKey != "" {
		return b.apiKey, nil
	}
	return "", ErrNoSystemKey(b.name)
}

// post sends body as JSON and returns the response status and payload.
func (b *baseClient) post(ctx context.Context, url string, headers map[string]string, body any) (int, []byte, error) {
	logger := logging.NewLogger(ctx).With("provider", b.name)

	if err := b.limiter.Wait(ctx); err != nil {
		return 0, nil, &ProviderError{Provider: b.name, Kind: KindUpstream, Message: "rate limiter: " + err.Error(), Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		b.metrics.record(time.Since(start), err)
		logger.LogError("provider_call", err)
		return 0, nil, &ProviderError{Provider: b.name, Kind: KindUpstream, Message: "provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	duration := time.Since(start)
	if err != nil {
		b.metrics.record(duration, err)
		return resp.StatusCode, nil, &ProviderError{Provider: b.name, Kind: KindUpstream, Status: resp.StatusCode, Message: "read reply", Err: err}
	}
	if resp.StatusCode >= 400 {
		b.metrics.record(duration, fmt.Errorf("status %d", resp.StatusCode))
		logger.LogWarnf("provider_call", "provider returned status %d", resp.StatusCode)
	} else {
		b.metrics.record(duration, nil)
		logger.LogInfof("provider_call", "provider replied in %s", duration)
	}
	return resp.StatusCode, data, nil
}

// decodeReply parses the model's text output as JSON. Models sometimes wrap the
// object in a markdown code fence.
func decodeReply(provider, text string) (any, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return nil, &ProviderError{Provider: provider, Kind: KindMalformed, Message: "empty reply"}
	}
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &ProviderError{Provider: provider, Kind: KindMalformed, Message: "reply is not valid JSON", Err: err}
	}
	return out, nil
}
