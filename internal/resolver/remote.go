package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Remote resolves links through the hosted link service
type Remote struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
}

// RemoteOptions configures a Remote resolver
type RemoteOptions struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	// Cache defaults to a MemoryCache
	Cache Cache
	// TTL defaults to DefaultCacheTTL
	TTL    time.Duration
	Logger *slog.Logger
}

// NewRemote creates a remote resolver
func NewRemote(opts RemoteOptions) *Remote {
	r := &Remote{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  opts.Client,
		cache:   opts.Cache,
		ttl:     opts.TTL,
		logger:  opts.Logger,
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 10 * time.Second}
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	if r.ttl <= 0 {
		r.ttl = DefaultCacheTTL
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

type linkResponse struct {
	URL string `json:"url"`
}

// ResolveConsoleURL implements Resolver. Without an API key the network is
// not called. Cache failures are logged and do not fail the lookup.
func (r *Remote) ResolveConsoleURL(ctx context.Context, p Payload) (string, error) {
	if r.apiKey == "" {
		return "", ErrCredentialRequired
	}

	p = p.Normalize()
	key, err := CacheKey(p)
	if err != nil {
		return "", err
	}

	if url, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("resolver: cache read failed", "error", err)
	} else if ok {
		return url, nil
	}

	url, err := r.request(ctx, p)
	if err != nil {
		return "", err
	}

	if err := r.cache.Set(ctx, key, url, r.ttl); err != nil {
		r.logger.Warn("resolver: cache write failed", "error", err)
	}
	return url, nil
}

func (r *Remote) request(ctx context.Context, p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/link", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("link request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrCredentialRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("link service responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out linkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode link response: %w", err)
	}
	if out.URL == "" {
		return "", ErrUnresolvable
	}
	return out.URL, nil
}
