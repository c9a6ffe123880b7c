package accounting

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
)

const defaultSyncTimeout = 30 * time.Second

var ErrNotConfigured = errors.New("accounting sync is not configured")

type SyncRequest struct {
	Scope   string `json:"scope"`
	OrderID string `json:"orderId,omitempty"`
}

type SyncResult struct {
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
	Message string `json:"message,omitempty"`
}

const (
	ScopeOrder = "order"
	ScopeAll   = "all"
)

type Syncer interface {
	Sync(ctx context.Context, req SyncRequest) (*SyncResult, error)
}

// HTTPSyncer calls the reconciliation routine of the accounting system. The
// API token is read from settings on every call so rotations apply at once.
type HTTPSyncer struct {
	url      string
	settings SettingsStore
	client   *http.Client
}

func NewHTTPSyncer(url string, settings SettingsStore, client *http.Client) *HTTPSyncer {
	if client == nil {
		client = &http.Client{Timeout: defaultSyncTimeout}
	}
	return &HTTPSyncer{url: strings.TrimSpace(url), settings: settings, client: client}
}

func (s *HTTPSyncer) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	if s == nil || s.url == "" {
		return nil, ErrNotConfigured
	}

	token, err := s.settings.Get(ctx, TokenSettingKey)
	if errors.Is(err, ErrSettingNotFound) || (err == nil && strings.TrimSpace(token) == "") {
		return nil, fmt.Errorf("%w: %s is not set", ErrNotConfigured, TokenSettingKey)
	}
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode sync request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sync request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("accounting sync: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read sync response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("accounting sync: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result SyncResult
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decode sync response: %w", err)
		}
	}
	return &result, nil
}
