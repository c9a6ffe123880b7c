package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lmp-be/internal/logger"

	"go.uber.org/zap"
)

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var ErrNotConfigured = errors.New("verification service not configured")

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// TurnstileVerifier checks anti-automation tokens against Cloudflare Turnstile.
type TurnstileVerifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

func NewTurnstileVerifier(secret string) *TurnstileVerifier {
	if secret == "" {
		logger.L().Warn("Turnstile secret is empty, anti-automation tokens will not be verified")
	}

	return &TurnstileVerifier{
		secret:    secret,
		verifyURL: turnstileVerifyURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (v *TurnstileVerifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Verify returns false with a nil error when the service rejects the token.
func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if !v.Enabled() {
		return false, ErrNotConfigured
	}

	log := logger.FromCtx(ctx).With(zap.String("layer", "verification"))

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		log.Error("turnstile request failed", zap.Error(err))
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read turnstile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("turnstile returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return false, fmt.Errorf("turnstile error: status %d", resp.StatusCode)
	}

	var res turnstileResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return false, fmt.Errorf("failed to decode turnstile response: %w", err)
	}

	if !res.Success {
		log.Warn("turnstile rejected token", zap.Strings("error_codes", res.ErrorCodes))
	}
	return res.Success, nil
}
