package mfa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mspb-config/core/utils"
)

var ErrSecretServiceUnavailable = errors.New("mfa secret service unavailable")

// SecretService is the external store of per-user TOTP secrets. The portal
// never persists secret material locally.
type SecretService interface {
	// FetchSecret returns the stored secret for a user; exists is false
	// when the user has no MFA configured.
	FetchSecret(ctx context.Context, username string) (secret string, exists bool, err error)
	StoreSecret(ctx context.Context, username, secret string) error
	// RecordAuth updates the user's last-auth timestamp. Best effort:
	// callers must not fail verification when this errors.
	RecordAuth(ctx context.Context, username, secret string) error
	Ping(ctx context.Context) error
}

// HTTPSecretService talks to the middleware function app that fronts the
// secret store. The function reports a missing secret either as a plain
// "no data" body or as {"errorMsg":"No data"}.
type HTTPSecretService struct {
	baseURL string
	code    string
	client  *http.Client
	logger  *utils.Logger
}

func NewHTTPSecretService(baseURL, code string, timeout time.Duration, logger *utils.Logger) *HTTPSecretService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSecretService{
		baseURL: strings.TrimRight(baseURL, "/"),
		code:    code,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type secretPayload struct {
	Key      string `json:"key"`
	ErrorMsg string `json:"errorMsg"`
}

func (s *HTTPSecretService) FetchSecret(ctx context.Context, username string) (string, bool, error) {
	body, err := s.call(ctx, http.MethodGet, username, nil, false)
	if err != nil {
		return "", false, err
	}
	text := strings.TrimSpace(string(body))
	if text == "" || text == "OK" || text == `"OK"` || isNoData(body) {
		return "", false, nil
	}
	payload := secretPayload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false, fmt.Errorf("%w: malformed response", ErrSecretServiceUnavailable)
	}
	if payload.ErrorMsg != "" {
		if strings.Contains(strings.ToLower(payload.ErrorMsg), "no data") {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %s", ErrSecretServiceUnavailable, "remote error")
	}
	if payload.Key == "" {
		return "", false, nil
	}
	return payload.Key, true, nil
}

func (s *HTTPSecretService) StoreSecret(ctx context.Context, username, secret string) error {
	_, err := s.call(ctx, http.MethodPost, username, map[string]string{"user": username, "secret": secret}, false)
	return err
}

func (s *HTTPSecretService) RecordAuth(ctx context.Context, username, secret string) error {
	_, err := s.call(ctx, http.MethodPost, username, map[string]string{"user": username, "secret": secret}, true)
	return err
}

// Ping probes reachability with a sentinel lookup; a "no data" answer is a
// healthy service.
func (s *HTTPSecretService) Ping(ctx context.Context) error {
	_, _, err := s.FetchSecret(ctx, "mspb-config-healthcheck")
	return err
}

func (s *HTTPSecretService) call(ctx context.Context, method, username string, payload map[string]string, timestampOnly bool) ([]byte, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("%w: not configured", ErrSecretServiceUnavailable)
	}
	q := url.Values{}
	q.Set("code", s.code)
	q.Set("user", username)
	if timestampOnly {
		q.Set("timeStampOnly", "true")
	}
	endpoint := s.baseURL + "/api/mfa?" + q.Encode()

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("secret service call failed: %v", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSecretServiceUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretServiceUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		if s.logger != nil {
			s.logger.Errorf("secret service status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrSecretServiceUnavailable, resp.StatusCode)
	}
	return body, nil
}

func isNoData(body []byte) bool {
	text := strings.TrimSpace(string(body))
	return strings.Contains(strings.ToLower(text), "no data") && !strings.HasPrefix(text, "{")
}
