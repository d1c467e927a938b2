// Package oauth verifies identity tokens issued by external providers.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/pkg/httpclient"
)

var (
	// ErrInvalidIDToken means Google rejected the token or its claims do not
	// match this application.
	ErrInvalidIDToken = errors.New("invalid google id token")

	// ErrNotConfigured means no Google client ID is configured.
	ErrNotConfigured = errors.New("google sign-in is not configured")
)

var googleIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// GoogleVerifier checks Google ID tokens against the tokeninfo endpoint.
type GoogleVerifier struct {
	clientID     string
	tokenInfoURL string
	client       *httpclient.CircuitBreakerClient
	now          func() time.Time
}

// NewGoogleVerifier creates a verifier accepting tokens issued to clientID.
func NewGoogleVerifier(clientID, tokenInfoURL string, logger *slog.Logger) *GoogleVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 10 * time.Second
	return &GoogleVerifier{
		clientID:     clientID,
		tokenInfoURL: tokenInfoURL,
		client:       httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("google-tokeninfo"), logger),
		now:          time.Now,
	}
}

// tokenInfo mirrors the tokeninfo response. Google encodes booleans and
// timestamps as strings there.
type tokenInfo struct {
	Issuer        string `json:"iss"`
	Audience      string `json:"aud"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Expiry        string `json:"exp"`
}

// Verify validates idToken and returns the identity it asserts. Rejected
// tokens yield ErrInvalidIDToken; transport failures are returned wrapped.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*domain.ExternalIdentity, error) {
	if v.clientID == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrInvalidIDToken
	}

	// POST keeps the token out of URLs, and so out of transport errors.
	form := url.Values{"id_token": {idToken}}
	resp, err := v.client.Post(ctx, v.tokenInfoURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("google tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, ErrInvalidIDToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google tokeninfo: unexpected status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("google tokeninfo: decode response: %w", err)
	}
	if err := v.checkClaims(&info); err != nil {
		return nil, err
	}

	return &domain.ExternalIdentity{
		Subject:    info.Subject,
		Email:      strings.ToLower(info.Email),
		Name:       info.Name,
		PictureURL: info.Picture,
	}, nil
}

func (v *GoogleVerifier) checkClaims(info *tokenInfo) error {
	if info.Audience != v.clientID {
		return fmt.Errorf("%w: audience mismatch", ErrInvalidIDToken)
	}
	if _, ok := googleIssuers[info.Issuer]; !ok {
		return fmt.Errorf("%w: unexpected issuer", ErrInvalidIDToken)
	}
	if info.Subject == "" || info.Email == "" {
		return fmt.Errorf("%w: missing subject or email", ErrInvalidIDToken)
	}
	if !isTrue(info.EmailVerified) {
		return fmt.Errorf("%w: email not verified", ErrInvalidIDToken)
	}
	if info.Expiry != "" {
		var exp int64
		if _, err := fmt.Sscan(info.Expiry, &exp); err != nil || v.now().Unix() >= exp {
			return fmt.Errorf("%w: expired", ErrInvalidIDToken)
		}
	}
	return nil
}

func isTrue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}
