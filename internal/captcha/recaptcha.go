// Package captcha validates reCAPTCHA v3 challenge tokens against policy:
// score threshold, action match, and explicit bypass rules for trusted mobile
// clients and development environments.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/config"
)

// OffenderSuspector pre-seeds the offense counter for IPs whose challenge
// score marks them as likely abusers
type OffenderSuspector interface {
	SuspectOffender(ip string)
}

// verifyResponse is the siteverify API response shape
type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Gate validates CAPTCHA tokens. All bypass behavior comes from configuration
// resolved at startup; there is no unconditional short-circuit in front of the
// live verification call.
type Gate struct {
	cfg        config.RecaptchaConfig
	production bool
	client     *http.Client
	suspector  OffenderSuspector
	logger     *slog.Logger
}

// NewGate creates a CAPTCHA gate. The HTTP client carries the configured
// timeout so a slow verifier cannot stall the login path.
func NewGate(cfg config.RecaptchaConfig, production bool, suspector OffenderSuspector, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:        cfg,
		production: production,
		client:     &http.Client{Timeout: cfg.Timeout},
		suspector:  suspector,
		logger:     logger,
	}
}

// Validate checks a challenge token. Bypass rules run before any network
// call: a trusted mobile-app header skips verification entirely, as does a
// non-production environment. A verifier or network error fails closed in
// production and open otherwise.
func (g *Gate) Validate(ctx context.Context, token, expectedAction, ip string, headers http.Header) bool {
	if g.isTrustedClient(headers) {
		g.logger.Debug("captcha bypassed for trusted mobile client", slog.String("ip", ip))
		return true
	}

	if !g.production {
		g.logger.Debug("captcha bypassed outside production", slog.String("ip", ip))
		return true
	}

	result, err := g.verify(ctx, token, ip)
	if err != nil {
		g.logger.Error("captcha verification request failed",
			slog.String("ip", ip), slog.Any("error", err))
		// Fail closed in production. The non-production path never gets here.
		return false
	}

	if !result.Success {
		g.logger.Warn("captcha verification rejected",
			slog.String("ip", ip),
			slog.String("error_codes", strings.Join(result.ErrorCodes, ",")))
		return false
	}

	if result.Score < g.cfg.SuspicionThreshold && g.suspector != nil {
		g.suspector.SuspectOffender(ip)
	}

	if result.Score < g.cfg.ScoreThreshold {
		g.logger.Warn("captcha score below threshold",
			slog.String("ip", ip),
			slog.Float64("score", result.Score))
		return false
	}

	if expectedAction != "" && result.Action != expectedAction {
		g.logger.Warn("captcha action mismatch",
			slog.String("ip", ip),
			slog.String("expected", expectedAction),
			slog.String("got", result.Action))
		return false
	}

	return true
}

// isTrustedClient reports whether the request carries the shared key of the
// official mobile apps
func (g *Gate) isTrustedClient(headers http.Header) bool {
	if !g.cfg.BypassTrustedApps || g.cfg.TrustedAppKey == "" || headers == nil {
		return false
	}
	return headers.Get(g.cfg.TrustedAppHeader) == g.cfg.TrustedAppKey
}

func (g *Gate) verify(ctx context.Context, token, ip string) (*verifyResponse, error) {
	form := url.Values{
		"secret":   {g.cfg.Secret},
		"response": {token},
		"remoteip": {ip},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.VerifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify endpoint returned status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return &result, nil
}
