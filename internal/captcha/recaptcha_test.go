package captcha

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSuspector struct {
	suspected []string
}

func (m *mockSuspector) SuspectOffender(ip string) {
	m.suspected = append(m.suspected, ip)
}

func testGateConfig(verifyURL string) config.RecaptchaConfig {
	return config.RecaptchaConfig{
		Secret:             "test-secret",
		VerifyURL:          verifyURL,
		ScoreThreshold:     0.5,
		SuspicionThreshold: 0.2,
		Timeout:            2 * time.Second,
		BypassTrustedApps:  true,
		TrustedAppHeader:   "X-Mobile-App-Key",
		TrustedAppKey:      "mobile-shared-key",
	}
}

func verifyStub(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-secret", r.Form.Get("secret"))
		assert.NotEmpty(t, r.Form.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidate_Accepts(t *testing.T) {
	srv := verifyStub(t, `{"success":true,"score":0.9,"action":"login"}`)
	gate := NewGate(testGateConfig(srv.URL), true, nil, slog.Default())

	ok := gate.Validate(context.Background(), "token", "login", "10.0.0.5", nil)
	assert.True(t, ok)
}

func TestValidate_RejectsLowScore(t *testing.T) {
	srv := verifyStub(t, `{"success":true,"score":0.3,"action":"login"}`)
	suspector := &mockSuspector{}
	gate := NewGate(testGateConfig(srv.URL), true, suspector, slog.Default())

	ok := gate.Validate(context.Background(), "token", "login", "10.0.0.5", nil)
	assert.False(t, ok)
	assert.Empty(t, suspector.suspected, "score above suspicion threshold is not flagged")
}

func TestValidate_VeryLowScoreFlagsOffender(t *testing.T) {
	srv := verifyStub(t, `{"success":true,"score":0.1,"action":"login"}`)
	suspector := &mockSuspector{}
	gate := NewGate(testGateConfig(srv.URL), true, suspector, slog.Default())

	ok := gate.Validate(context.Background(), "token", "login", "10.0.0.5", nil)
	assert.False(t, ok)
	assert.Equal(t, []string{"10.0.0.5"}, suspector.suspected)
}

func TestValidate_RejectsUnsuccessful(t *testing.T) {
	srv := verifyStub(t, `{"success":false,"error-codes":["invalid-input-response"]}`)
	gate := NewGate(testGateConfig(srv.URL), true, nil, slog.Default())

	ok := gate.Validate(context.Background(), "token", "login", "10.0.0.5", nil)
	assert.False(t, ok)
}

func TestValidate_RejectsActionMismatch(t *testing.T) {
	srv := verifyStub(t, `{"success":true,"score":0.9,"action":"checkout"}`)
	gate := NewGate(testGateConfig(srv.URL), true, nil, slog.Default())

	ok := gate.Validate(context.Background(), "token", "login", "10.0.0.5", nil)
	assert.False(t, ok)
}

func TestValidate_FailsClosedInProduction(t *testing.T) {
	cfg := testGateConfig("http://127.0.0.1:1/unreachable")
	gate := NewGate(cfg, true, nil, slog.Default())

	ok := gate.Validate(context.Background(), "token", "login", "10.0.0.5", nil)
	assert.False(t, ok)
}

func TestValidate_BypassesOutsideProduction(t *testing.T) {
	// No server behind the URL: the bypass must short-circuit before any call
	cfg := testGateConfig("http://127.0.0.1:1/unreachable")
	gate := NewGate(cfg, false, nil, slog.Default())

	ok := gate.Validate(context.Background(), "token", "login", "10.0.0.5", nil)
	assert.True(t, ok)
}

func TestValidate_TrustedMobileAppBypass(t *testing.T) {
	cfg := testGateConfig("http://127.0.0.1:1/unreachable")
	gate := NewGate(cfg, true, nil, slog.Default())

	headers := http.Header{}
	headers.Set("X-Mobile-App-Key", "mobile-shared-key")
	assert.True(t, gate.Validate(context.Background(), "", "login", "10.0.0.5", headers))

	headers.Set("X-Mobile-App-Key", "wrong-key")
	assert.False(t, gate.Validate(context.Background(), "", "login", "10.0.0.5", headers))
}

func TestValidate_BypassDisabledIgnoresHeader(t *testing.T) {
	cfg := testGateConfig("http://127.0.0.1:1/unreachable")
	cfg.BypassTrustedApps = false
	gate := NewGate(cfg, true, nil, slog.Default())

	headers := http.Header{}
	headers.Set("X-Mobile-App-Key", "mobile-shared-key")
	assert.False(t, gate.Validate(context.Background(), "", "login", "10.0.0.5", headers))
}
