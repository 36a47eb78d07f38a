package handlers_test

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/handlers"
	pkglogger "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	handler *handlers.AdminHandler
	bans    *abuse.BanStore
	events  *abuse.EventLog
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	events := abuse.NewEventLog(filepath.Join(dir, "abuse.log"), logger)
	bans := abuse.NewBanStore(filepath.Join(dir, "bans.json"), time.Hour, 6, events, nil, logger)
	return &adminFixture{
		handler: handlers.NewAdminHandler(bans, events, pkglogger.NewAuditLogger(logger)),
		bans:    bans,
		events:  events,
	}
}

type bannedIPsResponse struct {
	BannedIPs []handlers.BannedIPEntry `json:"banned_ips"`
	Count     int                      `json:"count"`
}

func TestListBannedIPs(t *testing.T) {
	fx := newAdminFixture(t)
	fx.bans.Ban("203.0.113.9")
	fx.bans.Ban("198.51.100.4")

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "GET", "/admin/banned-ips", nil), "admin-1", "ops@example.com")
	w := httptest.NewRecorder()
	fx.handler.ListBannedIPs(w, req)

	var resp bannedIPsResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Count)

	ips := make(map[string]handlers.BannedIPEntry, len(resp.BannedIPs))
	for _, entry := range resp.BannedIPs {
		ips[entry.IP] = entry
	}
	require.Contains(t, ips, "203.0.113.9")
	assert.Equal(t, 1, ips["203.0.113.9"].Offenses)
	assert.True(t, ips["203.0.113.9"].ExpiresAt.After(time.Now()))
}

func TestListBannedIPs_Empty(t *testing.T) {
	fx := newAdminFixture(t)

	w := httptest.NewRecorder()
	fx.handler.ListBannedIPs(w, handlers.NewTestRequest(t, "GET", "/admin/banned-ips", nil))

	var resp bannedIPsResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.BannedIPs)
}

func TestBanIP(t *testing.T) {
	fx := newAdminFixture(t)

	req := handlers.NewTestRequest(t, "POST", "/admin/banned-ips", handlers.BanIPRequest{IP: "203.0.113.9"})
	req = handlers.WithAuthContext(req, "admin-1", "ops@example.com")
	w := httptest.NewRecorder()
	fx.handler.BanIP(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "banned", resp["status"])
	assert.True(t, fx.bans.IsBanned("203.0.113.9"))
}

func TestBanIP_RejectsInvalidAddress(t *testing.T) {
	fx := newAdminFixture(t)

	req := handlers.NewTestRequest(t, "POST", "/admin/banned-ips", handlers.BanIPRequest{IP: "not-an-ip"})
	w := httptest.NewRecorder()
	fx.handler.BanIP(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
	assert.False(t, fx.bans.IsBanned("not-an-ip"))
}

func TestUnbanIP(t *testing.T) {
	fx := newAdminFixture(t)
	fx.bans.Ban("203.0.113.9")

	req := handlers.NewTestRequest(t, "POST", "/admin/banned-ips/unban", handlers.BanIPRequest{IP: "203.0.113.9"})
	req = handlers.WithAuthContext(req, "admin-1", "ops@example.com")
	w := httptest.NewRecorder()
	fx.handler.UnbanIP(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "unbanned", resp["status"])
	assert.False(t, fx.bans.IsBanned("203.0.113.9"))
}

func TestUnbanIP_NotBanned(t *testing.T) {
	fx := newAdminFixture(t)

	req := handlers.NewTestRequest(t, "POST", "/admin/banned-ips/unban", handlers.BanIPRequest{IP: "203.0.113.9"})
	w := httptest.NewRecorder()
	fx.handler.UnbanIP(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

type abuseLogResponse struct {
	Entries []string `json:"entries"`
	Count   int      `json:"count"`
}

func TestAbuseLog(t *testing.T) {
	fx := newAdminFixture(t)
	fx.events.Record("first entry")
	fx.events.Record("second entry")
	fx.events.Record("third entry")

	req := handlers.NewTestRequest(t, "GET", "/admin/abuse-log?limit=2", nil)
	w := httptest.NewRecorder()
	fx.handler.AbuseLog(w, req)

	var resp abuseLogResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Contains(t, resp.Entries[0], "second entry")
	assert.Contains(t, resp.Entries[1], "third entry")
}

func TestAbuseLog_InvalidLimit(t *testing.T) {
	fx := newAdminFixture(t)

	for _, limit := range []string{"0", "1001", "abc"} {
		req := handlers.NewTestRequest(t, "GET", "/admin/abuse-log?limit="+limit, nil)
		w := httptest.NewRecorder()
		fx.handler.AbuseLog(w, req)
		handlers.AssertErrorResponse(t, w, 400, "bad_request")
	}
}
