package abuse

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDispatcher struct {
	alerts []BanAlert
}

func (m *mockDispatcher) Dispatch(alert BanAlert) {
	m.alerts = append(m.alerts, alert)
}

func newTestBanStore(t *testing.T, alerts AlertDispatcher) *BanStore {
	t.Helper()
	dir := t.TempDir()
	events := NewEventLog(filepath.Join(dir, "abuse.log"), slog.Default())
	return NewBanStore(filepath.Join(dir, "banned_ips.json"), time.Hour, 6, events, alerts, slog.Default())
}

func TestBan_EscalatesDuration(t *testing.T) {
	bs := newTestBanStore(t, nil)
	ip := "10.0.0.5"

	for offense := 1; offense <= 8; offense++ {
		bs.Ban(ip)

		expiry, ok := bs.BannedIPs()[ip]
		require.True(t, ok)

		multiplier := offense
		if multiplier > 6 {
			multiplier = 6
		}
		expected := time.Now().Add(time.Duration(multiplier) * time.Hour).UnixMilli()
		assert.InDelta(t, expected, expiry, float64(5*time.Second.Milliseconds()),
			"offense %d should ban for %dh", offense, multiplier)
	}

	assert.Equal(t, 8, bs.OffenseCount(ip), "offense count keeps growing past the duration cap")
}

func TestIsBanned_LazyExpiry(t *testing.T) {
	bs := newTestBanStore(t, nil)
	ip := "10.0.0.5"

	bs.Ban(ip)
	assert.True(t, bs.IsBanned(ip))

	// Force the expiry into the past
	bs.mu.Lock()
	bs.bans[ip] = time.Now().Add(-time.Minute).UnixMilli()
	bs.mu.Unlock()

	assert.False(t, bs.IsBanned(ip), "expired ban lifts on check")

	// The expired entry is gone, not merely filtered
	bs.mu.Lock()
	_, exists := bs.bans[ip]
	bs.mu.Unlock()
	assert.False(t, exists)
}

func TestUnban(t *testing.T) {
	bs := newTestBanStore(t, nil)
	ip := "10.0.0.5"

	bs.Ban(ip)
	assert.True(t, bs.Unban(ip, "admin-1"))
	assert.False(t, bs.IsBanned(ip))
	assert.False(t, bs.Unban(ip, "admin-1"), "unbanning twice reports not banned")

	// Offense history survives so a repeat offender escalates
	assert.Equal(t, 1, bs.OffenseCount(ip))
}

func TestSuspectOffender_PreSeedsEscalation(t *testing.T) {
	bs := newTestBanStore(t, nil)
	ip := "10.0.0.5"

	bs.SuspectOffender(ip)
	assert.Equal(t, 1, bs.OffenseCount(ip))
	assert.False(t, bs.IsBanned(ip), "suspicion alone does not ban")

	// First actual ban starts at offense #2
	bs.Ban(ip)
	assert.Equal(t, 2, bs.OffenseCount(ip))

	// Pre-seeding an already-tracked offender is a no-op
	bs.SuspectOffender(ip)
	assert.Equal(t, 2, bs.OffenseCount(ip))
}

func TestBan_AlertsFromSecondOffense(t *testing.T) {
	dispatcher := &mockDispatcher{}
	bs := newTestBanStore(t, dispatcher)
	ip := "10.0.0.5"

	bs.Ban(ip)
	assert.Empty(t, dispatcher.alerts, "first offense does not alert")

	bs.Ban(ip)
	require.Len(t, dispatcher.alerts, 1)
	assert.Equal(t, ip, dispatcher.alerts[0].IP)
	assert.Equal(t, 2, dispatcher.alerts[0].OffenseCount)
	assert.Equal(t, 2*time.Hour, dispatcher.alerts[0].Duration)
}

func TestBanStore_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banned_ips.json")
	events := NewEventLog(filepath.Join(dir, "abuse.log"), slog.Default())

	bs := NewBanStore(path, time.Hour, 6, events, nil, slog.Default())
	bs.Ban("10.0.0.5")

	reopened := NewBanStore(path, time.Hour, 6, events, nil, slog.Default())
	assert.True(t, reopened.IsBanned("10.0.0.5"))

	// Offense counters are process-local and reset on restart
	assert.Equal(t, 0, reopened.OffenseCount("10.0.0.5"))
}

func TestBanStore_ToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banned_ips.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	events := NewEventLog(filepath.Join(dir, "abuse.log"), slog.Default())
	bs := NewBanStore(path, time.Hour, 6, events, nil, slog.Default())

	assert.False(t, bs.IsBanned("10.0.0.5"))
	bs.Ban("10.0.0.5")
	assert.True(t, bs.IsBanned("10.0.0.5"))
}

func TestBanStore_FileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banned_ips.json")
	events := NewEventLog(filepath.Join(dir, "abuse.log"), slog.Default())

	bs := NewBanStore(path, time.Hour, 6, events, nil, slog.Default())
	bs.Ban("10.0.0.5")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var persisted map[string]int64
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Contains(t, persisted, "10.0.0.5")
	assert.Greater(t, persisted["10.0.0.5"], time.Now().UnixMilli())
}
