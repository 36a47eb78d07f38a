package abuse

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockBanner struct {
	banned []string
}

func (m *mockBanner) Ban(ip string) {
	m.banned = append(m.banned, ip)
}

func newTestTracker(bans Banner) *FailedLoginTracker {
	return NewFailedLoginTracker(bans, 3, 5, 30*time.Minute, 10*time.Minute, slog.Default())
}

func TestRecordFailure_CaptchaAtThreshold(t *testing.T) {
	banner := &mockBanner{}
	tracker := newTestTracker(banner)
	ip := "10.0.0.5"

	out := tracker.RecordFailure(ip)
	assert.False(t, out.ShowCaptcha)
	out = tracker.RecordFailure(ip)
	assert.False(t, out.ShowCaptcha)

	out = tracker.RecordFailure(ip)
	assert.True(t, out.ShowCaptcha, "third failure requires captcha")
	assert.False(t, out.Banned)
	assert.True(t, tracker.ShouldShowCaptcha(ip))
}

func TestRecordFailure_CaptchaIsSticky(t *testing.T) {
	tracker := newTestTracker(&mockBanner{})
	ip := "10.0.0.5"

	for i := 0; i < 4; i++ {
		tracker.RecordFailure(ip)
	}
	assert.True(t, tracker.ShouldShowCaptcha(ip), "captcha stays required until reset")
}

func TestRecordFailure_BanAtThreshold(t *testing.T) {
	banner := &mockBanner{}
	tracker := newTestTracker(banner)
	ip := "10.0.0.5"

	var out FailureOutcome
	for i := 0; i < 5; i++ {
		out = tracker.RecordFailure(ip)
	}

	assert.True(t, out.Banned)
	assert.Equal(t, []string{ip}, banner.banned)

	// The ban clears the local slate; the next failure starts a fresh record
	assert.False(t, tracker.ShouldShowCaptcha(ip))
	out = tracker.RecordFailure(ip)
	assert.False(t, out.ShowCaptcha)
	assert.False(t, out.Banned)
}

func TestRecordFailure_IndependentPerIP(t *testing.T) {
	banner := &mockBanner{}
	tracker := newTestTracker(banner)

	for i := 0; i < 4; i++ {
		tracker.RecordFailure("10.0.0.5")
	}
	out := tracker.RecordFailure("192.168.1.9")

	assert.False(t, out.ShowCaptcha)
	assert.Empty(t, banner.banned)
}

func TestReset(t *testing.T) {
	tracker := newTestTracker(&mockBanner{})
	ip := "10.0.0.5"

	for i := 0; i < 4; i++ {
		tracker.RecordFailure(ip)
	}
	tracker.Reset(ip)

	assert.False(t, tracker.ShouldShowCaptcha(ip))
	out := tracker.RecordFailure(ip)
	assert.False(t, out.ShowCaptcha)
}

func TestSweep_RemovesStaleRecords(t *testing.T) {
	tracker := newTestTracker(&mockBanner{})

	tracker.RecordFailure("10.0.0.5")
	tracker.RecordFailure("192.168.1.9")

	tracker.mu.Lock()
	tracker.records["10.0.0.5"].firstAttempt = time.Now().Add(-11 * time.Minute)
	tracker.mu.Unlock()

	tracker.sweep()

	tracker.mu.Lock()
	_, staleExists := tracker.records["10.0.0.5"]
	_, freshExists := tracker.records["192.168.1.9"]
	tracker.mu.Unlock()

	assert.False(t, staleExists, "stale record should be swept")
	assert.True(t, freshExists, "fresh record should survive")
}
