package abuse

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Banner is the slice of BanStore the tracker needs
type Banner interface {
	Ban(ip string)
}

// FailureOutcome is the result of recording a failed login attempt
type FailureOutcome struct {
	ShowCaptcha bool
	Banned      bool
}

type failedAttemptRecord struct {
	count        int
	firstAttempt time.Time
	showCaptcha  bool
}

// FailedLoginTracker counts failed login attempts per IP and escalates:
// CAPTCHA becomes required once the count reaches CaptchaThreshold and stays
// required until the record is cleared; at BanThreshold the IP is handed to
// the ban store and the record deleted. State is process-local and rebuilt
// empty on restart.
type FailedLoginTracker struct {
	mu      sync.Mutex
	records map[string]*failedAttemptRecord

	captchaThreshold int
	banThreshold     int
	sweepInterval    time.Duration
	staleAfter       time.Duration

	bans   Banner
	logger *slog.Logger
}

// NewFailedLoginTracker creates a tracker wired to the given ban store
func NewFailedLoginTracker(bans Banner, captchaThreshold, banThreshold int, sweepInterval, staleAfter time.Duration, logger *slog.Logger) *FailedLoginTracker {
	return &FailedLoginTracker{
		records:          make(map[string]*failedAttemptRecord),
		captchaThreshold: captchaThreshold,
		banThreshold:     banThreshold,
		sweepInterval:    sweepInterval,
		staleAfter:       staleAfter,
		bans:             bans,
		logger:           logger,
	}
}

// RecordFailure increments the failure count for an IP and returns the
// escalation outcome. Crossing the ban threshold bans the IP and deletes the
// local record; being banned clears the slate.
func (t *FailedLoginTracker) RecordFailure(ip string) FailureOutcome {
	t.mu.Lock()

	rec, ok := t.records[ip]
	if !ok {
		rec = &failedAttemptRecord{firstAttempt: time.Now()}
		t.records[ip] = rec
	}
	rec.count++

	if rec.count >= t.captchaThreshold {
		rec.showCaptcha = true
	}

	if rec.count >= t.banThreshold {
		delete(t.records, ip)
		t.mu.Unlock()

		t.logger.Warn("failed login threshold reached, banning ip",
			slog.String("ip", ip),
			slog.Int("failed_attempts", t.banThreshold))
		t.bans.Ban(ip)
		return FailureOutcome{ShowCaptcha: true, Banned: true}
	}

	count := rec.count
	outcome := FailureOutcome{ShowCaptcha: rec.showCaptcha}
	t.mu.Unlock()

	t.logger.Info("failed login recorded",
		slog.String("ip", ip),
		slog.Int("count", count),
		slog.Bool("show_captcha", outcome.ShowCaptcha))
	return outcome
}

// Reset clears the record for an IP (called on successful authentication or
// a passed CAPTCHA challenge)
func (t *FailedLoginTracker) Reset(ip string) {
	t.mu.Lock()
	delete(t.records, ip)
	t.mu.Unlock()
}

// ShouldShowCaptcha reports whether the IP has crossed the CAPTCHA threshold
func (t *FailedLoginTracker) ShouldShowCaptcha(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ip]
	return ok && rec.showCaptcha
}

// Start runs the periodic sweep until the context is cancelled. Entries older
// than staleAfter are removed regardless of count, bounding memory and
// resetting stale trackers below the ban threshold.
func (t *FailedLoginTracker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweep()
		case <-ctx.Done():
			t.logger.Info("failed login tracker sweep stopped")
			return
		}
	}
}

func (t *FailedLoginTracker) sweep() {
	cutoff := time.Now().Add(-t.staleAfter)

	t.mu.Lock()
	removed := 0
	for ip, rec := range t.records {
		if rec.firstAttempt.Before(cutoff) {
			delete(t.records, ip)
			removed++
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.logger.Info("swept stale failed login records", slog.Int("removed", removed))
	}
}
