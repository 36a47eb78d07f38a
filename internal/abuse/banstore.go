package abuse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// BanAlert describes a repeat-offender ban for the alert channel
type BanAlert struct {
	IP           string
	OffenseCount int
	Duration     time.Duration
}

// AlertDispatcher submits ban alerts for background delivery.
// Implementations must not block the caller.
type AlertDispatcher interface {
	Dispatch(alert BanAlert)
}

// BanStore is the durable map of banned IPs. Ban expiries persist to a JSON
// file keyed by IP (epoch milliseconds); the per-IP offense counter driving
// escalation lives in process memory only, so a restart resets the
// escalation multiplier but not the ban list itself.
//
// Reads and writes are serialized by a mutex within the process. Across
// processes the file is last-writer-wins: ban decisions are idempotent per
// IP, so a lost concurrent update is an accepted tradeoff at this scope.
type BanStore struct {
	mu            sync.Mutex
	path          string
	baseDuration  time.Duration
	maxMultiplier int

	bans     map[string]int64 // ip -> expiry epoch ms
	offenses map[string]int

	events *EventLog
	alerts AlertDispatcher
	logger *slog.Logger
}

// NewBanStore creates the ban store and loads any persisted ban list.
// alerts may be nil when no alert channel is configured.
func NewBanStore(path string, baseDuration time.Duration, maxMultiplier int, events *EventLog, alerts AlertDispatcher, logger *slog.Logger) *BanStore {
	bs := &BanStore{
		path:          path,
		baseDuration:  baseDuration,
		maxMultiplier: maxMultiplier,
		bans:          make(map[string]int64),
		offenses:      make(map[string]int),
		events:        events,
		alerts:        alerts,
		logger:        logger,
	}
	bs.load()
	return bs
}

// IsBanned reports whether the IP is currently banned. An entry whose expiry
// has passed is logically unbanned: it is removed, the removal persisted, and
// an expiry event logged as a side effect of the check.
func (bs *BanStore) IsBanned(ip string) bool {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	expiry, ok := bs.bans[ip]
	if !ok {
		return false
	}

	if expiry <= time.Now().UnixMilli() {
		delete(bs.bans, ip)
		bs.persist()
		bs.events.Record("Ban expired for IP %s", ip)
		bs.logger.Info("ip ban expired", slog.String("ip", ip))
		return false
	}

	return true
}

// Ban bans the IP with an escalating duration: base × min(offenseCount, cap).
// From the second offense on, a ban alert is dispatched to the alert channel.
func (bs *BanStore) Ban(ip string) {
	bs.mu.Lock()

	bs.offenses[ip]++
	count := bs.offenses[ip]

	multiplier := count
	if multiplier > bs.maxMultiplier {
		multiplier = bs.maxMultiplier
	}
	duration := bs.baseDuration * time.Duration(multiplier)

	bs.bans[ip] = time.Now().Add(duration).UnixMilli()
	bs.persist()
	bs.mu.Unlock()

	bs.events.Record("Banned IP %s for %s (offense #%d)", ip, duration, count)
	bs.logger.Warn("ip banned",
		slog.String("ip", ip),
		slog.Int("offense_count", count),
		slog.Duration("duration", duration))

	if count >= 2 && bs.alerts != nil {
		bs.alerts.Dispatch(BanAlert{IP: ip, OffenseCount: count, Duration: duration})
	}
}

// Unban removes a ban. Returns false if the IP was not banned.
func (bs *BanStore) Unban(ip, actor string) bool {
	bs.mu.Lock()

	if _, ok := bs.bans[ip]; !ok {
		bs.mu.Unlock()
		return false
	}

	delete(bs.bans, ip)
	bs.persist()
	bs.mu.Unlock()

	bs.events.Record("IP %s unbanned by %s", ip, actor)
	bs.logger.Info("ip unbanned", slog.String("ip", ip), slog.String("actor", actor))
	return true
}

// SuspectOffender pre-seeds the offense counter for an IP flagged by an
// upstream signal (e.g. a very low CAPTCHA score) without banning it. The
// IP's next ban starts at an escalated duration.
func (bs *BanStore) SuspectOffender(ip string) {
	bs.mu.Lock()
	if bs.offenses[ip] == 0 {
		bs.offenses[ip] = 1
	}
	bs.mu.Unlock()

	bs.events.Record("Suspicious activity from IP %s, offense counter pre-seeded", ip)
	bs.logger.Warn("suspected abuser flagged", slog.String("ip", ip))
}

// BannedIPs returns a snapshot of active bans (ip -> expiry epoch ms) for
// admin tooling. Expired entries are excluded but not removed; removal stays
// a side effect of IsBanned.
func (bs *BanStore) BannedIPs() map[string]int64 {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	now := time.Now().UnixMilli()
	out := make(map[string]int64, len(bs.bans))
	for ip, expiry := range bs.bans {
		if expiry > now {
			out[ip] = expiry
		}
	}
	return out
}

// OffenseCount returns the in-memory offense count for an IP
func (bs *BanStore) OffenseCount(ip string) int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.offenses[ip]
}

// load reads the persisted ban map. A missing or corrupt file starts empty;
// the store must come up even when its backing file does not.
func (bs *BanStore) load() {
	data, err := os.ReadFile(bs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			bs.logger.Error("failed to read ban file", slog.Any("error", err))
		}
		return
	}

	var bans map[string]int64
	if err := json.Unmarshal(data, &bans); err != nil {
		bs.logger.Error("failed to parse ban file, starting with empty ban list",
			slog.Any("error", err))
		return
	}
	bs.bans = bans
}

// persist writes the ban map. Callers hold the mutex. Failures are logged
// and swallowed: an unpersisted ban still holds in memory.
func (bs *BanStore) persist() {
	if err := os.MkdirAll(filepath.Dir(bs.path), 0o755); err != nil {
		bs.logger.Error("failed to create ban file directory", slog.Any("error", err))
		return
	}

	data, err := json.MarshalIndent(bs.bans, "", "  ")
	if err != nil {
		bs.logger.Error("failed to encode ban list", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(bs.path, data, 0o644); err != nil {
		bs.logger.Error("failed to write ban file",
			slog.String("path", bs.path), slog.Any("error", err))
	}
}

// String implements fmt.Stringer for debug logging
func (bs *BanStore) String() string {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return fmt.Sprintf("BanStore(%d active bans, %d tracked offenders)", len(bs.bans), len(bs.offenses))
}
