package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/auth"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
	pkglogger "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/logger"
)

// AdminHandler exposes the ban store and abuse log to operators
type AdminHandler struct {
	bans   *abuse.BanStore
	events *abuse.EventLog
	audit  *pkglogger.AuditLogger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(bans *abuse.BanStore, events *abuse.EventLog, audit *pkglogger.AuditLogger) *AdminHandler {
	return &AdminHandler{bans: bans, events: events, audit: audit}
}

// BannedIPEntry describes one active ban
type BannedIPEntry struct {
	IP        string    `json:"ip"`
	ExpiresAt time.Time `json:"expires_at"`
	Offenses  int       `json:"offenses"`
}

// BanIPRequest represents the request body for a manual ban
type BanIPRequest struct {
	IP string `json:"ip" validate:"required,ip"`
}

// ListBannedIPs returns all active bans with expiry and offense history
func (h *AdminHandler) ListBannedIPs(w http.ResponseWriter, r *http.Request) {
	entries := make([]BannedIPEntry, 0)
	for ip, expiresAtMs := range h.bans.BannedIPs() {
		entries = append(entries, BannedIPEntry{
			IP:        ip,
			ExpiresAt: time.UnixMilli(expiresAtMs).UTC(),
			Offenses:  h.bans.OffenseCount(ip),
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"banned_ips": entries,
		"count":      len(entries),
	})
}

// BanIP applies a manual ban, subject to the same escalation as automatic bans
func (h *AdminHandler) BanIP(w http.ResponseWriter, r *http.Request) {
	var req BanIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	h.bans.Ban(req.IP)
	h.audit.LogAdminAction("ip_ban", actorID(r), req.IP)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "banned", "ip": req.IP})
}

// UnbanIP lifts an active ban. The offense history is kept so a repeat
// offender still escalates.
func (h *AdminHandler) UnbanIP(w http.ResponseWriter, r *http.Request) {
	var req BanIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	actor := actorID(r)
	if !h.bans.Unban(req.IP, actor) {
		pkghttp.WriteNotFound(w, "IP is not banned")
		return
	}
	h.audit.LogAdminAction("ip_unban", actor, req.IP)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "unbanned", "ip": req.IP})
}

// AbuseLog returns the most recent abuse-log lines, oldest first
func (h *AdminHandler) AbuseLog(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			pkghttp.WriteBadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	lines, err := h.events.Tail(limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to read abuse log")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": lines,
		"count":   len(lines),
	})
}

func actorID(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.UserID
	}
	return "unknown"
}
