package middleware

import (
	"net/http"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/abuse"
	pkghttp "github.com/Gimbo67/evokeessence-crypto-exchange-sub000/pkg/http"
)

// BanGuard rejects requests from banned IPs before they reach any handler.
// The login pipeline re-checks on its own; this middleware keeps banned
// clients away from every other authenticated surface too.
func BanGuard(bans *abuse.BanStore, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipConfig)
			if bans.IsBanned(ip) {
				pkghttp.WriteForbidden(w, "Access temporarily restricted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
