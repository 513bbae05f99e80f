package middlewares

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

var localOriginRe = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1)(:\d+)?$`)

// CORS allows the configured frontend origin, its deploy-preview origins
// (same project slug on the hosting platform's domain) and local dev hosts.
// Requests without an Origin header (curl, server-to-server webhooks) pass
// untouched.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	frontend := strings.TrimRight(frontendURL, "/")

	// "https://gameshop.vercel.app" → slug "gameshop"; previews look like
	// "https://gameshop-git-main-owner.vercel.app".
	slug := ""
	if host, ok := strings.CutPrefix(frontend, "https://"); ok {
		slug, _, _ = strings.Cut(host, ".")
	}

	allowed := func(origin string) bool {
		if origin == "" {
			return true
		}
		if origin == frontend {
			return true
		}
		if slug != "" && strings.HasPrefix(origin, "https://"+slug+"-") && strings.HasSuffix(origin, ".vercel.app") {
			return true
		}
		return localOriginRe.MatchString(origin)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !allowed(origin) {
				slog.WarnContext(r.Context(), "CORS origin blocked", "origin", origin)
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			}
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
