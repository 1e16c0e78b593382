package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// CorsMiddleware allows cross origin GET requests from origins matching one of the
// allowed patterns ("*" wildcards supported).
func CorsMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				for _, allowed := range allowedOrigins {
					if matchOrigin(allowed, origin) {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
						w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
						break
					}
				}
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(pattern, origin string) bool {
	if pattern == "*" {
		return true
	}

	pattern = regexp.QuoteMeta(pattern)
	pattern = strings.ReplaceAll(pattern, "\\*", ".*")

	matched, err := regexp.MatchString("^"+pattern+"$", origin)
	if err != nil {
		return false
	}
	return matched
}
