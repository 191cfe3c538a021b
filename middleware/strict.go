package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireVerified is Guard plus a 403 for accounts with an unverified email.
func RequireVerified(engine *authcore.Engine) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || !user.Verified {
				http.Error(w, "email not verified", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
