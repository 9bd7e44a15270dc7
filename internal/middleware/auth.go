package middleware

import (
	"net/http"

	"github.com/KOSOTSU-dev/tel-plus/internal/handlers"
	"github.com/KOSOTSU-dev/tel-plus/internal/services"
)

// Auth resolves the caller's identity from cookies and stores it in
// the request context. A valid account session wins; otherwise a guest
// cookie is carried through untouched. Requests with neither pass
// through anonymously and are stopped by RequireSession where needed.
type Auth struct {
	authService *services.AuthService
}

func NewAuth(authService *services.AuthService) *Auth {
	return &Auth{authService: authService}
}

func (a *Auth) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if cookie, err := r.Cookie("session"); err == nil && cookie.Value != "" {
			if user, err := a.authService.UserFromSession(ctx, cookie.Value); err == nil {
				ctx = handlers.SetUserInContext(ctx, user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		if cookie, err := r.Cookie("guest_session"); err == nil && cookie.Value != "" {
			ctx = handlers.SetGuestInContext(ctx, cookie.Value)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects requests that carry neither an account
// session nor a guest session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil && handlers.GetGuestFromContext(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects anything but a logged-in account, guest
// sessions included.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets the standard response hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
