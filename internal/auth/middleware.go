package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// SessionCookie carries the web client's access token.
const SessionCookie = "spring_session"

// LoginPath is where the web guard sends unauthenticated requests.
const LoginPath = "/auth/login"

// Guard redirects unauthenticated requests for protected paths to the
// sign-in view, remembering the originally requested path for the
// post-login redirect. Authenticated requests proceed with claims on the
// context.
type Guard struct {
	cfg       Config
	protected []string
}

// NewGuard constructs a Guard for the given protected path prefixes.
func NewGuard(cfg Config, protected []string) Guard {
	return Guard{cfg: cfg, protected: protected}
}

// Protects reports whether the path requires an authenticated session.
func (g Guard) Protects(path string) bool {
	for _, prefix := range g.protected {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	// Chat pages sit under /activities/{id}/chat.
	return strings.HasSuffix(path, "/chat")
}

// Wrap attaches the guard to an http.Handler.
func (g Guard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.sessionClaims(r)
		if err != nil {
			if g.Protects(r.URL.Path) {
				target := LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (g Guard) sessionClaims(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, ErrMissingToken
	}
	return Parse(cookie.Value, g.cfg)
}

// BearerMiddleware enforces bearer-token authentication on API requests,
// skipping paths for which skipper returns true.
type BearerMiddleware struct {
	cfg     Config
	skipper func(r *http.Request) bool
}

// NewBearerMiddleware constructs a BearerMiddleware with an optional
// skipper.
func NewBearerMiddleware(cfg Config, skipper func(r *http.Request) bool) BearerMiddleware {
	return BearerMiddleware{cfg: cfg, skipper: skipper}
}

// Wrap attaches bearer authentication to an http.Handler.
func (m BearerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper != nil && m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			http.Error(w, ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := Parse(strings.TrimSpace(header[len("Bearer "):]), m.cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
