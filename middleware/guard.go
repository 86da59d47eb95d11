package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/idforge/idforge"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity a guard stored for this
// request, if any.
func AuthResultFromContext(ctx context.Context) (*idforge.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*idforge.AuthResult)
	return res, ok
}

// Guard verifies the bearer access token statelessly and injects the
// result into the request context. Requests without a valid token get
// 401.
func Guard(engine *idforge.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, token string) (*idforge.AuthResult, error) {
		return engine.VerifyAccess(token)
	})
}

// GuardStrict additionally confirms the token's session still exists,
// so logout and revocation take effect within one request instead of
// one access token lifetime.
func GuardStrict(engine *idforge.Engine) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, token string) (*idforge.AuthResult, error) {
		return engine.VerifyAccessStrict(r.Context(), token)
	})
}

// RequirePermission wraps Guard with a permission requirement. Valid
// tokens lacking the permission get 403.
func RequirePermission(engine *idforge.Engine, required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, _ := AuthResultFromContext(r.Context())
			if err := engine.RequirePermission(res, required); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func guard(engine *idforge.Engine, verify func(*http.Request, string) (*idforge.AuthResult, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := verify(r, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
