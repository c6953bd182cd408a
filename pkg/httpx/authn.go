package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

// Errors an Authenticator returns so the middleware can pick a status code.
// Implementations wrap their own errors with one of these.
var (
	ErrUnauthenticated   = errors.New("httpx: unauthenticated")
	ErrInsufficientScope = errors.New("httpx: insufficient scope")
	ErrUnavailable       = errors.New("httpx: auth backend unavailable")
)

// Authenticator validates a bearer token and checks it carries every
// required scope.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, required ...string) (jwtx.Claims, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string, required ...string) (jwtx.Claims, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string, required ...string) (jwtx.Claims, error) {
	return f(ctx, token, required...)
}

// AuthnMiddleware requires a bearer token holding all of required.
func AuthnMiddleware(a Authenticator, required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx, nil)

			raw, ok := BearerToken(r)
			if !ok {
				WriteBearerError(w, "missing bearer token")
				return
			}

			claims, err := a.Authenticate(ctx, raw, required...)
			switch {
			case err == nil:
			case errors.Is(err, ErrInsufficientScope):
				log.Info("authz denied", "sub", claims.Subject, "required", required)
				WriteScopeError(w, required...)
				return
			case errors.Is(err, ErrUnavailable):
				log.Error("authn backend unavailable", "err", err)
				WriteUnavailable(w)
				return
			default:
				log.Warn("authn failed", "err", err)
				WriteBearerError(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(ctx, claims)))
		})
	}
}

// BearerToken pulls the token out of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteBearerError writes an RFC 6750 invalid_token response.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}

// WriteScopeError writes an RFC 6750 insufficient_scope response.
func WriteScopeError(w http.ResponseWriter, required ...string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`)
	WriteError(w, http.StatusForbidden, "insufficient_scope", "token lacks a required scope")
}

// WriteUnavailable reports a transient backend failure.
func WriteUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	WriteError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "please retry shortly")
}
