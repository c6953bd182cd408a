package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/pkg/authsdk"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

// writeServiceError maps an Authority or UserService error onto a response.
// Unauthorized failures all look the same to the caller.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, required ...string) {
	log := slogx.FromContext(r.Context(), nil)

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		log.Info("request unauthorized", "err", err)
		httpx.WriteBearerError(w, "invalid or expired token")
	case errors.Is(err, service.ErrForbidden):
		log.Info("request forbidden", "err", err)
		httpx.WriteScopeError(w, required...)
	case errors.Is(err, service.ErrInfrastructure):
		log.Error("backend unavailable", "err", err)
		httpx.WriteUnavailable(w)
	case errors.Is(err, service.ErrInvalidRequest):
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, errDescription(err))
	case errors.Is(err, service.ErrUserExists):
		httpx.WriteError(w, http.StatusConflict, authsdk.ErrorCodeUserExists, "a user with that email already exists")
	default:
		log.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "internal server error")
	}
}

// writeLoginError differs from writeServiceError only for credentials and
// scope requests, which are not bearer token problems.
func writeLoginError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "invalid credentials")
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "invalid_scope", "requested scope is not granted to this user")
	default:
		writeServiceError(w, r, err)
	}
}

// errDescription strips the sentinel prefix from validation errors so the
// caller sees only the field problem.
func errDescription(err error) string {
	msg, _ := strings.CutPrefix(err.Error(), service.ErrInvalidRequest.Error()+": ")
	return msg
}

// authenticator adapts Authority to the httpx middleware.
func authenticator(a *service.Authority) httpx.Authenticator {
	return httpx.AuthenticatorFunc(func(ctx context.Context, token string, required ...string) (jwtx.Claims, error) {
		p, err := a.Authorize(ctx, token, required)
		switch {
		case err == nil:
			return p.Claims, nil
		case errors.Is(err, service.ErrForbidden):
			return p.Claims, fmt.Errorf("%w: %w", httpx.ErrInsufficientScope, err)
		case errors.Is(err, service.ErrInfrastructure):
			return jwtx.Claims{}, fmt.Errorf("%w: %w", httpx.ErrUnavailable, err)
		default:
			return jwtx.Claims{}, fmt.Errorf("%w: %w", httpx.ErrUnauthenticated, err)
		}
	})
}
