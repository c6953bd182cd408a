package http

import (
	"net/http"

	"github.com/aussiebroadwan/campus/internal/auth/domain"
	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/pkg/authsdk"
	"github.com/aussiebroadwan/campus/pkg/httpx"
)

// MeHandler serves GET /v1/me. It authorizes inline rather than through
// the middleware because it needs the user record Authorize loads.
type MeHandler struct {
	Authority *service.Authority
}

// ServeHTTP returns the caller's user record.
//
//	@Summary		Current user
//	@Description	Returns the authenticated user's record. Requires 'profile:read' scope.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"The user record"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Missing profile:read"
//	@Failure		503	{object}	authsdk.ErrorResponse	"A store is unavailable"
//	@Router			/v1/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteBearerError(w, "missing bearer token")
		return
	}

	required := []string{domain.ScopeProfileRead}
	p, err := h.Authority.Authorize(r.Context(), token, required)
	if err != nil {
		writeServiceError(w, r, err, required...)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse(p.User))
}

func userResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:          u.ID,
		Collection:  string(u.Collection),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Scopes:      u.Scopes,
		MFAEnabled:  u.MFAEnabled(),
		CreatedAt:   u.CreatedAt,
	}
}
