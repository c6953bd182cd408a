package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/pkg/authsdk"
	"github.com/aussiebroadwan/campus/pkg/httpx"
)

// SessionHandler serves login, refresh and logout.
type SessionHandler struct {
	Authority *service.Authority
}

// HandleLogin serves POST /v1/auth/login. The body is
// application/x-www-form-urlencoded with collection, username, password and
// optional scope and otp.
//
//	@Summary		Log in
//	@Description	Authenticates a user within a collection and issues a signed access token.
//	@Tags			Session
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			collection	formData	string					true	"Collection to look the user up in"	Enums(student, teacher, admin)
//	@Param			username	formData	string					true	"User id or email"
//	@Param			password	formData	string					true	"Password"
//	@Param			scope		formData	string					false	"Space-delimited scopes to narrow the token to"
//	@Param			otp			formData	string					false	"TOTP code when the user has MFA enabled"
//	@Success		200			{object}	authsdk.TokenResponse	"access_token, token_type, expires_in, scope"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Missing or malformed fields"
//	@Failure		401			{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		403			{object}	authsdk.ErrorResponse	"None of the requested scopes are held"
//	@Failure		429			{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503			{object}	authsdk.ErrorResponse	"User directory unavailable"
//	@Header			200			{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"content-type must be application/x-www-form-urlencoded")
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "invalid form body")
		return
	}

	creds := service.Credentials{
		Collection: strings.TrimSpace(r.PostForm.Get("collection")),
		Subject:    strings.TrimSpace(r.PostForm.Get("username")),
		Password:   r.PostForm.Get("password"),
		OTP:        r.PostForm.Get("otp"),
		Scopes:     httpx.ParseSpaceDelimitedFields(r.PostForm.Get("scope")),
	}
	if creds.Collection == "" || creds.Subject == "" || creds.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"collection, username and password are required")
		return
	}

	issued, err := h.Authority.Login(r.Context(), creds)
	if err != nil {
		writeLoginError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, issued.Response(h.Authority.Now()))
}

// HandleRefresh serves POST /v1/auth/refresh. The bearer token is revoked
// and its successor returned.
//
//	@Summary		Refresh a token
//	@Description	Revokes the presented token and issues its successor. Only one of several concurrent refreshes succeeds.
//	@Tags			Session
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TokenResponse	"The successor token"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid, expired or revoked token"
//	@Failure		503	{object}	authsdk.ErrorResponse	"Revocation store unavailable"
//	@Router			/v1/auth/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteBearerError(w, "missing bearer token")
		return
	}

	issued, err := h.Authority.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, issued.Response(h.Authority.Now()))
}

// HandleLogout serves POST /v1/auth/logout. Logging out twice is fine.
//
//	@Summary		Log out
//	@Description	Revokes the presented token until it expires.
//	@Tags			Session
//	@Security		BearerAuth
//	@Success		204	"Token revoked"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid token"
//	@Failure		503	{object}	authsdk.ErrorResponse	"Revocation store unavailable"
//	@Router			/v1/auth/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteBearerError(w, "missing bearer token")
		return
	}

	if err := h.Authority.Logout(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
