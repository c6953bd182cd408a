package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/pkg/authsdk"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

const maxCreateUserBody = 16 << 10

// CreateUserHandler serves POST /v1/admin/users. The route requires
// users:write.
type CreateUserHandler struct {
	UserService *service.UserService
}

// ServeHTTP creates a user.
//
//	@Summary		Create a user
//	@Description	Adds a user to a collection. When mfa is set the response carries the otpauth URL. Requires 'users:write' scope.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateUserRequest	true	"User to create"
//	@Success		201		{object}	authsdk.CreateUserResponse	"id and optional otpauth_url"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Invalid request"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		403		{object}	authsdk.ErrorResponse		"Missing users:write"
//	@Failure		409		{object}	authsdk.ErrorResponse		"User already exists"
//	@Router			/v1/admin/users [post].
func (h *CreateUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.CreateUserRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCreateUserBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "request body must be valid JSON")
		return
	}

	created, err := h.UserService.CreateUser(ctx, service.NewUser{
		Collection:  req.Collection,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Scopes:      req.Scopes,
		MFA:         req.MFA,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx, nil).Info("admin created user",
		"admin", httpx.SubjectFromContext(ctx),
		"sub", created.User.ID,
		"collection", created.User.Collection,
	)

	httpx.WriteJSON(w, http.StatusCreated, authsdk.CreateUserResponse{
		ID:         created.User.ID,
		OTPAuthURL: created.OTPAuthURL,
	})
}
