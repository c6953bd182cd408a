package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"

	"github.com/aussiebroadwan/campus/internal/auth/domain"
	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/idx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const minPasswordLength = 8

// NewUser is an admin request to add someone to the directory.
type NewUser struct {
	Collection  string
	Email       string
	DisplayName string
	Password    string
	Scopes      []string // empty means the collection's defaults
	MFA         bool
}

// CreatedUser is the stored record plus the otpauth:// URL when MFA was
// requested. The URL is the only time the secret leaves the service.
type CreatedUser struct {
	User       domain.User
	OTPAuthURL string
}

// UserService manages directory entries.
type UserService struct {
	Directory store.Directory
	Hasher    *cryptox.Hasher
	IDs       *idx.Source
	Issuer    string // shown in authenticator apps
	Logger    *slog.Logger
}

// CreateUser validates req, hashes the password and stores the user.
func (s *UserService) CreateUser(ctx context.Context, req NewUser) (CreatedUser, error) {
	log := slogx.FromContext(ctx, s.Logger)

	role, err := domain.ParseRole(strings.TrimSpace(req.Collection))
	if err != nil {
		return CreatedUser{}, fmt.Errorf("%w: unknown collection", ErrInvalidRequest)
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return CreatedUser{}, fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}

	if len(req.Password) < minPasswordLength {
		return CreatedUser{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, minPasswordLength)
	}

	scopes := normalizeScopes(req.Scopes)
	if len(scopes) == 0 {
		scopes = domain.DefaultScopes(role)
	}
	known := domain.AllScopes()
	for _, sc := range scopes {
		if !slices.Contains(known, sc) {
			return CreatedUser{}, fmt.Errorf("%w: unknown scope %q", ErrInvalidRequest, sc)
		}
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return CreatedUser{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           s.IDs.New().String(),
		Collection:   role,
		Email:        addr.Address,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		Scopes:       scopes,
	}
	if user.DisplayName == "" {
		user.DisplayName = addr.Name
	}

	var otpURL string
	if req.MFA {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: user.Email,
			Period:      30,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return CreatedUser{}, fmt.Errorf("generate totp key: %w", err)
		}
		secret := key.Secret()
		user.MFASecret = &secret
		otpURL = key.URL()
	}

	if err := s.Directory.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return CreatedUser{}, ErrUserExists
		}
		log.Error("create user failed", "collection", role, "error", err)
		return CreatedUser{}, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}

	log.Info("user created", "sub", user.ID, "collection", role, "mfa", req.MFA)
	return CreatedUser{User: user, OTPAuthURL: otpURL}, nil
}

// BootstrapAdmin creates the first admin from configuration. It does
// nothing when email is blank or an admin already exists.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	log := slogx.FromContext(ctx, s.Logger)

	if strings.TrimSpace(email) == "" {
		return false, nil
	}

	n, err := s.Directory.CountUsers(ctx, domain.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		log.Debug("bootstrap skipped, admin exists")
		return false, nil
	}

	created, err := s.CreateUser(ctx, NewUser{
		Collection:  string(domain.RoleAdmin),
		Email:       email,
		DisplayName: "Administrator",
		Password:    password,
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	log.Info("bootstrap admin created", "sub", created.User.ID)
	return true, nil
}
