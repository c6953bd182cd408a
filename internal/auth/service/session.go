package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/domain"
	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
)

// SessionConfig tunes token lifetimes and store access.
type SessionConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RefreshGrace lets a token be refreshed or logged out this long after
	// exp. Revocation entries live until exp plus this grace.
	RefreshGrace time.Duration

	// StoreTimeout bounds every single store round trip.
	StoreTimeout time.Duration

	// RevocationRetries is how many times an idempotent revocation call is
	// retried after the first failure.
	RevocationRetries int
}

// DefaultSessionConfig returns the stock settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        30 * time.Minute,
		StoreTimeout:      250 * time.Millisecond,
		RevocationRetries: 2,
	}
}

// Recorder receives decision and store metrics. A nil Recorder is fine.
type Recorder interface {
	Decision(op, outcome string)
	StoreError(op string)
	RevocationCheck(d time.Duration, err error)
}

// Credentials is a login attempt.
type Credentials struct {
	Collection string
	Subject    string // user id or email
	Password   string
	OTP        string
	Scopes     []string
}

// IssuedToken is a freshly signed token and the claims inside it.
type IssuedToken struct {
	Token  string
	Claims jwtx.Claims
}

// Response shapes the token for the HTTP layer.
func (t IssuedToken) Response(now time.Time) domain.TokenResponse {
	return domain.NewTokenResponse(t.Token, t.Claims.ExpiresAtTime(), now, strings.Join(t.Claims.Scope, " "))
}

// Principal is an authorized caller.
type Principal struct {
	User   domain.User
	Claims jwtx.Claims
}

// Authority runs login, authorize, refresh and logout. It holds no per-call
// state and is safe for concurrent use.
type Authority struct {
	codec       *jwtx.Codec
	users       store.Directory
	revocations store.Revocations
	cfg         SessionConfig
	log         *slog.Logger
	rec         Recorder
}

// AuthorityOption configures an Authority.
type AuthorityOption func(*Authority)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *slog.Logger) AuthorityOption {
	return func(a *Authority) { a.log = l }
}

// WithRecorder wires metrics.
func WithRecorder(r Recorder) AuthorityOption {
	return func(a *Authority) { a.rec = r }
}

// NewAuthority wires the codec and both stores together.
func NewAuthority(
	codec *jwtx.Codec,
	users store.Directory,
	revocations store.Revocations,
	cfg SessionConfig,
	opts ...AuthorityOption,
) (*Authority, error) {
	if codec == nil || users == nil || revocations == nil {
		return nil, errors.New("service: codec, directory and revocation store are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("service: token ttls must be positive")
	}
	if cfg.RefreshGrace < 0 {
		return nil, errors.New("service: refresh grace must not be negative")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultSessionConfig().StoreTimeout
	}
	cfg.RevocationRetries = max(cfg.RevocationRetries, 0)

	a := &Authority{
		codec:       codec,
		users:       users,
		revocations: revocations,
		cfg:         cfg,
		log:         slogx.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Now is the clock tokens are stamped with.
func (a *Authority) Now() time.Time { return a.codec.Now() }

// Login authenticates credentials and issues an access token. Unknown
// users, wrong passwords and bad one-time codes are indistinguishable.
func (a *Authority) Login(ctx context.Context, c Credentials) (_ IssuedToken, err error) {
	defer func() { a.decision("login", err) }()
	log := slogx.FromContext(ctx, a.log)

	role, perr := domain.ParseRole(c.Collection)
	subject := strings.TrimSpace(c.Subject)
	if perr != nil || subject == "" || c.Password == "" {
		return IssuedToken{}, ErrInvalidCredentials
	}

	user, err := a.findUser(ctx, role, subject)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("login failed", "collection", role, "reason", "unknown_subject")
		return IssuedToken{}, ErrInvalidCredentials
	}
	if err != nil {
		return IssuedToken{}, err
	}

	if !a.users.VerifyPassword(user, c.Password) {
		log.Info("login failed", "collection", role, "sub", user.ID, "reason", "password")
		return IssuedToken{}, ErrInvalidCredentials
	}

	if user.MFAEnabled() && !totp.Validate(strings.TrimSpace(c.OTP), *user.MFASecret) {
		log.Info("login failed", "collection", role, "sub", user.ID, "reason", "otp")
		return IssuedToken{}, ErrInvalidCredentials
	}

	scopes, err := grantScopes(user.Scopes, c.Scopes)
	if err != nil {
		log.Info("login refused", "sub", user.ID, "requested", c.Scopes)
		return IssuedToken{}, err
	}

	token, claims, err := a.codec.Issue(jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
		Role:             string(user.Collection),
		Scope:            scopes,
	}, a.cfg.AccessTTL)
	if err != nil {
		log.Error("token issue failed", "sub", user.ID, "error", err)
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	log.Info("login", "sub", user.ID, "collection", role, "jti", claims.ID)
	return IssuedToken{Token: token, Claims: claims}, nil
}

// Authorize checks token and that it carries every required scope, then
// loads the current user record. On ErrInsufficientScope the returned
// Principal still carries the decoded claims.
func (a *Authority) Authorize(ctx context.Context, token string, required []string) (_ Principal, err error) {
	defer func() { a.decision("authorize", err) }()

	claims, err := a.codec.Decode(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if err := a.checkRevoked(ctx, claims.ID); err != nil {
		return Principal{}, err
	}

	if !HasScopes(claims.Scope, required) {
		return Principal{Claims: claims}, ErrInsufficientScope
	}

	user, err := a.currentUser(ctx, claims)
	if err != nil {
		return Principal{}, err
	}

	return Principal{User: user, Claims: claims}, nil
}

// Refresh swaps token for a successor. The old jti is revoked before the
// new token exists, and of several concurrent refreshes only one succeeds.
func (a *Authority) Refresh(ctx context.Context, token string) (_ IssuedToken, err error) {
	defer func() { a.decision("refresh", err) }()
	log := slogx.FromContext(ctx, a.log)

	claims, err := a.codec.DecodeWithLeeway(token, a.cfg.RefreshGrace)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if err := a.checkRevoked(ctx, claims.ID); err != nil {
		return IssuedToken{}, err
	}

	if _, err := a.currentUser(ctx, claims); err != nil {
		return IssuedToken{}, err
	}

	var won bool
	err = a.callStore(ctx, "revoke_if_absent", 0, func(ctx context.Context) error {
		var err error
		won, err = a.revocations.RevokeIfAbsent(ctx, claims.ID, a.horizon(claims))
		return err
	})
	switch {
	case errors.Is(err, store.ErrExpired):
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case err != nil:
		log.Error("refresh revocation failed", "jti", claims.ID, "error", err)
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	case !won:
		log.Warn("refresh lost race", "sub", claims.Subject, "jti", claims.ID)
		return IssuedToken{}, ErrTokenRevoked
	}

	next, nextClaims, err := a.codec.Rotate(claims, a.cfg.RefreshTTL)
	if err != nil {
		log.Error("token rotate failed", "sub", claims.Subject, "error", err)
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	log.Info("refresh", "sub", claims.Subject, "old_jti", claims.ID, "jti", nextClaims.ID)
	return IssuedToken{Token: next, Claims: nextClaims}, nil
}

// Logout revokes token. Doing it twice is fine.
func (a *Authority) Logout(ctx context.Context, token string) (err error) {
	defer func() { a.decision("logout", err) }()
	log := slogx.FromContext(ctx, a.log)

	claims, err := a.codec.DecodeWithLeeway(token, a.cfg.RefreshGrace)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var written bool
	err = a.callStore(ctx, "revoke", a.cfg.RevocationRetries, func(ctx context.Context) error {
		var err error
		written, err = a.revocations.Revoke(ctx, claims.ID, a.horizon(claims))
		return err
	})
	if err != nil {
		log.Error("logout revocation failed", "jti", claims.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}

	if !written {
		log.Warn("logout of expired token, nothing revoked", "jti", claims.ID)
		return nil
	}

	log.Info("logout", "sub", claims.Subject, "jti", claims.ID)
	return nil
}

// horizon is the last instant any operation accepts the token.
func (a *Authority) horizon(c jwtx.Claims) time.Time {
	return c.ExpiresAtTime().Add(a.cfg.RefreshGrace)
}

// checkRevoked fails closed: a store that cannot answer is treated the same
// as a revoked token, only with a different error.
func (a *Authority) checkRevoked(ctx context.Context, jti string) error {
	start := time.Now()

	var revoked bool
	err := a.callStore(ctx, "is_revoked", a.cfg.RevocationRetries, func(ctx context.Context) error {
		var err error
		revoked, err = a.revocations.IsRevoked(ctx, jti)
		return err
	})
	if a.rec != nil {
		a.rec.RevocationCheck(time.Since(start), err)
	}

	if err != nil {
		slogx.FromContext(ctx, a.log).Error("revocation check failed", "jti", jti, "error", err)
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func (a *Authority) findUser(ctx context.Context, role domain.Role, subject string) (domain.User, error) {
	var user domain.User
	err := a.callStore(ctx, "find_user", 0, func(ctx context.Context) error {
		var err error
		user, err = a.users.FindBySubject(ctx, role, subject)
		return err
	})

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownCollection):
		return domain.User{}, store.ErrNotFound
	default:
		slogx.FromContext(ctx, a.log).Error("directory lookup failed", "collection", role, "error", err)
		return domain.User{}, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
}

// currentUser re-reads the subject so deleted users lose access before
// their tokens expire.
func (a *Authority) currentUser(ctx context.Context, c jwtx.Claims) (domain.User, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	user, err := a.findUser(ctx, role, c.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUnknownSubject
	}
	return user, err
}

// callStore runs fn with a per attempt timeout, retrying up to retries
// times with exponential backoff. Sentinel "answers" from the store are
// never retried.
func (a *Authority) callStore(ctx context.Context, op string, retries int, fn func(context.Context) error) error {
	attempt := func() error {
		actx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
		defer cancel()

		err := fn(actx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrNotFound),
			errors.Is(err, store.ErrUnknownCollection),
			errors.Is(err, store.ErrExpired),
			errors.Is(err, store.ErrEmptyJTI):
			return backoff.Permanent(err)
		}

		if a.rec != nil {
			a.rec.StoreError(op)
		}
		return err
	}

	if retries == 0 {
		err := attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxInterval = 100 * time.Millisecond
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
	return backoff.Retry(attempt, b)
}

func (a *Authority) decision(op string, err error) {
	if a.rec != nil {
		a.rec.Decision(op, Outcome(err))
	}
}
