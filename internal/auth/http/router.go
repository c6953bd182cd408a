package http

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/campus/api/auth" // Swagger docs
	"github.com/aussiebroadwan/campus/internal/auth/domain"
	"github.com/aussiebroadwan/campus/internal/auth/metrics"
	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	limits       httpx.RateLimits
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Authority   *service.Authority
	UserService *service.UserService
	Directory   store.Directory
	Revocations store.Revocations
	Metrics     *metrics.Metrics // optional
}

func NewRouter(
	keys *jwtx.KeySet,
	limits httpx.RateLimits,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		limits:       limits,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Campus Session Service API
//	@version		0.1.0
//	@description	Password login for students, teachers and admins, issuing RS256 access tokens.
//	@description
//	@description				Tokens can be refreshed once and revoked on logout. Verify them with the JWKS endpoint.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Authority: r.Authority}

	// Keyed by IP and username so one client cannot lock out everyone
	// behind the same NAT.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndFormField(r.limits.Strict, r.limits.ClientIP(), "username"),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.limits.Moderate, r.limits.ClientIP()),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.limits.Moderate, r.limits.ClientIP()),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.limits.Public, r.limits.ClientIP()),
		),
	)
}

func (r *Router) registerUsers() {
	me := &MeHandler{Authority: r.Authority}
	r.Mux.Handle("GET /v1/me",
		httpx.Chain(me,
			httpx.RateLimitByIP(r.limits.Lenient, r.limits.ClientIP()),
		),
	)

	create := &CreateUserHandler{UserService: r.UserService}
	r.Mux.Handle("POST /v1/admin/users",
		httpx.Chain(create,
			httpx.AuthnMiddleware(authenticator(r.Authority), domain.ScopeUsersWrite),
			httpx.RateLimitBySubject(r.limits.Moderate, r.limits.ClientIP()),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Public, r.limits.ClientIP()),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Directory, r.Revocations, r.keys),
			httpx.RateLimitByIP(r.limits.Public, r.limits.ClientIP()),
		),
	)
	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
