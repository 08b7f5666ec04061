package http

import (
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/authflow/api/auth" // Swagger docs
	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.Profiles

	Session *service.SessionService

	// Readiness checks. Challenges is only set when MFA challenges live
	// outside the database.
	Database   Pinger
	Challenges Pinger
}

func NewRouter(
	session *service.SessionService,
	database Pinger,
	buildVersion string,
	limits httpx.Profiles,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		Session:      session,
		Database:     database,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
		httpx.SecurityHeaders(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMFA()
	r.registerOAuth()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Authflow Authentication Service API
//	@version		0.1.0
//	@description	Session and multi-factor authentication service. Issues signed session tokens, validates them against a per-user revocation epoch, and runs TOTP, email and SMS challenges.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/authflow
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
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn resolves the bearer token to a domain.User via the session service.
func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware[domain.User](r.Session.VerifyToken, httpx.PolicyRequire,
		httpx.WithErrorWriter(writeAuthnError),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Session: r.Session}

	// POST /register - strict rate limit by IP + email (account creation)
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)

	// POST /login - strict rate limit by IP + email to slow password guessing
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)

	// GET /me - lenient rate limit by user (called on every page load by SDK middleware)
	r.Mux.Handle("GET /api/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			r.authn(),
			httpx.RateLimitByUser(r.limits.Lenient),
		),
	)

	// POST /logout - validates the token itself so a repeat call is still 204
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{Session: r.Session}

	// POST /mfa/setup - moderate rate limit by user (each call may send a message)
	r.Mux.Handle("POST /api/auth/mfa/setup",
		httpx.Chain(http.HandlerFunc(h.HandleSetup),
			r.authn(),
			httpx.RateLimitByUser(r.limits.Moderate),
		),
	)

	// POST /mfa/verify - strict rate limit by user (prevent brute force of codes)
	r.Mux.Handle("POST /api/auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			r.authn(),
			httpx.RateLimitByUser(r.limits.Strict),
		),
	)

	// POST /mfa/disable - strict rate limit by user (accepts backup codes)
	r.Mux.Handle("POST /api/auth/mfa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			r.authn(),
			httpx.RateLimitByUser(r.limits.Strict),
		),
	)
}

func (r *Router) registerOAuth() {
	h := &OAuthHandler{Session: r.Session}

	r.Mux.Handle("GET /api/auth/oauth/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleRedirect),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - public rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Database, r.Challenges),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
}
