// Package httpapi exposes the invite engine over HTTP. Routes are grouped by
// rate-limit class: reads, signature verification, code issuance, and claims
// each get their own per-client window.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	invite "github.com/davemagnier/youmio-invite"
	"github.com/davemagnier/youmio-invite/ratelimit"
)

// Per-client request limits per minute, by endpoint class.
const (
	ReadLimit   = 30
	VerifyLimit = 10
	IssueLimit  = 10
	ClaimLimit  = 5
)

// Server is the invite HTTP server.
type Server struct {
	engine *invite.Engine
	router *gin.Engine
	logger *slog.Logger

	adminPassword string
	syncKey       string

	readLimiter   *ratelimit.Limiter
	verifyLimiter *ratelimit.Limiter
	issueLimiter  *ratelimit.Limiter
	claimLimiter  *ratelimit.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAdminPassword enables the admin stats endpoint.
func WithAdminPassword(password string) Option {
	return func(s *Server) { s.adminPassword = password }
}

// WithSyncKey gates the manual reconcile endpoint behind a shared key.
func WithSyncKey(key string) Option {
	return func(s *Server) { s.syncKey = key }
}

// NewServer creates the HTTP server around engine.
func NewServer(engine *invite.Engine, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine:        engine,
		router:        router,
		logger:        slog.Default(),
		readLimiter:   ratelimit.New(ReadLimit),
		verifyLimiter: ratelimit.New(VerifyLimit),
		issueLimiter:  ratelimit.New(IssueLimit),
		claimLimiter:  ratelimit.New(ClaimLimit),
	}
	for _, opt := range opts {
		opt(s)
	}

	router.Use(s.cors())

	api := router.Group("/api")
	{
		api.GET("/challenge", s.limit(s.verifyLimiter), s.handleChallenge)
		api.POST("/verify-wallet", s.limit(s.verifyLimiter), s.handleVerifyWallet)

		api.POST("/codes", s.limit(s.issueLimiter), s.handleIssueCode)
		api.GET("/codes", s.limit(s.readLimiter), s.handleListCodes)

		api.GET("/check-code", s.limit(s.readLimiter), s.handleCheckCode)
		api.GET("/check-invite", s.limit(s.readLimiter), s.handleCheckInvite)

		api.POST("/claim", s.limit(s.claimLimiter), s.handleClaim)

		api.POST("/webhooks/payment", s.handlePaymentWebhook)
		api.POST("/webhooks/log", s.handleLogWebhook)

		api.POST("/sync", s.handleSync)
		api.POST("/admin/stats", s.handleAdminStats)
	}

	return s
}

// Handler returns the underlying http.Handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server on addr.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.router.Run(addr)
}

// clientKey identifies the caller for rate limiting. Deployments behind a
// proxy forward the original address; otherwise fall back to the peer.
func clientKey(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return c.ClientIP()
}

func (s *Server) limit(l *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(clientKey(c)) {
			retry := int(ratelimit.DefaultWindow / time.Second)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Sync-Key, X-Webhook-Signature")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
