package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	invite "github.com/davemagnier/youmio-invite"
	"github.com/davemagnier/youmio-invite/session"
)

const maxWebhookBody = 1 << 20 // 1MB

type verifyRequest struct {
	Wallet    string `json:"wallet" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type issueRequest struct {
	Wallet    string `json:"wallet" binding:"required"`
	SessionID string `json:"session_id"`
}

type claimRequest struct {
	Code   string `json:"code" binding:"required"`
	Wallet string `json:"wallet" binding:"required"`
}

type adminStatsRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleChallenge(c *gin.Context) {
	auth := s.engine.Sessions()
	if auth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "wallet verification disabled"})
		return
	}

	message, err := auth.Challenge(c.Query("wallet"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func (s *Server) handleVerifyWallet(c *gin.Context) {
	auth := s.engine.Sessions()
	if auth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "wallet verification disabled"})
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet, message, and signature are required"})
		return
	}

	sessionID := uuid.NewString()
	if err := auth.Verify(req.Wallet, req.Message, req.Signature, sessionID); err != nil {
		s.logger.Warn("wallet verification failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": verifyFailureMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verified":   true,
		"session_id": sessionID,
		"expires_in": int(auth.TTL() / time.Second),
	})
}

func verifyFailureMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrBadNonce):
		return "challenge expired, request a new one"
	case errors.Is(err, session.ErrMismatch):
		return "signature does not match wallet"
	default:
		return "signature verification failed"
	}
}

func (s *Server) handleIssueCode(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is required"})
		return
	}

	code, remaining, err := s.engine.Issue(c.Request.Context(), req.Wallet, req.SessionID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"code":              code.Code,
		"created_at":        code.CreatedAt,
		"invites_remaining": remaining,
	})
}

func (s *Server) handleListCodes(c *gin.Context) {
	codes, err := s.engine.Codes(c.Request.Context(), c.Query("wallet"), c.Query("session_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

func (s *Server) handleCheckCode(c *gin.Context) {
	status, err := s.engine.Check(c.Request.Context(), c.Query("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleCheckInvite(c *gin.Context) {
	status, err := s.engine.Status(c.Request.Context(), c.Query("wallet"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleClaim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and wallet are required"})
		return
	}

	cl, err := s.engine.Redeem(c.Request.Context(), req.Code, req.Wallet)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"inviter":    cl.InviterWallet,
		"claimed_at": cl.ClaimedAt,
	})
}

// handlePaymentWebhook always acknowledges with 200 so the provider does not
// retry a delivery the ledger has already decided about. Processing outcomes
// ride in the body.
func (s *Server) handlePaymentWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"received": true, "error": "unreadable payload"})
		return
	}

	sig := c.GetHeader("X-Webhook-Signature")
	if sig == "" {
		sig = c.GetHeader("Stripe-Signature")
	}

	result, err := s.engine.Attribute(c.Request.Context(), payload, sig)
	if err != nil {
		if errors.Is(err, invite.ErrBadWebhookSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		s.logger.Error("webhook processing failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true, "error": "processing failed"})
		return
	}

	resp := gin.H{"received": true, "recorded": result.Recorded}
	if result.SkipReason != "" {
		resp["skip_reason"] = result.SkipReason
	}
	c.JSON(http.StatusOK, resp)
}

// handleLogWebhook relays client-side log events into the server log.
func (s *Server) handleLogWebhook(c *gin.Context) {
	var event map[string]any
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	s.logger.Info("client log event",
		"level", event["level"],
		"message", event["message"],
		"context", event["context"],
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleSync triggers a reconcile pass. Scheduler integrations treat any
// non-200 as a trigger failure, so errors ride in a 200 body.
func (s *Server) handleSync(c *gin.Context) {
	if s.syncKey != "" {
		got := c.GetHeader("X-Sync-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.syncKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid sync key"})
			return
		}
	}

	summary, err := s.engine.Reconcile(c.Request.Context())
	if err != nil {
		s.logger.Error("manual reconcile failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"synced":     summary.Synced,
		"failed":     summary.Failed,
		"total":      summary.Total,
		"backfilled": summary.Backfilled,
	})
}

func (s *Server) handleAdminStats(c *gin.Context) {
	if s.adminPassword == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin access not configured"})
		return
	}

	var req adminStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// writeError maps engine errors onto the HTTP surface. Conflicts are 400s:
// the request was understood and definitively refused, and a retry with the
// same input can never succeed.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case invite.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case invite.IsConflict(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": conflictMessage(err)})
	case invite.IsAuthFailure(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session required or expired"})
	case invite.IsNotFound(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invite code"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, invite.ErrQuotaExhausted):
		return "no invites remaining"
	case errors.Is(err, invite.ErrCodeAlreadyUsed):
		return "code has already been used"
	case errors.Is(err, invite.ErrSelfInvite):
		return "cannot claim your own invite code"
	case errors.Is(err, invite.ErrAlreadyAllowlisted):
		return "wallet already has access"
	case errors.Is(err, invite.ErrAlreadyClaimed):
		return "wallet has already claimed an invite"
	case errors.Is(err, invite.ErrNotAllowlisted):
		return "wallet is not on the allowlist"
	default:
		return err.Error()
	}
}
