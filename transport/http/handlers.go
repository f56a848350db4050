package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/service"
)

// WalletHandlers contains HTTP handlers for wallet endpoints
type WalletHandlers struct {
	walletService *service.WalletService
}

// NewWalletHandlers creates new wallet handlers
func NewWalletHandlers(walletService *service.WalletService) *WalletHandlers {
	return &WalletHandlers{
		walletService: walletService,
	}
}

type auditRecordResponse struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Action      string         `json:"action"`
	PublicKey   string         `json:"public_key,omitempty"`
	PreviousKey string         `json:"previous_key,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Suspicious  bool           `json:"suspicious"`
	Reason      string         `json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type paginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type auditPageResponse struct {
	Data       []auditRecordResponse `json:"data"`
	Pagination paginationResponse    `json:"pagination"`
}

func toAuditPageResponse(page core.AuditPage) auditPageResponse {
	data := make([]auditRecordResponse, 0, len(page.Data))
	for _, r := range page.Data {
		data = append(data, auditRecordResponse{
			ID:          r.ID,
			UserID:      r.UserID,
			Action:      r.Action,
			PublicKey:   r.PublicKey,
			PreviousKey: r.PreviousKey,
			Metadata:    r.Metadata,
			IPAddress:   r.Origin.IPAddress,
			UserAgent:   r.Origin.UserAgent,
			Suspicious:  r.Suspicious,
			Reason:      r.Reason,
			CreatedAt:   r.CreatedAt,
		})
	}
	return auditPageResponse{
		Data: data,
		Pagination: paginationResponse{
			Page:       page.Pagination.Page,
			Limit:      page.Pagination.Limit,
			Total:      page.Pagination.Total,
			TotalPages: page.Pagination.TotalPages,
		},
	}
}

// Challenge issues a challenge for the caller and the submitted key
func (h *WalletHandlers) Challenge(c *gin.Context) {
	var req struct {
		PublicKey string `json:"public_key" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	caller, _ := callerFrom(c)
	challenge, err := h.walletService.IssueChallenge(c.Request.Context(), caller.UserID, req.PublicKey, originOf(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      challenge.Nonce,
		"message":    challenge.Message,
		"expires_at": challenge.ExpiresAt,
	})
}

// Verify checks a signed challenge and connects the wallet
func (h *WalletHandlers) Verify(c *gin.Context) {
	var req struct {
		PublicKey string `json:"public_key" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	caller, _ := callerFrom(c)
	address, err := h.walletService.VerifyAndConnect(c.Request.Context(), caller.UserID, core.VerifyRequest{
		PublicKey: req.PublicKey,
		Message:   req.Message,
		Signature: req.Signature,
	}, originOf(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"wallet_address": address,
	})
}

// Disconnect unbinds the caller's wallet
func (h *WalletHandlers) Disconnect(c *gin.Context) {
	caller, _ := callerFrom(c)
	if err := h.walletService.DisconnectWallet(c.Request.Context(), caller.UserID, originOf(c)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status returns the caller's wallet status
func (h *WalletHandlers) Status(c *gin.Context) {
	caller, _ := callerFrom(c)
	status, err := h.walletService.GetStatus(c.Request.Context(), caller.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":             status.Connected,
		"wallet_address":        status.WalletAddress,
		"connected_at":          status.ConnectedAt,
		"last_verified":         status.LastVerified,
		"pending_verifications": status.PendingVerifications,
	})
}

// History returns the caller's audit trail
func (h *WalletHandlers) History(c *gin.Context) {
	caller, _ := callerFrom(c)
	page, err := h.walletService.GetHistory(c.Request.Context(), caller.UserID, pageRequestOf(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuditPageResponse(page))
}

// Suspicious returns suspicious activity across all accounts
func (h *WalletHandlers) Suspicious(c *gin.Context) {
	page, err := h.walletService.GetSuspiciousActivity(c.Request.Context(), pageRequestOf(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuditPageResponse(page))
}

func originOf(c *gin.Context) core.Origin {
	return core.Origin{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// pageRequestOf reads page and limit. Missing or malformed values fall back
// to the defaults.
func pageRequestOf(c *gin.Context) core.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return core.PageRequest{Page: page, Limit: limit}.Normalize()
}

// writeError maps service errors to status codes. Messages stay generic.
func writeError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	errorMsg := "Internal error"

	var limited *core.RateLimitError
	switch {
	case errors.As(err, &limited):
		c.Header("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())))
		statusCode = http.StatusTooManyRequests
		errorMsg = "Too many verification attempts"
	case errors.Is(err, core.ErrTooManyAttempts):
		statusCode = http.StatusTooManyRequests
		errorMsg = "Too many verification attempts"
	case errors.Is(err, core.ErrInvalidKeyFormat):
		statusCode = http.StatusBadRequest
		errorMsg = "Invalid wallet public key"
	case errors.Is(err, core.ErrWalletAlreadyBound):
		statusCode = http.StatusConflict
		errorMsg = "Wallet already connected to another account"
	case errors.Is(err, core.ErrNoValidChallenge):
		statusCode = http.StatusBadRequest
		errorMsg = "Invalid or expired challenge"
	case errors.Is(err, core.ErrInvalidSignature):
		statusCode = http.StatusUnauthorized
		errorMsg = "Invalid signature"
	case errors.Is(err, core.ErrNoWalletConnected):
		statusCode = http.StatusBadRequest
		errorMsg = "No wallet connected"
	case errors.Is(err, core.ErrAccountNotFound):
		statusCode = http.StatusNotFound
		errorMsg = "Account not found"
	}

	c.JSON(statusCode, gin.H{"error": errorMsg})
}
