package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/onicare/admin-backend/internal/auth"
	"github.com/onicare/admin-backend/internal/logging"
)

// AuthHandler serves the /auth endpoint group.
type AuthHandler struct {
	svc *auth.Service
	log logging.Logger
}

func NewAuthHandler(svc *auth.Service, log logging.Logger) *AuthHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &AuthHandler{svc: svc, log: log}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login exchanges credentials for a token pair plus a profile snapshot.
// Every authentication failure maps to the same 401 body.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fail(CodeValidationError, "email and password are required"))
		return
	}

	ctx := auth.WithClientIP(c.Request.Context(), c.ClientIP())
	ctx = auth.WithUserAgent(ctx, c.Request.UserAgent())

	result, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			c.JSON(http.StatusUnauthorized, fail(CodeAuthError, "Incorrect email or password"))
			return
		}
		h.log.Error(ctx, "login failed", "error", err)
		c.JSON(http.StatusInternalServerError, fail(CodeInternalError, "internal server error"))
		return
	}

	c.JSON(http.StatusOK, ok(result))
}

// Refresh rotates a refresh token into a fresh pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fail(CodeValidationError, "refresh_token is required"))
		return
	}

	ctx := auth.WithClientIP(c.Request.Context(), c.ClientIP())
	ctx = auth.WithUserAgent(ctx, c.Request.UserAgent())

	pair, err := h.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			c.JSON(http.StatusUnauthorized, fail(CodeAuthError, "Could not validate credentials"))
			return
		}
		h.log.Error(ctx, "refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, fail(CodeInternalError, "internal server error"))
		return
	}

	c.JSON(http.StatusOK, ok(pair))
}

// Logout revokes the presented access token and drops the caller's session
// record. It sits behind the auth gate and always reports success.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, okClaims := ClaimsFrom(c)
	if !okClaims {
		c.JSON(http.StatusUnauthorized, fail(CodeAuthError, "Could not validate credentials"))
		return
	}

	ctx := auth.WithClientIP(c.Request.Context(), c.ClientIP())
	ctx = auth.WithUserAgent(ctx, c.Request.UserAgent())

	h.svc.Logout(ctx, claims, bearerFrom(c))

	c.JSON(http.StatusOK, ok(gin.H{"message": "Successfully logged out"}))
}

// Verify echoes the identity carried by the presented access token.
func (h *AuthHandler) Verify(c *gin.Context) {
	claims, okClaims := ClaimsFrom(c)
	if !okClaims {
		c.JSON(http.StatusUnauthorized, fail(CodeAuthError, "Could not validate credentials"))
		return
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, fail(CodeAuthError, "Could not validate credentials"))
		return
	}

	c.JSON(http.StatusOK, ok(gin.H{
		"id":           id,
		"email":        claims.Email,
		"name":         claims.Name,
		"role":         claims.Role,
		"organization": claims.Organization,
	}))
}
