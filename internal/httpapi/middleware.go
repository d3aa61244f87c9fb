package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/onicare/admin-backend/internal/authtoken"
	"github.com/onicare/admin-backend/internal/logging"
	"github.com/onicare/admin-backend/internal/tokencache"
)

const (
	requestIDHeader = "X-Request-ID"

	claimsKey      = "auth.claims"
	bearerTokenKey = "auth.bearer"
)

// RequestID tags each request with a correlation id, honoring one supplied
// by the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		)
	}
}

// Gate guards protected routes with bearer-token checks. Revocation is
// consulted before the token is even decoded, so a blacklisted token is
// rejected no matter what its payload claims.
type Gate struct {
	cache *tokencache.Store
	codec *authtoken.Codec
	log   logging.Logger
}

// NewGate builds a Gate over the session cache and token codec.
func NewGate(cache *tokencache.Store, codec *authtoken.Codec, log logging.Logger) *Gate {
	if log == nil {
		log = logging.Discard()
	}
	return &Gate{cache: cache, codec: codec, log: log}
}

// RequireAuth rejects the request with 401 unless it carries a live access
// token. On success the verified claims are stored in the gin context.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, token, okAuth := g.authenticate(c)
		if !okAuth {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				fail(CodeAuthError, "Could not validate credentials"))
			return
		}
		c.Set(claimsKey, claims)
		c.Set(bearerTokenKey, token)
		c.Next()
	}
}

// OptionalAuth attaches claims when a live access token is present and lets
// the request through anonymously otherwise. It never rejects.
func (g *Gate) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, token, okAuth := g.authenticate(c); okAuth {
			c.Set(claimsKey, claims)
			c.Set(bearerTokenKey, token)
		} else {
			g.log.Debug(c.Request.Context(), "optional auth: proceeding anonymously",
				"path", c.Request.URL.Path)
		}
		c.Next()
	}
}

func (g *Gate) authenticate(c *gin.Context) (*authtoken.Claims, string, bool) {
	token := bearerToken(c)
	if token == "" {
		return nil, "", false
	}

	// revocation first: a blacklisted token must not pass even if it would
	// decode cleanly
	if g.cache.IsRevoked(c.Request.Context(), token) {
		return nil, "", false
	}

	result := g.codec.Decode(token)
	if !result.Valid() || result.Claims.Kind != authtoken.KindAccess {
		return nil, "", false
	}
	if result.Claims.Subject == "" {
		return nil, "", false
	}
	return result.Claims, token, true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return ""
	}
	return token
}

// ClaimsFrom returns the verified claims the Gate stored for this request.
func ClaimsFrom(c *gin.Context) (*authtoken.Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, okCast := v.(*authtoken.Claims)
	return claims, okCast
}

func bearerFrom(c *gin.Context) string {
	return c.GetString(bearerTokenKey)
}
