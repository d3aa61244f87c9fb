// Package httpapi exposes the authentication service over HTTP. Routes live
// under /api/v1/auth and every JSON body uses the success/data/error
// envelope from response.go.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/onicare/admin-backend/internal/auth"
	"github.com/onicare/admin-backend/internal/authtoken"
	"github.com/onicare/admin-backend/internal/logging"
	"github.com/onicare/admin-backend/internal/metrics"
	"github.com/onicare/admin-backend/internal/tokencache"
)

// Deps carries everything the router wires together.
type Deps struct {
	Auth        *auth.Service
	Cache       *tokencache.Store
	Codec       *authtoken.Codec
	DB          DBPinger
	Metrics     *metrics.Registry
	Logger      logging.Logger
	CORSOrigins []string
	Env         string
}

// NewRouter assembles the gin engine with middleware and all routes.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = logging.Discard()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))

	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	gate := NewGate(deps.Cache, deps.Codec, log)
	authHandler := NewAuthHandler(deps.Auth, log)
	healthHandler := NewHealthHandler(deps.DB, deps.Cache, deps.Metrics)

	r.GET("/health", healthHandler.Health)

	grp := r.Group("/api/v1/auth")
	{
		grp.POST("/login", authHandler.Login)
		grp.POST("/refresh", authHandler.Refresh)
		grp.POST("/logout", gate.RequireAuth(), authHandler.Logout)
		grp.GET("/verify", gate.RequireAuth(), authHandler.Verify)
	}

	return r
}
