package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onicare/admin-backend/internal/metrics"
	"github.com/onicare/admin-backend/internal/tokencache"
)

// DBPinger is the slice of the store manager the health check needs.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports component liveness. The session cache is advisory
// (auth runs fail-open without it) so a cache outage degrades the report
// instead of failing it; a dead database fails it.
type HealthHandler struct {
	db      DBPinger
	cache   *tokencache.Store
	metrics *metrics.Registry
}

func NewHealthHandler(db DBPinger, cache *tokencache.Store, reg *metrics.Registry) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, metrics: reg}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	overall := "ok"
	components := gin.H{}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			components["database"] = "down"
			overall = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			components["database"] = "up"
		}
	}

	if h.cache != nil {
		if _, err := h.cache.Ping(ctx); err != nil {
			components["session_cache"] = "down"
			if overall == "ok" {
				overall = "degraded"
			}
		} else {
			components["session_cache"] = "up"
		}
	}

	body := gin.H{"status": overall, "components": components}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}

	if status == http.StatusOK {
		c.JSON(status, ok(body))
	} else {
		c.JSON(status, Response{Success: false, Data: body})
	}
}
