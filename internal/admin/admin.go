// Package admin exposes the operator-facing sidecar: runtime stats and a
// manual config reload trigger, kept on a separate port from the
// client-facing proxy so it can be firewalled off independently.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/funnycups/toolify-go/internal/config"
	"github.com/funnycups/toolify-go/internal/idmap"
)

// Deps are the shared components the admin sidecar reports on.
type Deps struct {
	Loader *config.Loader
	IDMap  *idmap.Map
	Logger *zap.Logger
}

// New builds the gin engine for the admin sidecar.
func New(deps Deps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/admin/stats", func(c *gin.Context) {
		app := deps.Loader.Current()
		upstreams := make([]gin.H, 0, len(app.UpstreamServices))
		for _, svc := range app.UpstreamServices {
			upstreams = append(upstreams, gin.H{
				"name":     svc.Name,
				"models":   svc.Models,
				"priority": svc.Priority,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"id_map":    deps.IDMap.Stats(),
			"upstreams": upstreams,
			"features":  app.Features,
		})
	})

	r.POST("/admin/reload", func(c *gin.Context) {
		app, err := deps.Loader.Reload()
		if err != nil {
			deps.Logger.Warn("admin-triggered reload rejected", zap.Error(err))
			c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "rejected", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reloaded", "upstream_count": len(app.UpstreamServices)})
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
