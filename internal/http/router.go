// Package http assembles the gin engine serving the admin API.
package http

import (
	"net/http"
	"time"

	"github.com/funnelkit/qrstock/internal/config"
	"github.com/funnelkit/qrstock/internal/http/api/admin"
	"github.com/funnelkit/qrstock/internal/http/api/admin/handlers"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/util"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const requestIDHeader = "X-Request-ID"

// NewRouter builds the engine with request logging, CORS, health and admin routes.
func NewRouter(cfg config.Config, db *gorm.DB, svc *inventory.Service) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware(), RequestLogMiddleware(), gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	r.GET("/healthz", handlers.NewHealthHandler(db).Healthz)
	admin.RegisterAdminRoutes(r, db, cfg.JWT, svc)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	corsCfg := cors.DefaultConfig()
	if len(origins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AddAllowMethods(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions)
	corsCfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", requestIDHeader)
	corsCfg.AddExposeHeaders("Content-Length", requestIDHeader)
	return corsCfg
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogMiddleware logs one line per request with secrets masked from the query.
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"request_id": c.GetString("requestID"),
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
			entry = entry.WithField("query", util.MaskSensitiveQuery(rawQuery))
		}
		if adminID, ok := c.Get("adminID"); ok {
			entry = entry.WithField("admin_id", adminID)
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
