package handlers

import (
	"context"
	"net/http"
	"time"

	dbutil "github.com/funnelkit/qrstock/internal/db"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports whether the inventory database is reachable.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz pings the database with a short deadline.
func (h *HealthHandler) Healthz(c *gin.Context) {
	dialect := dbutil.DialectName(h.db)
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": dialect})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		log.WithError(errPing).Warn("health check: database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": dialect})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "database": dialect, "time": time.Now().UTC()})
}
