package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/funnelkit/qrstock/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var settingDefaults = map[string]int{
	settings.BatchDepletingPercentKey:          settings.DefaultBatchDepletingPercent,
	settings.BatchCriticalPercentKey:           settings.DefaultBatchCriticalPercent,
	settings.AlertCacheTTLSecondsKey:           settings.DefaultAlertCacheTTLSeconds,
	settings.LedgerReconcileIntervalSecondsKey: settings.DefaultLedgerReconcileIntervalSeconds,
}

// SettingHandler reads and writes DB-backed settings.
type SettingHandler struct {
	db  *gorm.DB
	svc *inventory.Service
}

// NewSettingHandler constructs a SettingHandler.
func NewSettingHandler(db *gorm.DB, svc *inventory.Service) *SettingHandler {
	return &SettingHandler{db: db, svc: svc}
}

// List returns every known setting with its effective value.
func (h *SettingHandler) List(c *gin.Context) {
	out := make([]gin.H, 0, len(settings.Keys))
	for _, key := range settings.Keys {
		_, stored := settings.DBConfigValue(key)
		out = append(out, gin.H{
			"key":     key,
			"value":   settings.IntValue(key, settingDefaults[key]),
			"default": settingDefaults[key],
			"stored":  stored,
		})
	}
	c.JSON(http.StatusOK, gin.H{"settings": out, "updated_at": settings.DBConfigUpdatedAt()})
}

// Update upserts settings. Only known keys with non-negative integer values are accepted.
func (h *SettingHandler) Update(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings given"})
		return
	}

	values := make(map[string]json.RawMessage, len(body))
	effective := make(map[string]int, len(settings.Keys))
	for _, key := range settings.Keys {
		effective[key] = settings.IntValue(key, settingDefaults[key])
	}
	for rawKey, raw := range body {
		key := strings.ToUpper(strings.TrimSpace(rawKey))
		if !settings.IsKnownKey(key) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting " + rawKey})
			return
		}
		n, ok := settings.ParseInt(raw)
		if !ok || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for " + key})
			return
		}
		values[key] = raw
		effective[key] = n
	}

	depleting := effective[settings.BatchDepletingPercentKey]
	critical := effective[settings.BatchCriticalPercentKey]
	if depleting < 1 || critical > 100 || depleting >= critical {
		c.JSON(http.StatusBadRequest, gin.H{"error": "thresholds must satisfy 1 <= depleting < critical <= 100"})
		return
	}

	ctx := c.Request.Context()
	if errUpsert := settings.Upsert(ctx, h.db, values); errUpsert != nil {
		log.WithError(errUpsert).Error("settings: upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update settings failed"})
		return
	}
	h.svc.InvalidateAlerts(ctx)
	h.List(c)
}
