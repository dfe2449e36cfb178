package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/funnelkit/qrstock/internal/models"
	"github.com/funnelkit/qrstock/internal/settings"
	log "github.com/sirupsen/logrus"
)

// AlertType names an alert condition.
type AlertType string

// Alert types.
const (
	AlertOutOfStock     AlertType = "out_of_stock"
	AlertLowStock       AlertType = "low_stock"
	AlertBatchDepleting AlertType = "batch_depleting"
	AlertBatchDepleted  AlertType = "batch_depleted"
)

// Severity orders alerts for display.
type Severity string

// Severities from most to least urgent.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	}
	return 2
}

// ParseAlertType validates an alert filter. An empty string means no filter.
func ParseAlertType(raw string) (AlertType, error) {
	switch t := AlertType(strings.TrimSpace(raw)); t {
	case "", AlertOutOfStock, AlertLowStock, AlertBatchDepleting, AlertBatchDepleted:
		return t, nil
	}
	return "", invalid("unknown alert type %q", raw)
}

// Alert is one stock or allocation condition needing attention.
type Alert struct {
	Type              AlertType `json:"type"`
	Severity          Severity  `json:"severity"`
	ProductID         uint64    `json:"product_id"`
	ProductName       string    `json:"product_name"`
	CurrentStock      *int      `json:"current_stock,omitempty"`
	LowStockThreshold *int      `json:"low_stock_threshold,omitempty"`
	AllocationID      *uint64   `json:"allocation_id,omitempty"`
	BatchID           *uint64   `json:"batch_id,omitempty"`
	BatchNumber       string    `json:"batch_number,omitempty"`
	QuantityAllocated *int      `json:"quantity_allocated,omitempty"`
	QuantityRemaining *int      `json:"quantity_remaining,omitempty"`
	UsagePercent      *float64  `json:"usage_percent,omitempty"`
	Message           string    `json:"message"`
}

// AlertCounts tallies alerts by severity.
type AlertCounts struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// AlertReport is the ListAlerts response.
type AlertReport struct {
	Alerts []Alert     `json:"alerts"`
	Counts AlertCounts `json:"counts"`
}

// Thresholds are the allocation usage percentages that raise alerts.
type Thresholds struct {
	DepletingPercent float64
	CriticalPercent  float64
}

// DefaultThresholds returns the built-in 80/95 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DepletingPercent: settings.DefaultBatchDepletingPercent,
		CriticalPercent:  settings.DefaultBatchCriticalPercent,
	}
}

// ThresholdsFromSettings reads the thresholds from the settings snapshot.
func ThresholdsFromSettings() Thresholds {
	return Thresholds{
		DepletingPercent: float64(settings.IntValue(settings.BatchDepletingPercentKey, settings.DefaultBatchDepletingPercent)),
		CriticalPercent:  float64(settings.IntValue(settings.BatchCriticalPercentKey, settings.DefaultBatchCriticalPercent)),
	}
}

// ProductStock is the alert view of a tracked product.
type ProductStock struct {
	ProductID         uint64
	ProductName       string
	CurrentStock      *int
	LowStockThreshold int
}

// AllocationUsage is the alert view of an allocation.
type AllocationUsage struct {
	AllocationID      uint64
	ProductID         uint64
	ProductName       string
	BatchID           uint64
	BatchNumber       string
	QuantityAllocated int
	QuantityRemaining int
}

// EvaluateAlerts classifies products then allocations and stable-sorts the
// result by severity.
func EvaluateAlerts(products []ProductStock, allocations []AllocationUsage, th Thresholds) []Alert {
	alerts := make([]Alert, 0)
	for _, p := range products {
		if p.CurrentStock == nil {
			continue
		}
		stock, threshold := *p.CurrentStock, p.LowStockThreshold
		switch {
		case stock == 0:
			alerts = append(alerts, Alert{
				Type:              AlertOutOfStock,
				Severity:          SeverityCritical,
				ProductID:         p.ProductID,
				ProductName:       p.ProductName,
				CurrentStock:      &stock,
				LowStockThreshold: &threshold,
				Message:           fmt.Sprintf("%s is out of stock", p.ProductName),
			})
		case stock > 0 && stock <= threshold:
			alerts = append(alerts, Alert{
				Type:              AlertLowStock,
				Severity:          SeverityWarning,
				ProductID:         p.ProductID,
				ProductName:       p.ProductName,
				CurrentStock:      &stock,
				LowStockThreshold: &threshold,
				Message:           fmt.Sprintf("%s is low on stock (%d left, threshold %d)", p.ProductName, stock, threshold),
			})
		}
	}
	for _, a := range allocations {
		if a.QuantityAllocated <= 0 {
			continue
		}
		usage := float64(a.QuantityAllocated-a.QuantityRemaining) / float64(a.QuantityAllocated) * 100
		alert := Alert{
			ProductID:         a.ProductID,
			ProductName:       a.ProductName,
			AllocationID:      &a.AllocationID,
			BatchID:           &a.BatchID,
			BatchNumber:       a.BatchNumber,
			QuantityAllocated: &a.QuantityAllocated,
			QuantityRemaining: &a.QuantityRemaining,
		}
		rounded := math.Round(usage*100) / 100
		alert.UsagePercent = &rounded
		switch {
		case a.QuantityRemaining == 0:
			alert.Type, alert.Severity = AlertBatchDepleted, SeverityInfo
			alert.Message = fmt.Sprintf("allocation of %s in batch %s is depleted", a.ProductName, a.BatchNumber)
		case usage >= th.DepletingPercent:
			alert.Type, alert.Severity = AlertBatchDepleting, SeverityInfo
			if usage >= th.CriticalPercent {
				alert.Severity = SeverityWarning
			}
			alert.Message = fmt.Sprintf("allocation of %s in batch %s is %.0f%% used", a.ProductName, a.BatchNumber, usage)
		default:
			continue
		}
		alerts = append(alerts, alert)
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.rank() < alerts[j].Severity.rank()
	})
	return alerts
}

// FilterAlerts keeps alerts of one type. An empty type keeps everything.
func FilterAlerts(alerts []Alert, t AlertType) []Alert {
	if t == "" {
		return alerts
	}
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// CountAlerts tallies alerts by severity.
func CountAlerts(alerts []Alert) AlertCounts {
	var counts AlertCounts
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			counts.Critical++
		case SeverityWarning:
			counts.Warning++
		default:
			counts.Info++
		}
	}
	counts.Total = len(alerts)
	return counts
}

// ListAlerts evaluates current stock and allocation usage, optionally
// restricted to one alert type.
func (s *Service) ListAlerts(ctx context.Context, filter string) (AlertReport, error) {
	alertType, errType := ParseAlertType(filter)
	if errType != nil {
		return AlertReport{}, errType
	}
	th := ThresholdsFromSettings()
	key := fmt.Sprintf("alerts:%s:%g:%g", alertType, th.DepletingPercent, th.CriticalPercent)
	var version string
	if s.cache != nil {
		report, v, ok := s.cache.Get(ctx, key)
		if ok {
			return report, nil
		}
		version = v
	}

	var products []models.SellableProduct
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND tracks_inventory = ? AND current_stock IS NOT NULL", true, true).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return AlertReport{}, err
	}
	stocks := make([]ProductStock, 0, len(products))
	for _, p := range products {
		stocks = append(stocks, ProductStock{
			ProductID:         p.ID,
			ProductName:       p.Name,
			CurrentStock:      p.CurrentStock,
			LowStockThreshold: p.LowStockThreshold,
		})
	}

	var usages []AllocationUsage
	if err := s.db.WithContext(ctx).
		Table("product_batch_inventories AS a").
		Select("a.id AS allocation_id, a.product_id, p.name AS product_name, a.batch_id, b.batch_number, a.quantity_allocated, a.quantity_remaining").
		Joins("JOIN sellable_products p ON p.id = a.product_id").
		Joins("JOIN qr_batches b ON b.id = a.batch_id").
		Where("a.is_active = ? AND a.quantity_allocated > 0", true).
		Order("a.id ASC").
		Scan(&usages).Error; err != nil {
		return AlertReport{}, err
	}

	alerts := FilterAlerts(EvaluateAlerts(stocks, usages, th), alertType)
	report := AlertReport{Alerts: alerts, Counts: CountAlerts(alerts)}
	if s.cache != nil && version != "" {
		ttl := time.Duration(settings.IntValue(settings.AlertCacheTTLSecondsKey, settings.DefaultAlertCacheTTLSeconds)) * time.Second
		s.cache.Set(ctx, version, key, report, ttl)
	}
	log.WithFields(log.Fields{"filter": alertType, "total": report.Counts.Total}).Debug("alerts evaluated")
	return report, nil
}

// InvalidateAlerts drops cached alert reports, for changes made outside the service.
func (s *Service) InvalidateAlerts(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
