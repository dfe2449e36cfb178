// Package inventory implements the QR code registry, the batch ledger, code
// assignment, product allocations and stock alerts on top of gorm.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/funnelkit/qrstock/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AlertCache stores alert reports between mutations. Invalidate is called
// after every committed inventory change. Get reports the cache version it
// looked under, hit or miss, and Set stores under that version, so a report
// computed before an invalidation is never served after it. An empty
// version means the cache is unavailable and nothing should be stored.
type AlertCache interface {
	Get(ctx context.Context, key string) (report AlertReport, version string, hit bool)
	Set(ctx context.Context, version, key string, report AlertReport, ttl time.Duration)
	Invalidate(ctx context.Context)
}

// Service owns every inventory mutation.
type Service struct {
	db    *gorm.DB
	cache AlertCache
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithAlertCache attaches a cache for alert reports.
func WithAlertCache(cache AlertCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service over db.
func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutate runs fn in a transaction and invalidates cached alerts on success.
func (s *Service) mutate(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if errTx := s.db.WithContext(ctx).Transaction(fn); errTx != nil {
		return errTx
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return nil
}

// lookup loads a row by primary key and maps a missing row to ErrNotFound.
func lookup(tx *gorm.DB, dest any, id uint64, what string) error {
	if err := tx.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(what)
		}
		return err
	}
	return nil
}

// requireReason trims reason and rejects it when empty.
func requireReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", invalid("reason is required")
	}
	return trimmed, nil
}

// auditEntry describes one code transition for the audit log.
type auditEntry struct {
	code             *models.QRCode
	action           string
	newStatus        string
	funnelID         *uint64
	previousFunnelID *uint64
	adminID          *uint64
	reason           string
	metadata         map[string]any
}

func (s *Service) writeAudit(tx *gorm.DB, entry auditEntry) error {
	row := models.QRCodeAuditLog{
		CodeID:           entry.code.ID,
		Action:           entry.action,
		PreviousStatus:   entry.code.Status,
		NewStatus:        entry.newStatus,
		FunnelID:         entry.funnelID,
		PreviousFunnelID: entry.previousFunnelID,
		AdminID:          entry.adminID,
		Reason:           entry.reason,
		CreatedAt:        s.now(),
	}
	if len(entry.metadata) > 0 {
		raw, err := json.Marshal(entry.metadata)
		if err != nil {
			return err
		}
		row.Metadata = datatypes.JSON(raw)
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"code_id": entry.code.ID,
		"action":  entry.action,
		"from":    entry.code.Status,
		"to":      entry.newStatus,
	}).Info("qr code transition")
	return nil
}
