package inventory

import (
	"context"
	"fmt"

	"github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerCounts is the per-status breakdown of a batch.
type LedgerCounts struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Assigned  int `json:"assigned"`
	Damaged   int `json:"damaged"`
	Lost      int `json:"lost"`
}

// Total sums every status.
func (c LedgerCounts) Total() int {
	return c.Available + c.Reserved + c.Assigned + c.Damaged + c.Lost
}

// CountsOf reads the ledger columns of a batch.
func CountsOf(batch *models.QRBatch) LedgerCounts {
	return LedgerCounts{
		Available: batch.AvailableCount,
		Reserved:  batch.ReservedCount,
		Assigned:  batch.AssignedCount,
		Damaged:   batch.DamagedCount,
		Lost:      batch.LostCount,
	}
}

func (c *LedgerCounts) add(status string, n int) {
	switch status {
	case models.CodeStatusAvailable:
		c.Available += n
	case models.CodeStatusReserved:
		c.Reserved += n
	case models.CodeStatusAssigned:
		c.Assigned += n
	case models.CodeStatusDamaged:
		c.Damaged += n
	case models.CodeStatusLost:
		c.Lost += n
	}
}

// moveCount shifts one code between ledger columns inside tx.
func (s *Service) moveCount(tx *gorm.DB, batchID uint64, from, to string) error {
	fromCol, toCol := models.CountColumn(from), models.CountColumn(to)
	if fromCol == "" || toCol == "" {
		return fmt.Errorf("inventory: unknown code status %q -> %q", from, to)
	}
	if fromCol == toCol {
		return nil
	}
	res := tx.Model(&models.QRBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			fromCol:      gorm.Expr(fromCol + " - 1"),
			toCol:        gorm.Expr(toCol + " + 1"),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("batch")
	}
	return nil
}

// ReconcileResult reports what a reconcile pass found for one batch.
type ReconcileResult struct {
	BatchID     uint64       `json:"batch_id"`
	BatchNumber string       `json:"batch_number"`
	Before      LedgerCounts `json:"before"`
	After       LedgerCounts `json:"after"`
	Drifted     bool         `json:"drifted"`
	Depleted    bool         `json:"depleted"`
}

// Reconcile recomputes a batch's ledger columns from its codes. An active
// batch left with no available codes is marked depleted.
func (s *Service) Reconcile(ctx context.Context, batchID uint64) (ReconcileResult, error) {
	var result ReconcileResult
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		var batch models.QRBatch
		if err := lookup(db.ForUpdate(tx), &batch, batchID, "batch"); err != nil {
			return err
		}

		type statusCount struct {
			Status string
			N      int
		}
		var rows []statusCount
		if err := tx.Model(&models.QRCode{}).
			Select("status, COUNT(*) AS n").
			Where("batch_id = ?", batchID).
			Group("status").
			Scan(&rows).Error; err != nil {
			return err
		}
		var actual LedgerCounts
		for _, row := range rows {
			actual.add(row.Status, row.N)
		}

		result = ReconcileResult{
			BatchID:     batch.ID,
			BatchNumber: batch.BatchNumber,
			Before:      CountsOf(&batch),
			After:       actual,
		}
		result.Drifted = result.Before != actual || batch.TotalQuantity != actual.Total()
		result.Depleted = batch.Status == models.BatchStatusActive && actual.Available == 0 && actual.Total() > 0

		if !result.Drifted && !result.Depleted {
			return nil
		}
		updates := map[string]any{
			"available_count": actual.Available,
			"reserved_count":  actual.Reserved,
			"assigned_count":  actual.Assigned,
			"damaged_count":   actual.Damaged,
			"lost_count":      actual.Lost,
			"total_quantity":  actual.Total(),
			"updated_at":      s.now(),
		}
		if result.Depleted {
			updates["status"] = models.BatchStatusDepleted
		}
		return tx.Model(&models.QRBatch{}).Where("id = ?", batch.ID).Updates(updates).Error
	})
	if errTx != nil {
		return ReconcileResult{}, errTx
	}
	if result.Drifted {
		log.WithFields(log.Fields{
			"batch":  result.BatchNumber,
			"before": result.Before,
			"after":  result.After,
		}).Warn("batch ledger drift corrected")
	}
	return result, nil
}

// ReconcileSummary aggregates a ReconcileAll pass.
type ReconcileSummary struct {
	Checked int               `json:"checked"`
	Changed []ReconcileResult `json:"changed"`
}

// ReconcileAll reconciles every batch. Depleted batches still get their
// counts repaired; only the depletion marking is limited to active ones.
func (s *Service) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	var ids []uint64
	if err := s.db.WithContext(ctx).
		Model(&models.QRBatch{}).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return ReconcileSummary{}, err
	}
	summary := ReconcileSummary{Changed: []ReconcileResult{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := s.Reconcile(ctx, id)
		if err != nil {
			return summary, fmt.Errorf("reconcile batch %d: %w", id, err)
		}
		summary.Checked++
		if result.Drifted || result.Depleted {
			summary.Changed = append(summary.Changed, result)
		}
	}
	return summary, nil
}
