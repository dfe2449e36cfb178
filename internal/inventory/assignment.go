package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/models"
	"gorm.io/gorm"
)

// AssignInput binds a code to a funnel.
type AssignInput struct {
	CodeID    uint64
	FunnelID  uint64
	AdminID   *uint64
	Reason    string
	Override  bool    // Accept a code reserved for another funnel.
	ProductID *uint64 // Consume one unit of this product's allocation in the code's batch.
}

// AssignResult is the outcome of Assign.
type AssignResult struct {
	Code            models.QRCode `json:"code"`
	ReplacedCodeIDs []uint64      `json:"replaced_code_ids"`
	AllocationID    *uint64       `json:"allocation_id,omitempty"`
}

// TransitionInput identifies a code and the acting admin for a single transition.
type TransitionInput struct {
	CodeID  uint64
	AdminID *uint64
	Reason  string
}

// ReserveInput holds a code for a funnel.
type ReserveInput struct {
	CodeID   uint64
	FunnelID uint64
	AdminID  *uint64
	Reason   string
}

// Assign binds a code to a funnel. Any other code the funnel holds is released
// in the same transaction, so a funnel never references two codes.
func (s *Service) Assign(ctx context.Context, in AssignInput) (AssignResult, error) {
	reason := strings.TrimSpace(in.Reason)
	result := AssignResult{ReplacedCodeIDs: []uint64{}}
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		code, err := loadCode(tx, in.CodeID)
		if err != nil {
			return err
		}
		funnel, err := loadFunnel(tx, in.FunnelID)
		if err != nil {
			return err
		}
		if funnel.Status == models.FunnelStatusArchived {
			return conflict("funnel is archived")
		}

		heldByFunnel := funnel.ReservedCodeID != nil && *funnel.ReservedCodeID == code.ID
		switch code.Status {
		case models.CodeStatusAvailable:
		case models.CodeStatusReserved:
			if !in.Override {
				return conflict("code is reserved; assigning it requires override")
			}
			if !heldByFunnel {
				if errClear := clearReservationOf(tx, code.ID); errClear != nil {
					return errClear
				}
			}
		default:
			return conflict("code is %s", code.Status)
		}

		replaceMeta := map[string]any{"replaced_by": code.ID}
		var current []models.QRCode
		if errFind := db.ForUpdate(tx).
			Where("funnel_id = ? AND status = ? AND id <> ?", funnel.ID, models.CodeStatusAssigned, code.ID).
			Find(&current).Error; errFind != nil {
			return errFind
		}
		for i := range current {
			if errRelease := s.releaseAssigned(tx, &current[i], models.AuditActionReplaced, reason, in.AdminID, replaceMeta); errRelease != nil {
				return errRelease
			}
			result.ReplacedCodeIDs = append(result.ReplacedCodeIDs, current[i].ID)
		}
		if funnel.ReservedCodeID != nil && !heldByFunnel {
			held, errHeld := loadCode(tx, *funnel.ReservedCodeID)
			if errHeld != nil && !errors.Is(errHeld, ErrNotFound) {
				return errHeld
			}
			if errHeld == nil && held.Status == models.CodeStatusReserved {
				if errMove := s.transition(tx, &held, models.CodeStatusAvailable, nil); errMove != nil {
					return errMove
				}
				if errAudit := s.writeAudit(tx, auditEntry{
					code:             &held,
					action:           models.AuditActionReplaced,
					newStatus:        models.CodeStatusAvailable,
					previousFunnelID: &funnel.ID,
					adminID:          in.AdminID,
					reason:           reason,
					metadata:         replaceMeta,
				}); errAudit != nil {
					return errAudit
				}
				result.ReplacedCodeIDs = append(result.ReplacedCodeIDs, held.ID)
			}
		}
		if funnel.ReservedCodeID != nil {
			if errFunnel := tx.Model(&models.Funnel{}).
				Where("id = ?", funnel.ID).
				Updates(map[string]any{"reserved_code_id": nil, "updated_at": s.now()}).Error; errFunnel != nil {
				return errFunnel
			}
		}

		if in.ProductID != nil {
			var alloc models.ProductBatchInventory
			errAlloc := db.ForUpdate(tx).
				Where("product_id = ? AND batch_id = ? AND is_active = ?", *in.ProductID, code.BatchID, true).
				First(&alloc).Error
			if errors.Is(errAlloc, gorm.ErrRecordNotFound) {
				return notFound("active allocation for product in this batch")
			}
			if errAlloc != nil {
				return errAlloc
			}
			if errConsume := s.consume(tx, &alloc, 1, "code assignment", in.AdminID); errConsume != nil {
				return errConsume
			}
			result.AllocationID = &alloc.ID
		}

		var allocationID any
		if result.AllocationID != nil {
			allocationID = *result.AllocationID
		}
		if errMove := s.transition(tx, &code, models.CodeStatusAssigned, map[string]any{
			"funnel_id":     funnel.ID,
			"business_id":   funnel.BusinessID,
			"allocation_id": allocationID,
			"assigned_at":   s.now(),
		}); errMove != nil {
			return errMove
		}
		meta := map[string]any{}
		if in.Override {
			meta["override"] = true
		}
		if result.AllocationID != nil {
			meta["allocation_id"] = *result.AllocationID
		}
		if len(result.ReplacedCodeIDs) > 0 {
			meta["replaced_code_ids"] = result.ReplacedCodeIDs
		}
		if errAudit := s.writeAudit(tx, auditEntry{
			code:      &code,
			action:    models.AuditActionAssign,
			newStatus: models.CodeStatusAssigned,
			funnelID:  &funnel.ID,
			adminID:   in.AdminID,
			reason:    reason,
			metadata:  meta,
		}); errAudit != nil {
			return errAudit
		}
		return tx.First(&result.Code, code.ID).Error
	})
	if errTx != nil {
		return AssignResult{}, errTx
	}
	return result, nil
}

// Unassign returns an assigned code to the available pool.
func (s *Service) Unassign(ctx context.Context, in TransitionInput) (models.QRCode, error) {
	reason, errReason := requireReason(in.Reason)
	if errReason != nil {
		return models.QRCode{}, errReason
	}
	return s.withCode(ctx, in.CodeID, func(tx *gorm.DB, code *models.QRCode) error {
		if code.Status != models.CodeStatusAssigned {
			return conflict("code is %s", code.Status)
		}
		return s.releaseAssigned(tx, code, models.AuditActionUnassign, reason, in.AdminID, nil)
	})
}

// Reserve holds an available code for a funnel that holds no other code.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (models.QRCode, error) {
	reason := strings.TrimSpace(in.Reason)
	return s.withCode(ctx, in.CodeID, func(tx *gorm.DB, code *models.QRCode) error {
		if code.Status != models.CodeStatusAvailable {
			return conflict("code is %s", code.Status)
		}
		funnel, err := loadFunnel(tx, in.FunnelID)
		if err != nil {
			return err
		}
		if funnel.Status == models.FunnelStatusArchived {
			return conflict("funnel is archived")
		}
		var assigned int64
		if errCount := tx.Model(&models.QRCode{}).
			Where("funnel_id = ? AND status = ?", funnel.ID, models.CodeStatusAssigned).
			Count(&assigned).Error; errCount != nil {
			return errCount
		}
		if funnel.ReservedCodeID != nil || assigned > 0 {
			return conflict("funnel already holds a code")
		}
		res := tx.Model(&models.Funnel{}).
			Where("id = ? AND reserved_code_id IS NULL", funnel.ID).
			Updates(map[string]any{"reserved_code_id": code.ID, "updated_at": s.now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("funnel already holds a code")
		}
		if errMove := s.transition(tx, code, models.CodeStatusReserved, nil); errMove != nil {
			return errMove
		}
		return s.writeAudit(tx, auditEntry{
			code:      code,
			action:    models.AuditActionReserve,
			newStatus: models.CodeStatusReserved,
			funnelID:  &funnel.ID,
			adminID:   in.AdminID,
			reason:    reason,
		})
	})
}

// ReleaseReservation returns a reserved code to the available pool.
func (s *Service) ReleaseReservation(ctx context.Context, in TransitionInput) (models.QRCode, error) {
	reason := strings.TrimSpace(in.Reason)
	return s.withCode(ctx, in.CodeID, func(tx *gorm.DB, code *models.QRCode) error {
		if code.Status != models.CodeStatusReserved {
			return conflict("code is %s", code.Status)
		}
		previous, err := reservingFunnel(tx, code.ID)
		if err != nil {
			return err
		}
		if errClear := clearReservationOf(tx, code.ID); errClear != nil {
			return errClear
		}
		if errMove := s.transition(tx, code, models.CodeStatusAvailable, nil); errMove != nil {
			return errMove
		}
		return s.writeAudit(tx, auditEntry{
			code:             code,
			action:           models.AuditActionReleaseReservation,
			newStatus:        models.CodeStatusAvailable,
			previousFunnelID: previous,
			adminID:          in.AdminID,
			reason:           reason,
		})
	})
}

// MarkDamaged takes a code out of circulation as damaged.
func (s *Service) MarkDamaged(ctx context.Context, in TransitionInput) (models.QRCode, error) {
	return s.markUnusable(ctx, in, models.CodeStatusDamaged, models.AuditActionMarkDamaged)
}

// MarkLost takes a code out of circulation as lost.
func (s *Service) MarkLost(ctx context.Context, in TransitionInput) (models.QRCode, error) {
	return s.markUnusable(ctx, in, models.CodeStatusLost, models.AuditActionMarkLost)
}

func (s *Service) markUnusable(ctx context.Context, in TransitionInput, target, action string) (models.QRCode, error) {
	reason, errReason := requireReason(in.Reason)
	if errReason != nil {
		return models.QRCode{}, errReason
	}
	return s.withCode(ctx, in.CodeID, func(tx *gorm.DB, code *models.QRCode) error {
		var previous *uint64
		updates := map[string]any{}
		switch code.Status {
		case models.CodeStatusAvailable:
		case models.CodeStatusReserved:
			funnelID, err := reservingFunnel(tx, code.ID)
			if err != nil {
				return err
			}
			previous = funnelID
			if errClear := clearReservationOf(tx, code.ID); errClear != nil {
				return errClear
			}
		case models.CodeStatusAssigned:
			previous = code.FunnelID
			for k, v := range clearedAssignment() {
				updates[k] = v
			}
			if code.AllocationID != nil {
				if errRelease := s.release(tx, *code.AllocationID, reason, in.AdminID); errRelease != nil {
					return errRelease
				}
			}
		default:
			return conflict("code is %s", code.Status)
		}
		if errMove := s.transition(tx, code, target, updates); errMove != nil {
			return errMove
		}
		return s.writeAudit(tx, auditEntry{
			code:             code,
			action:           action,
			newStatus:        target,
			previousFunnelID: previous,
			adminID:          in.AdminID,
			reason:           reason,
		})
	})
}

// Repair returns a damaged or lost code to the available pool.
func (s *Service) Repair(ctx context.Context, in TransitionInput) (models.QRCode, error) {
	reason, errReason := requireReason(in.Reason)
	if errReason != nil {
		return models.QRCode{}, errReason
	}
	return s.withCode(ctx, in.CodeID, func(tx *gorm.DB, code *models.QRCode) error {
		if code.Status != models.CodeStatusDamaged && code.Status != models.CodeStatusLost {
			return conflict("code is %s", code.Status)
		}
		if errMove := s.transition(tx, code, models.CodeStatusAvailable, nil); errMove != nil {
			return errMove
		}
		return s.writeAudit(tx, auditEntry{
			code:      code,
			action:    models.AuditActionRepair,
			newStatus: models.CodeStatusAvailable,
			adminID:   in.AdminID,
			reason:    reason,
		})
	})
}

// withCode loads a code under lock, runs fn and returns the reloaded row.
func (s *Service) withCode(ctx context.Context, codeID uint64, fn func(tx *gorm.DB, code *models.QRCode) error) (models.QRCode, error) {
	var out models.QRCode
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		code, err := loadCode(tx, codeID)
		if err != nil {
			return err
		}
		if errFn := fn(tx, &code); errFn != nil {
			return errFn
		}
		return tx.First(&out, codeID).Error
	})
	if errTx != nil {
		return models.QRCode{}, errTx
	}
	return out, nil
}

// transition moves code to status with a conditional update on its observed
// status and shifts the batch ledger. Zero affected rows is a conflict.
func (s *Service) transition(tx *gorm.DB, code *models.QRCode, status string, updates map[string]any) error {
	values := map[string]any{"status": status, "updated_at": s.now()}
	for k, v := range updates {
		values[k] = v
	}
	res := tx.Model(&models.QRCode{}).
		Where("id = ? AND status = ?", code.ID, code.Status).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflict("code status changed concurrently")
	}
	return s.moveCount(tx, code.BatchID, code.Status, status)
}

// releaseAssigned frees an assigned code and its consumed allocation unit.
func (s *Service) releaseAssigned(tx *gorm.DB, code *models.QRCode, action, reason string, adminID *uint64, meta map[string]any) error {
	if code.AllocationID != nil {
		if errRelease := s.release(tx, *code.AllocationID, reason, adminID); errRelease != nil {
			return errRelease
		}
	}
	if errMove := s.transition(tx, code, models.CodeStatusAvailable, clearedAssignment()); errMove != nil {
		return errMove
	}
	return s.writeAudit(tx, auditEntry{
		code:             code,
		action:           action,
		newStatus:        models.CodeStatusAvailable,
		previousFunnelID: code.FunnelID,
		adminID:          adminID,
		reason:           reason,
		metadata:         meta,
	})
}

func clearedAssignment() map[string]any {
	return map[string]any{
		"funnel_id":     nil,
		"business_id":   nil,
		"allocation_id": nil,
		"assigned_at":   nil,
	}
}

func loadCode(tx *gorm.DB, id uint64) (models.QRCode, error) {
	var code models.QRCode
	if err := lookup(db.ForUpdate(tx), &code, id, "code"); err != nil {
		return models.QRCode{}, err
	}
	return code, nil
}

func loadFunnel(tx *gorm.DB, id uint64) (models.Funnel, error) {
	var funnel models.Funnel
	if err := lookup(db.ForUpdate(tx), &funnel, id, "funnel"); err != nil {
		return models.Funnel{}, err
	}
	return funnel, nil
}

// reservingFunnel returns the funnel holding codeID in reserve, if any.
func reservingFunnel(tx *gorm.DB, codeID uint64) (*uint64, error) {
	var ids []uint64
	if err := tx.Model(&models.Funnel{}).Where("reserved_code_id = ?", codeID).Limit(1).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

func clearReservationOf(tx *gorm.DB, codeID uint64) error {
	return tx.Model(&models.Funnel{}).
		Where("reserved_code_id = ?", codeID).
		Update("reserved_code_id", nil).Error
}
