package inventory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxBatchQuantity caps the number of codes generated per batch.
const MaxBatchQuantity = 10000

const codeInsertChunk = 500

var codePrefixPattern = regexp.MustCompile(`^[A-Z0-9-]{0,16}$`)

// GenerateBatchInput describes a new batch.
type GenerateBatchInput struct {
	Name     string
	Quantity int
	Prefix   string
	Notes    string
}

// GenerateBatch creates a batch and its codes in one transaction.
func (s *Service) GenerateBatch(ctx context.Context, in GenerateBatchInput) (models.QRBatch, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.QRBatch{}, invalid("missing name")
	}
	if in.Quantity < 1 || in.Quantity > MaxBatchQuantity {
		return models.QRBatch{}, invalid("quantity must be between 1 and %d", MaxBatchQuantity)
	}
	prefix := strings.ToUpper(strings.TrimSpace(in.Prefix))
	if !codePrefixPattern.MatchString(prefix) {
		return models.QRBatch{}, invalid("prefix must be up to 16 letters, digits or dashes")
	}
	suffix, errCode := generateCode(6)
	if errCode != nil {
		return models.QRBatch{}, errCode
	}

	now := s.now()
	batch := models.QRBatch{
		BatchNumber:    fmt.Sprintf("QR%s-%s", now.Format("060102"), suffix),
		Name:           name,
		Status:         models.BatchStatusGenerated,
		Notes:          strings.TrimSpace(in.Notes),
		TotalQuantity:  in.Quantity,
		AvailableCount: in.Quantity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if errCreate := tx.Create(&batch).Error; errCreate != nil {
			return errCreate
		}
		codes := make([]models.QRCode, 0, in.Quantity)
		for i := 0; i < in.Quantity; i++ {
			codes = append(codes, models.QRCode{
				Code:      fmt.Sprintf("%s%s-%05d", prefix, batch.BatchNumber, i+1),
				BatchID:   batch.ID,
				Status:    models.CodeStatusAvailable,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		return tx.CreateInBatches(&codes, codeInsertChunk).Error
	})
	if errTx != nil {
		return models.QRBatch{}, errTx
	}
	log.WithFields(log.Fields{
		"batch":    batch.BatchNumber,
		"quantity": batch.TotalQuantity,
	}).Info("qr batch generated")
	return batch, nil
}

// AdvanceBatchStatus moves a batch forward in its lifecycle. Backward and
// same-status moves are rejected.
func (s *Service) AdvanceBatchStatus(ctx context.Context, batchID uint64, status string) (models.QRBatch, error) {
	status = strings.TrimSpace(status)
	target := models.BatchStatusRank(status)
	if target < 0 {
		return models.QRBatch{}, invalid("unknown batch status %q", status)
	}
	var batch models.QRBatch
	errTx := s.mutate(ctx, func(tx *gorm.DB) error {
		if err := lookup(db.ForUpdate(tx), &batch, batchID, "batch"); err != nil {
			return err
		}
		if target <= models.BatchStatusRank(batch.Status) {
			return invalid("cannot move batch from %s to %s", batch.Status, status)
		}
		res := tx.Model(&models.QRBatch{}).
			Where("id = ? AND status = ?", batch.ID, batch.Status).
			Updates(map[string]any{"status": status, "updated_at": s.now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("batch status changed concurrently")
		}
		batch.Status = status
		return nil
	})
	if errTx != nil {
		return models.QRBatch{}, errTx
	}
	return batch, nil
}

// GetCode loads a code by id.
func (s *Service) GetCode(ctx context.Context, codeID uint64) (models.QRCode, error) {
	var code models.QRCode
	if err := lookup(s.db.WithContext(ctx), &code, codeID, "code"); err != nil {
		return models.QRCode{}, err
	}
	return code, nil
}

// FindCode loads a code by its printed string.
func (s *Service) FindCode(ctx context.Context, value string) (models.QRCode, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return models.QRCode{}, invalid("missing code")
	}
	var code models.QRCode
	if err := s.db.WithContext(ctx).Where("code = ?", value).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QRCode{}, notFound("code")
		}
		return models.QRCode{}, err
	}
	return code, nil
}

// generateCode returns a random uppercase token of the requested length.
func generateCode(length int) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
