package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/funnelkit/qrstock/internal/db"
	"github.com/funnelkit/qrstock/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, errOpen)
	require.NoError(t, db.Migrate(conn))
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(conn, opts...), conn
}

func seedFunnel(t *testing.T, conn *gorm.DB, name string) models.Funnel {
	t.Helper()
	business := models.Business{Name: name + " inc"}
	require.NoError(t, conn.Create(&business).Error)
	funnel := models.Funnel{BusinessID: business.ID, Name: name, Status: models.FunnelStatusActive}
	require.NoError(t, conn.Create(&funnel).Error)
	return funnel
}

func seedBatch(t *testing.T, svc *Service, quantity int) (models.QRBatch, []models.QRCode) {
	t.Helper()
	batch, err := svc.GenerateBatch(context.Background(), GenerateBatchInput{Name: "test batch", Quantity: quantity})
	require.NoError(t, err)
	var codes []models.QRCode
	require.NoError(t, svc.db.Where("batch_id = ?", batch.ID).Order("id ASC").Find(&codes).Error)
	require.Len(t, codes, quantity)
	return batch, codes
}

func seedProduct(t *testing.T, svc *Service, stock int) models.SellableProduct {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), ProductInput{
		Name:              "QR sticker pack",
		TracksInventory:   true,
		InitialStock:      stock,
		LowStockThreshold: 5,
	})
	require.NoError(t, err)
	return product
}

func reloadCode(t *testing.T, conn *gorm.DB, id uint64) models.QRCode {
	t.Helper()
	var code models.QRCode
	require.NoError(t, conn.First(&code, id).Error)
	return code
}

func reloadBatch(t *testing.T, conn *gorm.DB, id uint64) models.QRBatch {
	t.Helper()
	var batch models.QRBatch
	require.NoError(t, conn.First(&batch, id).Error)
	return batch
}

func reloadFunnel(t *testing.T, conn *gorm.DB, id uint64) models.Funnel {
	t.Helper()
	var funnel models.Funnel
	require.NoError(t, conn.First(&funnel, id).Error)
	return funnel
}

func requireLedgerConsistent(t *testing.T, conn *gorm.DB, batchID uint64) {
	t.Helper()
	batch := reloadBatch(t, conn, batchID)
	counts := CountsOf(&batch)
	require.Equal(t, batch.TotalQuantity, counts.Total(), "ledger columns must sum to total")
	for _, status := range models.CodeStatuses {
		var n int64
		require.NoError(t, conn.Model(&models.QRCode{}).Where("batch_id = ? AND status = ?", batchID, status).Count(&n).Error)
		var column int
		switch status {
		case models.CodeStatusAvailable:
			column = counts.Available
		case models.CodeStatusReserved:
			column = counts.Reserved
		case models.CodeStatusAssigned:
			column = counts.Assigned
		case models.CodeStatusDamaged:
			column = counts.Damaged
		case models.CodeStatusLost:
			column = counts.Lost
		}
		require.EqualValues(t, n, column, "ledger column for %s", status)
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }

func intPtr(v int) *int { return &v }
