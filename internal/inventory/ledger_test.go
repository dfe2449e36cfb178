package inventory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/funnelkit/qrstock/internal/models"
	"github.com/stretchr/testify/require"
)

func TestGenerateBatchCreatesCodes(t *testing.T) {
	svc, conn := newTestService(t)
	batch, err := svc.GenerateBatch(context.Background(), GenerateBatchInput{Name: " March print ", Quantity: 25, Prefix: "fk-", Notes: "first run"})
	require.NoError(t, err)
	require.Equal(t, "March print", batch.Name)
	require.Equal(t, models.BatchStatusGenerated, batch.Status)
	require.Equal(t, 25, batch.TotalQuantity)
	require.Equal(t, 25, batch.AvailableCount)
	require.True(t, strings.HasPrefix(batch.BatchNumber, "QR260301-"))

	var codes []models.QRCode
	require.NoError(t, conn.Where("batch_id = ?", batch.ID).Order("id ASC").Find(&codes).Error)
	require.Len(t, codes, 25)
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		require.Equal(t, models.CodeStatusAvailable, code.Status)
		require.True(t, strings.HasPrefix(code.Code, "FK-"+batch.BatchNumber))
		seen[code.Code] = struct{}{}
	}
	require.Len(t, seen, 25)
	require.Equal(t, "FK-"+batch.BatchNumber+"-00001", codes[0].Code)
	requireLedgerConsistent(t, conn, batch.ID)
}

func TestGenerateBatchValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	cases := []GenerateBatchInput{
		{Name: "", Quantity: 10},
		{Name: "zero", Quantity: 0},
		{Name: "too many", Quantity: MaxBatchQuantity + 1},
		{Name: "bad prefix", Quantity: 1, Prefix: "no spaces"},
	}
	for _, in := range cases {
		_, err := svc.GenerateBatch(ctx, in)
		require.ErrorIs(t, err, ErrValidation, "input %+v", in)
	}
	var batches int64
	require.NoError(t, conn.Model(&models.QRBatch{}).Count(&batches).Error)
	require.Zero(t, batches)
}

func TestAdvanceBatchStatusIsForwardOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	batch, _ := seedBatch(t, svc, 1)

	updated, err := svc.AdvanceBatchStatus(ctx, batch.ID, models.BatchStatusPrinting)
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusPrinting, updated.Status)

	updated, err = svc.AdvanceBatchStatus(ctx, batch.ID, models.BatchStatusActive)
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusActive, updated.Status)

	for _, status := range []string{models.BatchStatusActive, models.BatchStatusShipped, "unknown"} {
		_, errAdvance := svc.AdvanceBatchStatus(ctx, batch.ID, status)
		require.ErrorIs(t, errAdvance, ErrValidation, status)
	}
	_, err = svc.AdvanceBatchStatus(ctx, 9999, models.BatchStatusDepleted)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileCorrectsDrift(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	funnel := seedFunnel(t, conn, "promo")
	batch, codes := seedBatch(t, svc, 4)
	_, err := svc.Assign(ctx, AssignInput{CodeID: codes[0].ID, FunnelID: funnel.ID})
	require.NoError(t, err)

	require.NoError(t, conn.Model(&models.QRBatch{}).Where("id = ?", batch.ID).
		Updates(map[string]any{"available_count": 4, "assigned_count": 0}).Error)

	result, err := svc.Reconcile(ctx, batch.ID)
	require.NoError(t, err)
	require.True(t, result.Drifted)
	require.False(t, result.Depleted)
	require.Equal(t, 4, result.Before.Available)
	require.Equal(t, LedgerCounts{Available: 3, Assigned: 1}, result.After)
	requireLedgerConsistent(t, conn, batch.ID)

	again, err := svc.Reconcile(ctx, batch.ID)
	require.NoError(t, err)
	require.False(t, again.Drifted)
}

func TestReconcileDepletesActiveBatch(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	funnel := seedFunnel(t, conn, "promo")
	batch, codes := seedBatch(t, svc, 1)
	_, err := svc.AdvanceBatchStatus(ctx, batch.ID, models.BatchStatusActive)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, AssignInput{CodeID: codes[0].ID, FunnelID: funnel.ID})
	require.NoError(t, err)

	summary, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Checked)
	require.Len(t, summary.Changed, 1)
	require.True(t, summary.Changed[0].Depleted)
	require.Equal(t, models.BatchStatusDepleted, reloadBatch(t, conn, batch.ID).Status)

	summary, err = svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Checked)
	require.Empty(t, summary.Changed)
}

func TestReconcileAllRepairsDepletedBatch(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	funnel := seedFunnel(t, conn, "promo")
	batch, codes := seedBatch(t, svc, 1)
	_, err := svc.AdvanceBatchStatus(ctx, batch.ID, models.BatchStatusDepleted)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, AssignInput{CodeID: codes[0].ID, FunnelID: funnel.ID})
	require.NoError(t, err)
	require.NoError(t, conn.Model(&models.QRBatch{}).Where("id = ?", batch.ID).
		Updates(map[string]any{"available_count": 1, "assigned_count": 0}).Error)

	summary, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Checked)
	require.Len(t, summary.Changed, 1)
	require.True(t, summary.Changed[0].Drifted)
	require.False(t, summary.Changed[0].Depleted)

	repaired := reloadBatch(t, conn, batch.ID)
	require.Equal(t, models.BatchStatusDepleted, repaired.Status)
	require.Equal(t, 0, repaired.AvailableCount)
	require.Equal(t, 1, repaired.AssignedCount)
	requireLedgerConsistent(t, conn, batch.ID)
}

type fakeLocker struct {
	obtained bool
	calls    int
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.calls++
	if !l.obtained {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

func TestReconcilerRunOnceHonoursLock(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	batch, _ := seedBatch(t, svc, 2)
	require.NoError(t, conn.Model(&models.QRBatch{}).Where("id = ?", batch.ID).Update("available_count", 0).Error)

	busy := &fakeLocker{}
	NewReconciler(svc, busy).RunOnce(ctx)
	require.Equal(t, 1, busy.calls)
	require.Equal(t, 0, reloadBatch(t, conn, batch.ID).AvailableCount)

	free := &fakeLocker{obtained: true}
	NewReconciler(svc, free).RunOnce(ctx)
	require.Equal(t, 1, free.released)
	require.Equal(t, 2, reloadBatch(t, conn, batch.ID).AvailableCount)
}
