package inventory

import (
	"context"
	"time"

	"github.com/funnelkit/qrstock/internal/settings"
	log "github.com/sirupsen/logrus"
)

const (
	reconcileLockKey      = "qrstock:ledger-reconcile"
	disabledRecheckPeriod = 5 * time.Minute
)

// Locker grants a lease shared by every replica. obtained is false when
// another holder owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), obtained bool, err error)
}

// Reconciler periodically recomputes batch ledgers from their codes.
type Reconciler struct {
	svc    *Service
	locker Locker
}

// NewReconciler wires a reconciler. locker may be nil on single-replica deployments.
func NewReconciler(svc *Service, locker Locker) *Reconciler {
	if svc == nil {
		return nil
	}
	return &Reconciler{svc: svc, locker: locker}
}

// Start launches the reconcile loop in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go r.run(ctx)
	log.Infof("ledger reconciler started (interval=%s)", r.interval())
}

func (r *Reconciler) interval() time.Duration {
	seconds := settings.IntValue(settings.LedgerReconcileIntervalSecondsKey, settings.DefaultLedgerReconcileIntervalSeconds)
	return time.Duration(seconds) * time.Second
}

func (r *Reconciler) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		wait := r.interval()
		if wait > 0 {
			r.RunOnce(ctx)
		} else {
			wait = disabledRecheckPeriod
		}
		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// RunOnce reconciles every batch, skipping the pass when another replica holds the lock.
func (r *Reconciler) RunOnce(ctx context.Context) {
	if r == nil || r.svc == nil {
		return
	}
	if r.locker != nil {
		ttl := r.interval()
		if ttl <= 0 {
			ttl = disabledRecheckPeriod
		}
		release, obtained, err := r.locker.TryLock(ctx, reconcileLockKey, ttl)
		if err != nil {
			log.WithError(err).Warn("ledger reconciler: lock failed")
			return
		}
		if !obtained {
			log.Debug("ledger reconciler: another replica holds the lock")
			return
		}
		defer release()
	}

	summary, err := r.svc.ReconcileAll(ctx)
	if err != nil {
		log.WithError(err).Warn("ledger reconciler: pass failed")
		return
	}
	if len(summary.Changed) > 0 {
		log.Infof("ledger reconciler: corrected %d of %d batches", len(summary.Changed), summary.Checked)
	}
}
