package worker

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"
)

const reconcileLockKey = "creditbook:reconcile:lease"

// MembershipReconciler is the slice of the service the sweep needs.
type MembershipReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Reconciler periodically sweeps for one-sided memberships (a shop
// listing a customer the customer does not list back, or vice versa)
// and repairs them. A Redis lease keeps the sweep on a single instance
// at a time.
type Reconciler struct {
	svc      MembershipReconciler
	locker   *redislock.Client
	log      *zap.Logger
	interval time.Duration
}

func NewReconciler(svc MembershipReconciler, locker *redislock.Client, interval time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{
		svc:      svc,
		locker:   locker,
		log:      log.Named("worker.reconcile"),
		interval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled. Implements the
// infrastructure.Server interface.
func (r *Reconciler) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reconciler running", zap.Duration("interval", r.interval))

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("reconcile sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) Stop(ctx context.Context) error {
	return nil
}

// RunOnce performs a single sweep under the distributed lease. When
// another instance holds the lease the sweep is skipped, not queued.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	lock, err := r.locker.Obtain(ctx, reconcileLockKey, r.interval, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil
		}
		return err
	}
	defer func() { _ = lock.Release(ctx) }()

	repaired, err := r.svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	if repaired > 0 {
		r.log.Info("sweep repaired memberships", zap.Int("repaired", repaired))
	}
	return nil
}
