package schedule

import (
	"context"
	"time"

	"github.com/coachlyhq/coachly-backend/pkg/logger"
)

// EntrySource lists the live pending entries the index should hold.
type EntrySource interface {
	ListPendingEntries(ctx context.Context) ([]Entry, error)
}

// Reconciler periodically reloads the index from the store. In-process writes
// keep the index fresh immediately; the reconcile pass picks up writes made by
// other processes (API vs dispatcher) and repairs any drift.
type Reconciler struct {
	index    *Index
	source   EntrySource
	logg     *logger.Logger
	interval time.Duration
}

const defaultReconcileInterval = 30 * time.Second

// NewReconciler wires a reconcile loop for the given index.
func NewReconciler(index *Index, source EntrySource, logg *logger.Logger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &Reconciler{index: index, source: source, logg: logg, interval: interval}
}

// Reconcile loads the store's live pending set into the index once.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	entries, err := r.source.ListPendingEntries(ctx)
	if err != nil {
		return err
	}
	r.index.Load(entries)
	return nil
}

// Run reconciles immediately and then on the configured interval until the
// context is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.Reconcile(ctx); err != nil && r.logg != nil {
		r.logg.Error(ctx, "schedule index reconcile failed", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil && r.logg != nil {
				r.logg.Error(ctx, "schedule index reconcile failed", err)
			}
		}
	}
}
