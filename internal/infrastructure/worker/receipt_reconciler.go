package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"go.uber.org/zap"
)

// ReceiptReconcilerConfig holds configuration for the receipt reconciler
type ReceiptReconcilerConfig struct {
	Bucket    string
	Interval  time.Duration
	OrphanAge time.Duration
}

// DefaultReceiptReconcilerConfig returns default configuration
func DefaultReceiptReconcilerConfig() ReceiptReconcilerConfig {
	return ReceiptReconcilerConfig{
		Bucket:    "receipts",
		Interval:  time.Hour,
		OrphanAge: 24 * time.Hour,
	}
}

// SweepResult summarizes one reconciliation pass
type SweepResult struct {
	Scanned int
	Deleted int
	Failed  int
}

// ReceiptReconciler deletes stored receipts that no expense references.
// Objects younger than OrphanAge are left alone so an in-flight submission
// never loses its upload.
type ReceiptReconciler struct {
	periodic

	config   ReceiptReconcilerConfig
	storage  port.ObjectStorage
	expenses port.ExpenseRepository
	now      func() time.Time
}

// NewReceiptReconciler creates a new receipt reconciler
func NewReceiptReconciler(
	config ReceiptReconcilerConfig,
	storage port.ObjectStorage,
	expenses port.ExpenseRepository,
	logger *zap.Logger,
) *ReceiptReconciler {
	defaults := DefaultReceiptReconcilerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.OrphanAge <= 0 {
		config.OrphanAge = defaults.OrphanAge
	}
	if config.Bucket == "" {
		config.Bucket = defaults.Bucket
	}

	r := &ReceiptReconciler{
		config:   config,
		storage:  storage,
		expenses: expenses,
		now:      time.Now,
	}
	r.periodic = periodic{
		name:     "ReceiptReconciler",
		interval: config.Interval,
		logger:   logger,
	}
	r.periodic.task = func(ctx context.Context) error {
		_, err := r.Sweep(ctx)
		return err
	}
	return r
}

// Sweep runs one reconciliation pass over the receipt bucket
func (r *ReceiptReconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	objects, err := r.storage.List(ctx, r.config.Bucket, "")
	if err != nil {
		return result, fmt.Errorf("failed to list receipts: %w", err)
	}

	cutoff := r.now().Add(-r.config.OrphanAge)
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		if obj.LastModified.After(cutoff) {
			continue
		}

		referenced, err := r.expenses.ReceiptReferenced(ctx, obj.Path)
		if err != nil {
			r.logger.Warn("Failed to check receipt reference",
				zap.String("path", obj.Path),
				zap.Error(err))
			result.Failed++
			continue
		}
		if referenced {
			continue
		}

		if err := r.storage.Delete(ctx, r.config.Bucket, obj.Path); err != nil {
			r.logger.Warn("Failed to delete orphaned receipt",
				zap.String("path", obj.Path),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Deleted++
		r.logger.Info("Deleted orphaned receipt",
			zap.String("path", obj.Path),
			zap.Time("last_modified", obj.LastModified))
	}

	if result.Deleted > 0 || result.Failed > 0 {
		r.logger.Info("Receipt reconciliation finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("deleted", result.Deleted),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}
