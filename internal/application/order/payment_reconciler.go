package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/infrastructure/scheduler"
	"github.com/foodcourt/storefront/internal/infrastructure/telemetry"
)

// ReconcilerConfig configures the payment reconciler
type ReconcilerConfig struct {
	Interval time.Duration
	// MinAge skips orders younger than this; their callback may still arrive
	MinAge time.Duration
	// Batch caps the orders checked per run
	Batch int
}

// ReconcileStats summarizes one reconciliation run
type ReconcileStats struct {
	Checked  int
	Applied  int
	Failures int
}

// PaymentReconciler polls the payment gateway for orders whose payment is
// still pending and records terminal results. It covers lost callbacks.
type PaymentReconciler struct {
	orders  order.Repository
	gateway order.PaymentGateway
	service *Service
	config  ReconcilerConfig
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
	now     func() time.Time
	runner  *scheduler.IntervalRunner
}

// NewPaymentReconciler creates a reconciler. It does nothing until Start.
func NewPaymentReconciler(
	orders order.Repository,
	gateway order.PaymentGateway,
	service *Service,
	config ReconcilerConfig,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) (*PaymentReconciler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Batch <= 0 {
		config.Batch = 50
	}
	r := &PaymentReconciler{
		orders:  orders,
		gateway: gateway,
		service: service,
		config:  config,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	runner, err := scheduler.NewIntervalRunner(scheduler.IntervalConfig{
		Name:     "payment-reconciler",
		Interval: config.Interval,
		Timeout:  config.Interval,
	}, func(ctx context.Context) error {
		_, err := r.Reconcile(ctx)
		return err
	}, logger)
	if err != nil {
		return nil, err
	}
	r.runner = runner
	return r, nil
}

// Start launches the periodic reconciliation
func (r *PaymentReconciler) Start(ctx context.Context) error {
	return r.runner.Start(ctx)
}

// Stop waits for a running reconciliation and stops the schedule
func (r *PaymentReconciler) Stop(ctx context.Context) error {
	return r.runner.Stop(ctx)
}

// Reconcile checks one batch of unsettled orders. Per-order failures are
// logged and counted; only a failed listing is returned.
func (r *PaymentReconciler) Reconcile(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	pending, err := r.orders.FindPendingPayment(ctx, r.now().Add(-r.config.MinAge), r.config.Batch)
	if err != nil {
		return stats, err
	}

	for _, o := range pending {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++
		result, err := r.gateway.GetPaymentStatus(ctx, o.ID)
		if err != nil {
			stats.Failures++
			r.logger.Warn("payment status query failed", zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		if result.Status == order.PaymentPending {
			continue
		}
		_, changed, err := r.service.ApplyPaymentResult(ctx, o.ID, result)
		if err != nil {
			stats.Failures++
			r.logger.Warn("applying payment result failed",
				zap.String("order_id", o.ID.String()),
				zap.String("payment_status", string(result.Status)),
				zap.Int64("amount", result.Amount),
				zap.Error(err),
			)
			continue
		}
		if changed {
			stats.Applied++
			r.metrics.PaymentReconciliation(ctx, string(result.Status))
		}
	}

	if stats.Checked > 0 {
		r.logger.Info("payment reconciliation finished",
			zap.Int("checked", stats.Checked),
			zap.Int("applied", stats.Applied),
			zap.Int("failures", stats.Failures),
		)
	}
	return stats, nil
}
