package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/foodcourt/storefront/internal/infrastructure/telemetry"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func counterTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestSyncMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := telemetry.NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RemoteWrite(ctx, 5*time.Millisecond, "")
	m.RemoteWrite(ctx, 5*time.Millisecond, "network")
	m.Merge(ctx)
	m.Transition(ctx, "pending", "confirmed", "vendor")
	m.FeedEvent(ctx, "order", "update")
	m.FeedEvent(ctx, "order_item", "insert")
	m.PollReconciliation(ctx)
	m.PaymentReconciliation(ctx, "paid")

	totals := counterTotals(t, reader)
	assert.Equal(t, int64(2), totals["cart_remote_writes"])
	assert.Equal(t, int64(1), totals["cart_merges"])
	assert.Equal(t, int64(1), totals["order_transitions"])
	assert.Equal(t, int64(2), totals["feed_events_applied"])
	assert.Equal(t, int64(1), totals["poll_reconciliations"])
	assert.Equal(t, int64(1), totals["payment_reconciliations"])
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.SyncMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RemoteWrite(ctx, time.Millisecond, "")
		m.Merge(ctx)
		m.Transition(ctx, "a", "b", "c")
		m.FeedEvent(ctx, "order", "update")
		m.PollReconciliation(ctx)
		m.PaymentReconciliation(ctx, "paid")
	})
}

func TestLoggerProvider_DisabledKeepsLogger(t *testing.T) {
	ctx := context.Background()
	base := zaptest.NewLogger(t)
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{ServiceName: "test"}, base)
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("requires a server address", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true}, zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("rejects unknown profile types", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:       true,
			ServerAddress: "http://localhost:4040",
			ProfileTypes:  []string{"heap-dump"},
		}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "heap-dump")
	})
}

func TestTracerProvider_SpanProfilesNeedTracing(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	// disabled tracing leaves the global provider alone
	tp.EnableSpanProfiles()
	assert.False(t, tp.IsEnabled())
}
