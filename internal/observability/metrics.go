package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for LevVault.
type Metrics struct {
	// --- Ledger operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Ledger state ---
	LedgerSequence  prometheus.Gauge
	ActivePositions prometheus.Gauge
	PoolBalance     prometheus.Gauge

	// --- Liquidation ---
	LiquidationsTotal    prometheus.Counter
	LiquidatorFees       prometheus.Counter
	CollateralForfeited  prometheus.Counter
	BatchLiquidationSize prometheus.Histogram
	ScanDuration         prometheus.Histogram
	ScanChecked          prometheus.Histogram

	// --- Price feed ---
	PriceUpdates    prometheus.Counter
	PriceStaleDrops prometheus.Counter

	// --- Channels & backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PublishDrops       prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- HTTP API ---
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lev_ops_applied_total",
			Help: "Ledger operations applied",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lev_ops_rejected_total",
			Help: "Ledger operations rejected (validation, price, transfer)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lev_op_duration_seconds",
			Help:    "Time to apply a single ledger operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		LedgerSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lev_ledger_sequence",
			Help: "Last emitted event sequence",
		}),

		ActivePositions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lev_active_positions",
			Help: "Currently active positions",
		}),

		PoolBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lev_pool_balance",
			Help: "Liquidity pool balance (token units, 6 decimals)",
		}),

		LiquidationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lev_liquidations_total",
			Help: "Positions liquidated",
		}),

		LiquidatorFees: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lev_liquidator_fees_total",
			Help: "Total liquidator fees paid out",
		}),

		CollateralForfeited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lev_collateral_forfeited_total",
			Help: "Collateral retained by the pool from liquidations",
		}),

		BatchLiquidationSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lev_batch_liquidation_size",
			Help:    "Positions liquidated per batch call",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),

		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lev_scan_duration_seconds",
			Help:    "Liquidation scan duration",
			Buckets: opBuckets,
		}),

		ScanChecked: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lev_scan_positions_checked",
			Help:    "Positions checked per scan",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),

		PriceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lev_price_updates_total",
			Help: "Mark price updates applied",
		}),

		PriceStaleDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lev_price_stale_drops_total",
			Help: "Price updates dropped for stale or duplicate sequence",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lev_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lev_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lev_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lev_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lev_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lev_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lev_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lev_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lev_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lev_api_requests_total",
			Help: "HTTP API requests",
		}, []string{"endpoint", "status"}),

		APIDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lev_api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
