// Package metrics exposes batch results as Prometheus metrics, written to a
// node_exporter textfile at the end of a run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"av1conv/internal/model"
)

// Collector owns a private registry so repeated runs in one process (tests)
// never collide with the global one.
type Collector struct {
	reg     *prometheus.Registry
	encoder string

	ItemsTotal     *prometheus.CounterVec
	BytesSaved     prometheus.Counter
	SourcesDeleted prometheus.Counter
	ItemDuration   *prometheus.HistogramVec
	VMAFScore      prometheus.Histogram
	LastRun        prometheus.Gauge
	RunItems       prometheus.Gauge
}

// New registers all av1conv metrics on a fresh registry. Item counters are
// labelled with the session encoder.
func New(kind model.EncoderKind) *Collector {
	c := &Collector{
		reg:     prometheus.NewRegistry(),
		encoder: string(kind),
		ItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "av1conv_items_total",
				Help: "Processed items by outcome",
			},
			[]string{"outcome", "encoder"},
		),
		BytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "av1conv_bytes_saved_total",
			Help: "Bytes saved by completed encodes",
		}),
		SourcesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "av1conv_sources_deleted_total",
			Help: "Source files deleted after passing the quality check",
		}),
		ItemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "av1conv_item_duration_seconds",
				Help:    "Wall time spent per item",
				Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400, 28800},
			},
			[]string{"outcome"},
		),
		VMAFScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "av1conv_vmaf_score",
			Help:    "Pooled VMAF mean of verified encodes",
			Buckets: []float64{60, 70, 80, 85, 90, 92, 94, 96, 98, 100},
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "av1conv_last_run_timestamp_seconds",
			Help: "Unix time the last batch finished",
		}),
		RunItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "av1conv_last_run_items",
			Help: "Items in the last batch",
		}),
	}
	c.reg.MustRegister(c.ItemsTotal, c.BytesSaved, c.SourcesDeleted, c.ItemDuration, c.VMAFScore, c.LastRun, c.RunItems)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// ObserveItem records one finished item.
func (c *Collector) ObserveItem(it model.ItemResult) {
	kind := string(it.Outcome.Kind)
	c.ItemsTotal.WithLabelValues(kind, c.encoder).Inc()
	c.ItemDuration.WithLabelValues(kind).Observe(it.Elapsed.Seconds())
	if saved := it.Outcome.BytesSaved(); saved > 0 {
		c.BytesSaved.Add(float64(saved))
	}
	if it.Score != nil {
		c.VMAFScore.Observe(it.Score.Mean)
	}
	if it.Decision == model.Delete && it.DeleteErr == "" {
		c.SourcesDeleted.Inc()
	}
}

// ObserveRun records the batch-level figures.
func (c *Collector) ObserveRun(s model.RunSummary) {
	c.RunItems.Set(float64(len(s.Items)))
	c.LastRun.Set(float64(s.FinishedAt.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.reg)
}
