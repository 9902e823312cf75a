package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records run counters in a private registry that is written to a
// Prometheus textfile at the end of a run.
type Metrics struct {
	registry  *prometheus.Registry
	omissions *prometheus.CounterVec
	calls     *prometheus.CounterVec
	records   *prometheus.GaugeVec
	stage     *prometheus.GaugeVec
	windows   prometheus.Gauge
}

// NewMetrics creates a metrics recorder with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		omissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hcvsub_omissions_total",
				Help: "Observations left out of a result table",
			},
			[]string{"kind"},
		),
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hcvsub_calls_total",
				Help: "Per-window classification calls",
			},
			[]string{"status"},
		),
		records: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hcvsub_table_records",
				Help: "Rows in each result table",
			},
			[]string{"table"},
		),
		stage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hcvsub_stage_duration_seconds",
				Help: "Wall time of each pipeline stage",
			},
			[]string{"stage"},
		),
		windows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hcvsub_windows",
			Help: "Number of scanned windows",
		}),
	}
}

// RecordOmissions adds the omission counts of a run
func (m *Metrics) RecordOmissions(o Omissions) {
	for kind, n := range o.Map() {
		m.omissions.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordCall counts one classification call
func (m *Metrics) RecordCall(status string) {
	m.calls.WithLabelValues(status).Inc()
}

// RecordTable sets the row count of a table
func (m *Metrics) RecordTable(name string, rows int) {
	m.records.WithLabelValues(name).Set(float64(rows))
}

// RecordStage sets the duration of a stage
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	m.stage.WithLabelValues(stage).Set(d.Seconds())
}

// RecordWindows sets the window count
func (m *Metrics) RecordWindows(n int) {
	m.windows.Set(float64(n))
}

// Gatherer exposes the registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
