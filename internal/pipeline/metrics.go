package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics collects per-run measurements on a private registry. A run is
// a batch job, so the snapshot goes out via the textfile collector format
// instead of a scrape endpoint.
type runMetrics struct {
	reg           *prometheus.Registry
	duration      prometheus.Gauge
	artifactBytes prometheus.Gauge
	conversions   *prometheus.CounterVec
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		reg: prometheus.NewRegistry(),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mlxconv_conversion_duration_seconds",
			Help: "Wall-clock duration of the last conversion",
		}),
		artifactBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mlxconv_artifact_bytes",
			Help: "On-disk size of the converted artifact",
		}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mlxconv_conversions_total",
			Help: "Conversion attempts by result",
		}, []string{"result"}),
	}
	m.reg.MustRegister(m.duration, m.artifactBytes, m.conversions)
	return m
}

func (m *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
