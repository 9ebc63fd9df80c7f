// Package metrics records run statistics in a private prometheus registry so
// they can be exported as a node_exporter textfile at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"stressdrive/stress"
)

// Recorder implements stress.Recorder.
type Recorder struct {
	reg *prometheus.Registry

	BytesTotal       *prometheus.CounterVec
	IOSeconds        *prometheus.HistogramVec
	RegionsTotal     *prometheus.CounterVec
	DeviceBytes      prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	LastRunResult    prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New(device string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"device": device}, reg))
	return &Recorder{
		reg: reg,
		BytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressdrive_bytes_total",
				Help: "Bytes transferred, by phase",
			},
			[]string{"phase"},
		),
		IOSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stressdrive_io_seconds",
				Help:    "Latency of single buffer reads and writes",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"phase"},
		),
		RegionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressdrive_regions_total",
				Help: "Checkpointed regions, by phase and outcome",
			},
			[]string{"phase", "outcome"},
		),
		DeviceBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "stressdrive_device_bytes",
			Help: "Addressable size of the device under test",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "stressdrive_last_run_timestamp_seconds",
			Help: "Unix time the run finished",
		}),
		LastRunResult: f.NewGauge(prometheus.GaugeOpts{
			Name: "stressdrive_last_run_exit_code",
			Help: "Exit status of the run: 0 success, 1 verification failure, 2 operational failure",
		}),
	}
}

// Registry exposes the underlying gatherer.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) ObserveIO(phase stress.Phase, n int, d time.Duration) {
	r.BytesTotal.WithLabelValues(phase.String()).Add(float64(n))
	r.IOSeconds.WithLabelValues(phase.String()).Observe(d.Seconds())
}

func (r *Recorder) ObserveRegion(phase stress.Phase, ok bool) {
	outcome := "match"
	switch {
	case phase == stress.PhaseWrite:
		outcome = "recorded"
	case !ok:
		outcome = "mismatch"
	}
	r.RegionsTotal.WithLabelValues(phase.String(), outcome).Inc()
}

// Finish stamps the run outcome.
func (r *Recorder) Finish(exitCode int, at time.Time) {
	r.LastRunResult.Set(float64(exitCode))
	r.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteFile writes the registry in text exposition format, atomically.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
