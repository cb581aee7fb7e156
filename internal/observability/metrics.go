// File: internal/observability/metrics.go
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xkilldash9x/filterctl/internal/router"
)

const metricsNamespace = "filterctl"

// runMetrics describes one completed run. A fresh registry is used per run so
// the textfile only ever holds the latest outcome.
type runMetrics struct {
	registry  *prometheus.Registry
	timestamp prometheus.Gauge
	success   prometheus.Gauge
	duration  prometheus.Gauge
	toggled   prometheus.Gauge
	state     *prometheus.GaugeVec
	failure   *prometheus.GaugeVec
}

func newRunMetrics(model string, desired router.State) *runMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"model": model, "desired": desired.String()}

	return &runMetrics{
		registry: reg,
		timestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run started.",
			ConstLabels: labels,
		}),
		success: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_success",
			Help:        "1 when the last run verified the requested state.",
			ConstLabels: labels,
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_duration_seconds",
			Help:        "Wall time of the last run.",
			ConstLabels: labels,
		}),
		toggled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_toggled",
			Help:        "1 when the last run had to click the filter control.",
			ConstLabels: labels,
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "url_filter_state",
			Help:        "Last observed URL filter state, one series per state.",
			ConstLabels: labels,
		}, []string{"state"}),
		failure: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_failure",
			Help:        "Set to 1 for the failure kind and stage of a failed run.",
			ConstLabels: labels,
		}, []string{"kind", "stage"}),
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *runMetrics) observe(o router.Outcome) {
	m.timestamp.Set(float64(o.StartedAt.Unix()))
	m.success.Set(boolGauge(o.Success))
	m.duration.Set(o.Duration.Seconds())
	m.toggled.Set(boolGauge(o.Toggled))

	observed := o.After
	if observed == router.StateUnknown {
		observed = o.Before
	}
	for _, s := range []router.State{router.StateEnabled, router.StateDisabled, router.StateUnknown} {
		m.state.WithLabelValues(s.String()).Set(boolGauge(s == observed))
	}
	if o.Err != nil {
		m.failure.WithLabelValues(router.KindOf(o.Err).String(), string(o.Stage)).Set(1)
	}
}

// WriteRunMetrics writes the outcome as a node-exporter textfile. The write is
// atomic, so a scraping collector never sees a partial file.
func WriteRunMetrics(path string, o router.Outcome) error {
	m := newRunMetrics(o.Model, o.Desired)
	m.observe(o)
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
