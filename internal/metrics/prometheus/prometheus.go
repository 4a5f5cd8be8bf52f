package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ledgerlabs/stakevault/internal/metrics/metricsTypes"
)

type PrometheusMetricsConfig struct {
	Metrics map[metricsTypes.MetricsType][]metricsTypes.MetricsTypeConfig
}

type PrometheusMetricsClient struct {
	logger *zap.Logger
	config *PrometheusMetricsConfig

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func NewPrometheusMetricsClient(config *PrometheusMetricsConfig, l *zap.Logger) (*PrometheusMetricsClient, error) {
	client := &PrometheusMetricsClient{
		config: config,
		logger: l,

		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	client.initializeTypes()

	return client, nil
}

func (pmc *PrometheusMetricsClient) initializeTypes() {
	for t, types := range pmc.config.Metrics {
		for _, mt := range types {
			switch t {
			case metricsTypes.MetricsType_Incr:
				if _, ok := pmc.counters[mt.Name]; ok {
					continue
				}
				pmc.counters[mt.Name] = prometheus.NewCounterVec(prometheus.CounterOpts{
					Name: mt.Name,
				}, mt.Labels)
				prometheus.MustRegister(pmc.counters[mt.Name])
			case metricsTypes.MetricsType_Gauge:
				if _, ok := pmc.gauges[mt.Name]; ok {
					continue
				}
				pmc.gauges[mt.Name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
					Name: mt.Name,
				}, mt.Labels)
				prometheus.MustRegister(pmc.gauges[mt.Name])
			case metricsTypes.MetricsType_Timing:
				if _, ok := pmc.histograms[mt.Name]; ok {
					continue
				}
				pmc.histograms[mt.Name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
					Name: mt.Name,
				}, mt.Labels)
				prometheus.MustRegister(pmc.histograms[mt.Name])
			}
		}
	}
}

func (pmc *PrometheusMetricsClient) formatLabels(labels []metricsTypes.MetricsLabel) prometheus.Labels {
	l := make(prometheus.Labels)
	if labels == nil {
		return l
	}
	for _, label := range labels {
		l[label.Name] = label.Value
	}
	return l
}

// filterLabels drops labels the metric was not registered with; prometheus
// rejects extraneous label names where dogstatsd simply accepts them.
func filterLabels(labels prometheus.Labels, registered []string) prometheus.Labels {
	filtered := make(prometheus.Labels)
	for _, name := range registered {
		if v, ok := labels[name]; ok {
			filtered[name] = v
		} else {
			filtered[name] = ""
		}
	}
	return filtered
}

func (pmc *PrometheusMetricsClient) registeredLabels(t metricsTypes.MetricsType, name string) []string {
	for _, mt := range pmc.config.Metrics[t] {
		if mt.Name == name {
			return mt.Labels
		}
	}
	return []string{}
}

func (pmc *PrometheusMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	m, ok := pmc.counters[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus counter not found", zap.String("name", name))
		return nil
	}
	registered := pmc.registeredLabels(metricsTypes.MetricsType_Incr, name)
	m.With(filterLabels(pmc.formatLabels(labels), registered)).Add(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	m, ok := pmc.gauges[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus gauge not found", zap.String("name", name))
		return nil
	}
	registered := pmc.registeredLabels(metricsTypes.MetricsType_Gauge, name)
	m.With(filterLabels(pmc.formatLabels(labels), registered)).Set(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	m, ok := pmc.histograms[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus histogram not found", zap.String("name", name))
		return nil
	}
	registered := pmc.registeredLabels(metricsTypes.MetricsType_Timing, name)
	m.With(filterLabels(pmc.formatLabels(labels), registered)).Observe(float64(value.Milliseconds()))
	return nil
}
