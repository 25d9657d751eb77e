package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/client-go/util/workqueue"
)

const metricsNamespace = "echo"

// Metrics records reconciliation outcomes and work queue behavior.
// A nil *Metrics records nothing.
type Metrics struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileErrors   *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec

	queue *workqueueMetrics
}

// NewMetrics creates the controller metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_total",
				Help:      "Total number of reconciliations by outcome",
			},
			[]string{"namespace", "name", "outcome"},
		),
		reconcileErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_errors_total",
				Help:      "Total number of reconciliation errors",
			},
			[]string{"namespace", "name", "reason"},
		),
		reconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of reconciliations in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"namespace", "name"},
		),
		queue: newWorkqueueMetrics(),
	}
	reg.MustRegister(
		m.reconcileTotal,
		m.reconcileErrors,
		m.reconcileDuration,
	)
	m.queue.register(reg)
	return m
}

// WorkqueueProvider returns a workqueue.MetricsProvider backed by the same
// registry, or nil.
func (m *Metrics) WorkqueueProvider() workqueue.MetricsProvider {
	if m == nil {
		return nil
	}
	return m.queue
}

func (m *Metrics) observe(namespace, name string, action Action, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.reconcileDuration.WithLabelValues(namespace, name).Observe(took.Seconds())
	if err != nil {
		m.reconcileTotal.WithLabelValues(namespace, name, "error").Inc()
		m.reconcileErrors.WithLabelValues(namespace, name, Reason(err)).Inc()
		return
	}
	m.reconcileTotal.WithLabelValues(namespace, name, action.Kind().String()).Inc()
}

// workqueueMetrics adapts prometheus vectors to workqueue.MetricsProvider.
type workqueueMetrics struct {
	depth                   *prometheus.GaugeVec
	adds                    *prometheus.CounterVec
	latency                 *prometheus.HistogramVec
	workDuration            *prometheus.HistogramVec
	unfinished              *prometheus.GaugeVec
	longestRunningProcessor *prometheus.GaugeVec
	retries                 *prometheus.CounterVec
}

var _ workqueue.MetricsProvider = (*workqueueMetrics)(nil)

func newWorkqueueMetrics() *workqueueMetrics {
	const subsystem = "workqueue"
	buckets := prometheus.ExponentialBuckets(10e-9, 10, 12)
	return &workqueueMetrics{
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: subsystem,
			Name: "depth", Help: "Current depth of the work queue",
		}, []string{"name"}),
		adds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: subsystem,
			Name: "adds_total", Help: "Total number of adds handled by the work queue",
		}, []string{"name"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: subsystem,
			Name: "queue_duration_seconds", Help: "How long a key stays in the queue before being requested",
			Buckets: buckets,
		}, []string{"name"}),
		workDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: subsystem,
			Name: "work_duration_seconds", Help: "How long processing a key takes",
			Buckets: buckets,
		}, []string{"name"}),
		unfinished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: subsystem,
			Name: "unfinished_work_seconds", Help: "Seconds of work in progress not yet observed by work_duration",
		}, []string{"name"}),
		longestRunningProcessor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: subsystem,
			Name: "longest_running_processor_seconds", Help: "Seconds the longest running worker has been processing its key",
		}, []string{"name"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: subsystem,
			Name: "retries_total", Help: "Total number of retries handled by the work queue",
		}, []string{"name"}),
	}
}

func (w *workqueueMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(w.depth, w.adds, w.latency, w.workDuration, w.unfinished, w.longestRunningProcessor, w.retries)
}

func (w *workqueueMetrics) NewDepthMetric(name string) workqueue.GaugeMetric {
	return w.depth.WithLabelValues(name)
}

func (w *workqueueMetrics) NewAddsMetric(name string) workqueue.CounterMetric {
	return w.adds.WithLabelValues(name)
}

func (w *workqueueMetrics) NewLatencyMetric(name string) workqueue.HistogramMetric {
	return w.latency.WithLabelValues(name)
}

func (w *workqueueMetrics) NewWorkDurationMetric(name string) workqueue.HistogramMetric {
	return w.workDuration.WithLabelValues(name)
}

func (w *workqueueMetrics) NewUnfinishedWorkSecondsMetric(name string) workqueue.SettableGaugeMetric {
	return w.unfinished.WithLabelValues(name)
}

func (w *workqueueMetrics) NewLongestRunningProcessorSecondsMetric(name string) workqueue.SettableGaugeMetric {
	return w.longestRunningProcessor.WithLabelValues(name)
}

func (w *workqueueMetrics) NewRetriesMetric(name string) workqueue.CounterMetric {
	return w.retries.WithLabelValues(name)
}
