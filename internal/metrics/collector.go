package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atcfusion/engine/internal/correlator"
	"github.com/atcfusion/engine/internal/transcribe"
)

// PoolStatter reports live transcription queue depth at scrape time.
type PoolStatter interface {
	Stats() transcribe.QueueStats
}

// CorrelatorStatter reports live correlation latency at scrape time.
type CorrelatorStatter interface {
	GetStats() correlator.Stats
}

// Collector implements prometheus.Collector to read live gauges — queue
// depth, correlation latency, subscriber count — at scrape time instead of
// tracking them as they change.
type Collector struct {
	pool       PoolStatter
	correlator CorrelatorStatter
	subscriber func() int // eventbus.Bus.SubscriberCount, may be nil

	queuePending    *prometheus.Desc
	queueCompleted  *prometheus.Desc
	queueFailed     *prometheus.Desc
	correlationAvgS *prometheus.Desc
	busSubscribers  *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time. Any
// of pool, correlator, or subscriberCount may be nil, in which case the
// corresponding metrics report 0.
func NewCollector(pool PoolStatter, correlator CorrelatorStatter, subscriberCount func() int) *Collector {
	return &Collector{
		pool:       pool,
		correlator: correlator,
		subscriber: subscriberCount,
		queuePending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "pending"),
			"Transcription jobs currently queued.",
			nil, nil,
		),
		queueCompleted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "completed_total"),
			"Transcription jobs completed since startup.",
			nil, nil,
		),
		queueFailed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "failed_total"),
			"Transcription jobs failed since startup.",
			nil, nil,
		),
		correlationAvgS: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "correlation", "avg_response_time_seconds"),
			"Rolling average LLM correlation response time.",
			nil, nil,
		),
		busSubscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "eventbus", "subscribers_active"),
			"Current number of event bus subscribers.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuePending
	ch <- c.queueCompleted
	ch <- c.queueFailed
	ch <- c.correlationAvgS
	ch <- c.busSubscribers
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.pool != nil {
		s := c.pool.Stats()
		ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, float64(s.Pending))
		ch <- prometheus.MustNewConstMetric(c.queueCompleted, prometheus.CounterValue, float64(s.Completed))
		ch <- prometheus.MustNewConstMetric(c.queueFailed, prometheus.CounterValue, float64(s.Failed))
	} else {
		ch <- prometheus.MustNewConstMetric(c.queuePending, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.queueCompleted, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.queueFailed, prometheus.CounterValue, 0)
	}

	if c.correlator != nil {
		s := c.correlator.GetStats()
		ch <- prometheus.MustNewConstMetric(c.correlationAvgS, prometheus.GaugeValue, s.AvgResponseTimeS)
	} else {
		ch <- prometheus.MustNewConstMetric(c.correlationAvgS, prometheus.GaugeValue, 0)
	}

	if c.subscriber != nil {
		ch <- prometheus.MustNewConstMetric(c.busSubscribers, prometheus.GaugeValue, float64(c.subscriber()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.busSubscribers, prometheus.GaugeValue, 0)
	}
}
