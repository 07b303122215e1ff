// Package stcpmetrics exposes an STCP engine's counters as a
// prometheus.Collector, the Go-native analogue of the TCP-statistics
// exporters in this retrieval pack.
package stcpmetrics

import "github.com/prometheus/client_golang/prometheus"

// Collector implements stcp.Metrics and prometheus.Collector: wire it into
// an Engine with Engine.SetMetrics, and register it with a prometheus
// registry to scrape per-connection counters.
type Collector struct {
	id string

	segmentsSent     prometheus.Counter
	segmentsReceived prometheus.Counter
	retransmits      prometheus.Counter
	duplicateAcks    prometheus.Counter
	drops            *prometheus.CounterVec
	queueDepth       prometheus.GaugeFunc
	state            prometheus.GaugeFunc
}

// New builds a Collector labeled by id (typically the rs/xid connection id
// the caller passed to stcp.New). queueDepth and state are read at scrape time, typically
// Engine.RetransmitQueueLen and a small wrapper around Engine.State.
func New(id string, queueDepth func() float64, state func() float64) *Collector {
	labels := prometheus.Labels{"conn": id}
	c := &Collector{
		id: id,
		segmentsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "stcp_segments_sent_total",
			Help:        "Segments transmitted, including retransmissions.",
			ConstLabels: labels,
		}),
		segmentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "stcp_segments_received_total",
			Help:        "Segments received from the network.",
			ConstLabels: labels,
		}),
		retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "stcp_retransmits_total",
			Help:        "Segments retransmitted due to a missed deadline.",
			ConstLabels: labels,
		}),
		duplicateAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "stcp_duplicate_acks_total",
			Help:        "ACKs received that matched no live retransmit entry.",
			ConstLabels: labels,
		}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "stcp_drops_total",
			Help:        "Segments dropped by the receive pipeline, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
	}
	c.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "stcp_retransmit_queue_depth",
		Help:        "Number of unacknowledged segments awaiting retransmission or ACK.",
		ConstLabels: labels,
	}, queueDepth)
	c.state = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "stcp_state",
		Help:        "Numeric connection state, ordered LISTEN=0 .. CLOSED=8.",
		ConstLabels: labels,
	}, state)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.segmentsSent.Desc()
	ch <- c.segmentsReceived.Desc()
	ch <- c.retransmits.Desc()
	ch <- c.duplicateAcks.Desc()
	c.drops.Describe(ch)
	ch <- c.queueDepth.Desc()
	ch <- c.state.Desc()
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- c.segmentsSent
	ch <- c.segmentsReceived
	ch <- c.retransmits
	ch <- c.duplicateAcks
	c.drops.Collect(ch)
	ch <- c.queueDepth
	ch <- c.state
}

// The remaining methods implement stcp.Metrics without importing package
// stcp, avoiding an import cycle (stcp's consumers, not stcp itself, wire
// the two packages together).

func (c *Collector) SegmentSent()     { c.segmentsSent.Inc() }
func (c *Collector) SegmentReceived() { c.segmentsReceived.Inc() }
func (c *Collector) Retransmitted()   { c.retransmits.Inc() }
func (c *Collector) DuplicateAck()    { c.duplicateAcks.Inc() }
func (c *Collector) Dropped(reason string) {
	c.drops.WithLabelValues(reason).Inc()
}
