package stats

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes the summed per-thread counters as Prometheus
// metrics, in the CounterVec/MustRegister shape the teacher's
// api/grpc/middleware/middleware.go uses for its request metrics. The
// HTTP endpoint that would serve these is out of scope (spec.md §1); a
// caller registers Collector with its own prometheus.Registerer.
type Collector struct {
	blocks []*Counters

	queries  *prometheus.Desc
	udpTrunc *prometheus.Desc
	ednsTot  *prometheus.Desc
}

// NewCollector returns a Collector summing the given per-thread blocks
// on every Collect call.
func NewCollector(blocks []*Counters) *Collector {
	return &Collector{
		blocks: blocks,
		queries: prometheus.NewDesc(
			"geodnsd_queries_total", "Queries answered, by result code.",
			[]string{"rcode"}, nil,
		),
		udpTrunc: prometheus.NewDesc(
			"geodnsd_udp_truncated_total", "UDP responses sent with TC=1.", nil, nil,
		),
		ednsTot: prometheus.NewDesc(
			"geodnsd_edns_queries_total", "Queries carrying a valid OPT RR.", nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queries
	ch <- c.udpTrunc
	ch <- c.ednsTot
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := Sum(c.blocks)
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.NoError), "noerror")
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.NXDomain), "nxdomain")
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.Refused), "refused")
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.NotImp), "notimp")
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.FormErr), "formerr")
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.BadVers), "badvers")
	ch <- prometheus.MustNewConstMetric(c.queries, prometheus.CounterValue, float64(s.Dropped), "dropped")
	ch <- prometheus.MustNewConstMetric(c.udpTrunc, prometheus.CounterValue, float64(s.UDPTC))
	ch <- prometheus.MustNewConstMetric(c.ednsTot, prometheus.CounterValue, float64(s.EDNS))
}
