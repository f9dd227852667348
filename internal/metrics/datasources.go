package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DataSources records the registry state. It satisfies the recorder
// interface of the data source service.
type DataSources struct {
	count   *prometheus.GaugeVec
	syncs   prometheus.Counter
	changed prometheus.Histogram
}

// NewDataSources creates the registry collectors and registers them with reg.
func NewDataSources(reg prometheus.Registerer) *DataSources {
	m := &DataSources{
		count: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ogc_datasources",
			Help: "Registered data sources by state.",
		}, []string{"state"}),
		syncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ogc_resolution_syncs_total",
			Help: "View resolution synchronizations.",
		}),
		changed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ogc_resolution_sync_changed",
			Help:    "Data sources whose in-range state changed per synchronization.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
	reg.MustRegister(m.count, m.syncs, m.changed)
	return m
}

func (m *DataSources) SetDataSources(total, visible, inRange int) {
	m.count.WithLabelValues("total").Set(float64(total))
	m.count.WithLabelValues("visible").Set(float64(visible))
	m.count.WithLabelValues("in_range").Set(float64(inRange))
}

func (m *DataSources) ObserveSync(changed int) {
	m.syncs.Inc()
	m.changed.Observe(float64(changed))
}
