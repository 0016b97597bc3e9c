package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Recorder backed by Prometheus collectors.
type Prometheus struct {
	assignments *prometheus.CounterVec
	occupancy   *prometheus.GaugeVec
	broadcasts  prometheus.Counter
	lastTotal   prometheus.Gauge
}

// Compile-time assertion that Prometheus implements Recorder.
var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates and registers the gateway collectors.
//
// Parameters:
//   - reg: registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: metric namespace ("worldgate" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "worldgate"
	}

	p := &Prometheus{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "total",
			Help:      "Connection assignments by outcome and world.",
		}, []string{"result", "world"}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "players",
			Help:      "Current player count per world.",
		}, []string{"world"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "population",
			Name:      "broadcasts_total",
			Help:      "Population totals pushed to every world.",
		}),
		lastTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "population",
			Name:      "cluster_players",
			Help:      "Last cluster-wide player total pushed to the worlds.",
		}),
	}

	for _, c := range []prometheus.Collector{p.assignments, p.occupancy, p.broadcasts, p.lastTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) AssignmentAccepted(world string) {
	p.assignments.WithLabelValues("accepted", world).Inc()
}

func (p *Prometheus) AssignmentRejected() {
	p.assignments.WithLabelValues("rejected", "").Inc()
}

func (p *Prometheus) Occupancy(world string, players int) {
	p.occupancy.WithLabelValues(world).Set(float64(players))
}

func (p *Prometheus) PopulationBroadcast(total int) {
	p.broadcasts.Inc()
	p.lastTotal.Set(float64(total))
}
