package infra

import (
	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// QueueGauge é o que o coletor lê da sequência a cada scrape.
type QueueGauge interface {
	Len() int
	Cap() int
}

// Metrics expõe a sequência no Prometheus e conta descartes por fonte.
type Metrics struct {
	shed *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, q QueueGauge) (*Metrics, error) {
	m := &Metrics{
		shed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reqstream",
			Name:      "shed_requests_total",
			Help:      "Requests rejected with 503 because the sequence buffer was full.",
		}, []string{"source"}),
	}
	depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "reqstream",
		Name:      "queue_depth",
		Help:      "Request contexts waiting in the sequence buffer.",
	}, func() float64 { return float64(q.Len()) })
	capacity := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "reqstream",
		Name:      "queue_capacity",
		Help:      "Configured high water mark of the sequence buffer.",
	}, func() float64 { return float64(q.Cap()) })

	err := multierr.Combine(
		reg.Register(m.shed),
		reg.Register(depth),
		reg.Register(capacity),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Observe(ev domain.Event) {
	if ev.Kind != domain.EventOverloaded {
		return
	}
	m.shed.WithLabelValues(ev.Context.Source).Inc()
}
