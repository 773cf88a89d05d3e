package miniature

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	created *prometheus.CounterVec
	removed prometheus.Counter
	errors  *prometheus.CounterVec
	active  prometheus.GaugeFunc
}

// newMetrics создаёт метрики менеджера. Если reg == nil, метрики не регистрируются.
func newMetrics(reg prometheus.Registerer, activeCount func() int) *metrics {
	m := &metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniature_created_total",
			Help: "Созданные миниатюры по виду (indexed, linked).",
		}, []string{"mode"}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "miniature_removed_total",
			Help: "Удалённые миниатюры, включая очистку при остановке.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "miniature_operation_errors_total",
			Help: "Ошибки операций с миниатюрами по операции и виду ошибки.",
		}, []string{"op", "kind"}),
		active: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "miniature_active",
			Help: "Загруженные миры с именем миниатюры.",
		}, func() float64 { return float64(activeCount()) }),
	}

	if reg != nil {
		reg.MustRegister(m.created, m.removed, m.errors, m.active)
	}
	return m
}

func (m *metrics) failed(op string, err error) {
	m.errors.WithLabelValues(op, errorKind(err)).Inc()
}
