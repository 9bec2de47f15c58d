package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del orquestador. Viven en un paquete propio para que lifecycle y
// http puedan usarlas sin importarse entre sí.

var (
	LifecycleOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nshost_lifecycle_operations_total",
		Help: "Operaciones de lifecycle por acción y resultado",
	}, []string{"action", "result"}) // result: ok | validation | conflict | provisioning | not_found | unauthorized | io | error

	LifecycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nshost_lifecycle_duration_seconds",
		Help:    "Duración de operaciones de lifecycle",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"action"})

	StartAllTargets = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nshost_startall_targets",
		Help:    "Domains elegibles por ejecución de startall",
		Buckets: prometheus.LinearBuckets(0, 10, 10),
	})

	ManagedProcesses = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nshost_supervised_processes",
		Help: "Procesos vistos en el último listado del supervisor",
	})
)

// ObserveLifecycle registra una operación terminada.
func ObserveLifecycle(action, result string, d time.Duration) {
	LifecycleOps.WithLabelValues(action, result).Inc()
	LifecycleDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RegisterLifecycle registra las métricas del orquestador (default si reg es nil).
func RegisterLifecycle(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{LifecycleOps, LifecycleDuration, StartAllTargets, ManagedProcesses} {
		if err := Register(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// Register ignora AlreadyRegisteredError para permitir wiring repetido en tests.
func Register(reg prometheus.Registerer, c prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
