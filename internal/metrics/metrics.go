package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "slot_created_total",
			Help:      "Count of slots created by status.",
		},
		[]string{"status"},
	)

	conflictRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "conflict_rejected_total",
			Help:      "Count of bookings rejected by conflict kind.",
		},
		[]string{"kind"},
	)

	contractCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "contract_created_total",
			Help:      "Count of recurring contracts created.",
		},
	)

	renewalRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "renewal_runs_total",
			Help:      "Count of daily renewal runs.",
		},
	)

	renewalSlotsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "renewal_slots_created_total",
			Help:      "Count of slots created by the renewal job.",
		},
	)

	renewedContracts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "renewed_contracts_total",
			Help:      "Count of contracts extended by the renewal job.",
		},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agenda",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method and status class.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status_class"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(slotCreated, conflictRejected, contractCreated,
			renewalRuns, renewalSlotsCreated, renewedContracts, httpDuration)
	})
}

func IncSlotCreated(status string) {
	slotCreated.WithLabelValues(status).Inc()
}

func IncConflictRejected(kind string) {
	conflictRejected.WithLabelValues(kind).Inc()
}

func IncContractCreated() {
	contractCreated.Inc()
}

func ObserveRenewalRun(renewed, slotsCreated int) {
	renewalRuns.Inc()
	renewedContracts.Add(float64(renewed))
	renewalSlotsCreated.Add(float64(slotsCreated))
}

func ObserveHTTPRequest(method, statusClass string, d time.Duration) {
	httpDuration.WithLabelValues(method, statusClass).Observe(d.Seconds())
}
