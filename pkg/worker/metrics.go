package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "asset_worker_state",
		Help: "Lifecycle state of the worker for a cache version (1 installing .. 4 activated, 5 redundant)",
	}, []string{"version"})

	workerInstallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_worker_installs_total",
		Help: "Worker installs by result",
	}, []string{"result"})

	workerActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_worker_activations_total",
		Help: "Workers that took control",
	})

	storesPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_worker_stores_pruned_total",
		Help: "Stores of previous versions deleted on activation",
	})

	precacheRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_precache_retries_total",
		Help: "Precache retry attempts by error class",
	}, []string{"error_class"})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_worker_commands_total",
		Help: "Control commands handled by type",
	}, []string{"type"})
)
