package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the search process
	Registry = prometheus.NewRegistry()

	// OracleEvaluations counts oracle solves by pin mode and outcome
	OracleEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waterflow_oracle_evaluations_total", Help: "Oracle solves by mode and outcome."},
		[]string{"mode", "outcome"},
	)
	// OracleDuration records solve durations in seconds
	OracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "waterflow_oracle_duration_seconds", Help: "Oracle solve duration in seconds.", Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}},
		[]string{"mode"},
	)

	NeighborhoodCandidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waterflow_neighborhood_candidates_total", Help: "Candidates generated per neighbourhood."},
		[]string{"neighborhood"},
	)
	LocalSearchTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waterflow_local_search_transitions_total", Help: "Accepted local search moves by phase."},
		[]string{"phase"},
	)
	// CloudSeeds counts drawn site patterns: seeded, discarded or duplicate
	CloudSeeds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "waterflow_cloud_seeds_total", Help: "Cloud draws by status."},
		[]string{"status"},
	)
	ErosionPromotions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "waterflow_erosion_promotions_total", Help: "Optima promoted by erosion."},
	)
	// BestObjective is the objective of the best DOW seen by the latest run
	BestObjective = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "waterflow_best_objective", Help: "Best objective found so far."},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(OracleEvaluations)
		Registry.MustRegister(OracleDuration)
		Registry.MustRegister(NeighborhoodCandidates)
		Registry.MustRegister(LocalSearchTransitions)
		Registry.MustRegister(CloudSeeds)
		Registry.MustRegister(ErosionPromotions)
		Registry.MustRegister(BestObjective)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
