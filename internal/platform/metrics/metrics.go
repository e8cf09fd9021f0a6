package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HouseholdsCreated     prometheus.Counter
	HouseholdsSplit       prometheus.Counter
	PersonsRegistered     prometheus.Counter
	ResidencesDeclared    prometheus.Counter
	ComplaintsCreated     prometheus.Counter
	ComplaintsMerged      prometheus.Counter
	PartialApplications   *prometheus.CounterVec
	CodeAllocationRetries *prometheus.CounterVec
	DashboardCacheHits    *prometheus.CounterVec
	OperationDuration     *prometheus.HistogramVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HouseholdsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "civreg_households_created_total",
			Help: "Total number of households created, including splits",
		}),
		HouseholdsSplit: f.NewCounter(prometheus.CounterOpts{
			Name: "civreg_households_split_total",
			Help: "Total number of household splits",
		}),
		PersonsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "civreg_persons_registered_total",
			Help: "Total number of persons registered",
		}),
		ResidencesDeclared: f.NewCounter(prometheus.CounterOpts{
			Name: "civreg_residences_declared_total",
			Help: "Total number of temporary residence or absence declarations",
		}),
		ComplaintsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "civreg_complaints_created_total",
			Help: "Total number of complaints created",
		}),
		ComplaintsMerged: f.NewCounter(prometheus.CounterOpts{
			Name: "civreg_complaints_merged_total",
			Help: "Total number of complaints absorbed by a merge",
		}),
		PartialApplications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_partial_applications_total",
			Help: "Multi-write operations that failed after applying some writes",
		}, []string{"operation"}),
		CodeAllocationRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_code_allocation_retries_total",
			Help: "Code allocations retried after a unique collision",
		}, []string{"sequence"}),
		DashboardCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_dashboard_cache_total",
			Help: "Dashboard cache lookups by result",
		}, []string{"result"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civreg_operation_duration_seconds",
			Help:    "Duration of core registry operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civreg_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: durationBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementHouseholdsCreated() { m.HouseholdsCreated.Inc() }
func (m *Metrics) IncrementHouseholdsSplit()   { m.HouseholdsSplit.Inc() }
func (m *Metrics) IncrementPersonsRegistered() { m.PersonsRegistered.Inc() }
func (m *Metrics) IncrementResidences()        { m.ResidencesDeclared.Inc() }
func (m *Metrics) IncrementComplaintsCreated() { m.ComplaintsCreated.Inc() }

// AddComplaintsMerged records n absorbed complaints.
func (m *Metrics) AddComplaintsMerged(n int) { m.ComplaintsMerged.Add(float64(n)) }

func (m *Metrics) IncrementPartialApplication(operation string) {
	m.PartialApplications.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementCodeRetry(sequence string) {
	m.CodeAllocationRetries.WithLabelValues(sequence).Inc()
}

// IncrementDashboardCache records a cache "hit", "miss" or "error".
func (m *Metrics) IncrementDashboardCache(result string) {
	m.DashboardCacheHits.WithLabelValues(result).Inc()
}

// ObserveOperation records the duration of a core operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTPRequest(method, route, status string, start time.Time) {
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}
