package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reg = prometheus.NewRegistry()

var (
	mu            sync.Mutex
	counterVecs   = map[string]*prometheus.CounterVec{}
	gaugeVecs     = map[string]*prometheus.GaugeVec{}
	histogramVecs = map[string]*prometheus.HistogramVec{}
)

func sortedLabelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	mu.Lock()
	cv, ok := counterVecs[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, sortedLabelNames(labels))
		reg.MustRegister(cv)
		counterVecs[name] = cv
	}
	mu.Unlock()
	cv.With(prometheus.Labels(labels)).Add(value)
}

func SetGauge(name string, value float64, labels map[string]string) {
	mu.Lock()
	gv, ok := gaugeVecs[name]
	if !ok {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, sortedLabelNames(labels))
		reg.MustRegister(gv)
		gaugeVecs[name] = gv
	}
	mu.Unlock()
	gv.With(prometheus.Labels(labels)).Set(value)
}

func Observe(name string, value float64, labels map[string]string) {
	mu.Lock()
	hv, ok := histogramVecs[name]
	if !ok {
		hv = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name, Buckets: prometheus.DefBuckets}, sortedLabelNames(labels))
		reg.MustRegister(hv)
		histogramVecs[name] = hv
	}
	mu.Unlock()
	hv.With(prometheus.Labels(labels)).Observe(value)
}

// RecordDuration records a duration metric, in milliseconds.
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(duration.Milliseconds()), labels)
}

// Handler exposes the registry in the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// HealthStatus is the /health response shape.
type HealthStatus struct {
	Status    string                 `json:"status"` // healthy, degraded, failed
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Metrics   HealthMetrics          `json:"metrics"`
	Details   map[string]interface{} `json:"details"`
}

// HealthMetrics summarizes the pipeline's own health signals: how the
// source fetchers are doing, how the LLM client's guardrails are tracking,
// and how the broadcaster is keeping up.
type HealthMetrics struct {
	FetchSuccessRate      float64 `json:"fetch_success_rate"`
	SourcesDisabled       int64   `json:"sources_disabled"`
	CycleLatencyP95Ms     int64   `json:"cycle_latency_p95_ms"`
	LLMBudgetUsedUSD      float64 `json:"llm_budget_used_usd"`
	LLMBudgetLimitUSD     float64 `json:"llm_budget_limit_usd"`
	LLMBudgetRemainingPct float64 `json:"llm_budget_remaining_pct"`
	CircuitOpen           bool    `json:"circuit_open"`
	SignalsSentToday      int64   `json:"signals_sent_today"`
	BroadcastFailureRate  float64 `json:"broadcast_failure_rate"`
}

var (
	startTime = time.Now()
	version   = "dev"
)

// SetVersion sets the version string reported by the health endpoint.
func SetVersion(v string) { version = v }

// snapshot mirrors dummybox's GetMetricsInfo: walk the registry's
// MetricFamily list once and pull out the handful of series the health
// endpoint cares about, summing counters across label combinations.
type snapshot struct {
	counters map[string]float64
	gauges   map[string]float64
	p95ms    map[string]int64
}

func gatherSnapshot() snapshot {
	s := snapshot{counters: map[string]float64{}, gauges: map[string]float64{}, p95ms: map[string]int64{}}
	families, err := reg.Gather()
	if err != nil {
		return s
	}
	for _, mf := range families {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				s.counters[name] += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				s.gauges[name] = g.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				count := h.GetSampleCount()
				if count == 0 {
					continue
				}
				target := uint64(float64(count) * 0.95)
				for _, b := range h.GetBucket() {
					if b.GetCumulativeCount() >= target {
						s.p95ms[name] = int64(b.GetUpperBound())
						break
					}
				}
			}
		}
	}
	return s
}

// DebugHandler dumps the gathered snapshot as JSON, a quick debugging
// surface alongside the Prometheus exposition endpoint.
func DebugHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := gatherSnapshot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"counters": s.counters,
			"gauges":   s.gauges,
			"p95_ms":   s.p95ms,
		})
	})
}

// HealthHandler reports the pipeline's operational health: fetch success
// rate, disabled-source count, LLM budget/circuit state, and broadcast
// failure rate, so an external monitor can page on sustained degradation.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := gatherSnapshot()

		health := HealthStatus{
			Status:    calculateOverallHealthStatus(s),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Version:   version,
			Metrics:   calculateHealthMetrics(s),
			Details:   gatherHealthDetails(s),
		}

		statusCode := http.StatusOK
		switch health.Status {
		case "degraded":
			statusCode = http.StatusPartialContent
		case "failed":
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(health)
	})
}

func calculateOverallHealthStatus(s snapshot) string {
	if hasFailedComponents(s) {
		return "failed"
	}
	if hasDegradedComponents(s) {
		return "degraded"
	}
	return "healthy"
}

func calculateHealthMetrics(s snapshot) HealthMetrics {
	m := HealthMetrics{}

	attempts := s.counters["fetch_attempts_total"]
	successes := s.counters["fetch_successes_total"]
	if attempts > 0 {
		m.FetchSuccessRate = successes / attempts
	}
	m.SourcesDisabled = int64(s.gauges["sources_disabled"])
	m.CycleLatencyP95Ms = s.p95ms["cycle_latency_ms_ms"]

	m.LLMBudgetUsedUSD = s.gauges["llm_budget_used_usd"]
	m.LLMBudgetLimitUSD = s.gauges["llm_budget_limit_usd"]
	if m.LLMBudgetLimitUSD > 0 {
		m.LLMBudgetRemainingPct = (m.LLMBudgetLimitUSD - m.LLMBudgetUsedUSD) / m.LLMBudgetLimitUSD
	}
	m.CircuitOpen = s.gauges["llm_circuit_open"] == 1
	m.SignalsSentToday = int64(s.gauges["signals_sent_today"])

	sent := s.counters["broadcast_sent_total"]
	failed := s.counters["broadcast_failed_total"]
	if sent+failed > 0 {
		m.BroadcastFailureRate = failed / (sent + failed)
	}
	return m
}

func hasFailedComponents(s snapshot) bool {
	if s.gauges["llm_circuit_open"] == 1 {
		return true
	}
	attempts := s.counters["fetch_attempts_total"]
	successes := s.counters["fetch_successes_total"]
	if attempts > 50 && successes/attempts < 0.3 {
		return true
	}
	return false
}

func hasDegradedComponents(s snapshot) bool {
	if s.gauges["sources_disabled"] > 0 {
		return true
	}
	if s.p95ms["cycle_latency_ms_ms"] > 120_000 {
		return true
	}
	return false
}

func gatherHealthDetails(s snapshot) map[string]interface{} {
	details := make(map[string]interface{})
	details["decision_codes_total"] = s.counters["decision_code_total"]
	details["job_failures_total"] = s.counters["job_failures_total"]
	return details
}

// Health is a trivial liveness probe, unconditionally ok.
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
