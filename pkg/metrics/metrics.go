package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is the in-process metrics store exposed at /metrics. It tracks
// endpoint latencies plus CRM domain counters: pipeline status totals,
// payment approvals and the live approved-sales gauge.
type Registry struct {
	mu            sync.RWMutex
	endpoint      map[string]*EndpointStat
	statusTotals  map[string]int64
	paymentEvents map[string]int64
	gauges        map[string]float64
	loginFailures int64
}

type EndpointStat struct {
	Count          int64   `json:"count"`
	ErrorCount     int64   `json:"error_count"`
	TotalMillis    int64   `json:"total_millis"`
	MaxMillis      int64   `json:"max_millis"`
	AverageMillis  float64 `json:"average_millis"`
	LastStatusCode int     `json:"last_status_code"`
}

type Snapshot struct {
	GeneratedAt   string                  `json:"generated_at"`
	Endpoints     map[string]EndpointStat `json:"endpoints"`
	StatusTotals  map[string]int64        `json:"status_totals"`
	PaymentEvents map[string]int64        `json:"payment_events"`
	Gauges        map[string]float64      `json:"gauges"`
	LoginFailures int64                   `json:"login_failures_total"`
}

func NewRegistry() *Registry {
	return &Registry{
		endpoint:      map[string]*EndpointStat{},
		statusTotals:  map[string]int64{},
		paymentEvents: map[string]int64{},
		gauges:        map[string]float64{},
	}
}

func (r *Registry) Observe(path string, status int, d time.Duration) {
	millis := d.Milliseconds()
	r.mu.Lock()
	defer r.mu.Unlock()
	stat, ok := r.endpoint[path]
	if !ok {
		stat = &EndpointStat{}
		r.endpoint[path] = stat
	}
	stat.Count++
	if status >= 400 {
		stat.ErrorCount++
	}
	stat.TotalMillis += millis
	if millis > stat.MaxMillis {
		stat.MaxMillis = millis
	}
	stat.LastStatusCode = status
	stat.AverageMillis = float64(stat.TotalMillis) / float64(stat.Count)
}

// IncStatus counts a lead transition into a pipeline status.
func (r *Registry) IncStatus(status string) {
	status = strings.TrimSpace(status)
	if status == "" {
		return
	}
	r.mu.Lock()
	r.statusTotals[status]++
	r.mu.Unlock()
}

// IncPaymentEvent counts ledger activity ("draft", "approved").
func (r *Registry) IncPaymentEvent(kind string) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return
	}
	r.mu.Lock()
	r.paymentEvents[kind]++
	r.mu.Unlock()
}

func (r *Registry) IncLoginFailure() {
	r.mu.Lock()
	r.loginFailures++
	r.mu.Unlock()
}

func (r *Registry) SetGauge(name string, value float64) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Snapshot{
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		Endpoints:     make(map[string]EndpointStat, len(r.endpoint)),
		StatusTotals:  make(map[string]int64, len(r.statusTotals)),
		PaymentEvents: make(map[string]int64, len(r.paymentEvents)),
		Gauges:        make(map[string]float64, len(r.gauges)),
		LoginFailures: r.loginFailures,
	}
	for k, v := range r.endpoint {
		out.Endpoints[k] = *v
	}
	for k, v := range r.statusTotals {
		out.StatusTotals[k] = v
	}
	for k, v := range r.paymentEvents {
		out.PaymentEvents[k] = v
	}
	for k, v := range r.gauges {
		out.Gauges[k] = v
	}
	return out
}

func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snap := r.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(snap)
	}
}

func (r *Registry) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snap := r.Snapshot()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		b := &strings.Builder{}
		b.WriteString("# HELP crm_endpoint_count total requests by endpoint\n")
		b.WriteString("# TYPE crm_endpoint_count counter\n")
		for _, ep := range sortedKeys(snap.Endpoints) {
			fmt.Fprintf(b, "crm_endpoint_count{endpoint=%q} %d\n", ep, snap.Endpoints[ep].Count)
		}
		b.WriteString("# HELP crm_endpoint_error_count total endpoint errors\n")
		b.WriteString("# TYPE crm_endpoint_error_count counter\n")
		for _, ep := range sortedKeys(snap.Endpoints) {
			fmt.Fprintf(b, "crm_endpoint_error_count{endpoint=%q} %d\n", ep, snap.Endpoints[ep].ErrorCount)
		}
		b.WriteString("# HELP crm_endpoint_avg_millis endpoint average latency in milliseconds\n")
		b.WriteString("# TYPE crm_endpoint_avg_millis gauge\n")
		for _, ep := range sortedKeys(snap.Endpoints) {
			fmt.Fprintf(b, "crm_endpoint_avg_millis{endpoint=%q} %.3f\n", ep, snap.Endpoints[ep].AverageMillis)
		}
		b.WriteString("# HELP crm_lead_status_total lead transitions by target status\n")
		b.WriteString("# TYPE crm_lead_status_total counter\n")
		for _, status := range sortedKeys(snap.StatusTotals) {
			fmt.Fprintf(b, "crm_lead_status_total{status=%q} %d\n", status, snap.StatusTotals[status])
		}
		b.WriteString("# HELP crm_payment_event_total ledger events by kind\n")
		b.WriteString("# TYPE crm_payment_event_total counter\n")
		for _, kind := range sortedKeys(snap.PaymentEvents) {
			fmt.Fprintf(b, "crm_payment_event_total{kind=%q} %d\n", kind, snap.PaymentEvents[kind])
		}
		b.WriteString("# HELP crm_gauge operational gauges\n")
		b.WriteString("# TYPE crm_gauge gauge\n")
		for _, name := range sortedKeys(snap.Gauges) {
			fmt.Fprintf(b, "crm_gauge{name=%q} %.3f\n", name, snap.Gauges[name])
		}
		b.WriteString("# HELP crm_login_failures_total failed login attempts\n")
		b.WriteString("# TYPE crm_login_failures_total counter\n")
		fmt.Fprintf(b, "crm_login_failures_total %d\n", snap.LoginFailures)
		_, _ = w.Write([]byte(b.String()))
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
