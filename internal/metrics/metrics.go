// Package metrics expone los contadores Prometheus del servicio: resultados
// de cada etapa de los flujos, HTTP y el estado de los backends.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors. Un *Metrics nil es válido: todos los métodos
// son no-op, así los servicios no chequean si las métricas están habilitadas.
type Metrics struct {
	reg *prometheus.Registry

	flowOutcomes   *prometheus.CounterVec
	otpSent        *prometheus.CounterVec
	sessionsIssued prometheus.Counter
	rateLimited    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight *prometheus.GaugeVec
}

func New() (*Metrics, error) {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		flowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_flow_outcomes_total",
			Help: "Resultados por flujo y etapa",
		}, []string{"flow", "stage", "outcome"}),
		otpSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_otp_sent_total",
			Help: "Códigos OTP enviados por flujo y resultado del envío",
		}, []string{"flow", "result"}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_sessions_issued_total",
			Help: "Sesiones emitidas (access token + marcador)",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_rate_limited_total",
			Help: "Requests rechazadas por rate limit",
		}, []string{"bucket"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),
	}

	for _, c := range []prometheus.Collector{
		m.flowOutcomes, m.otpSent, m.sessionsIssued, m.rateLimited,
		m.httpRequests, m.httpDuration, m.httpInflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register agrega un collector, ignorando duplicados.
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	if err := m.reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Gatherer expone el registry (tests).
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

func (m *Metrics) FlowOutcome(flow, stage, outcome string) {
	if m == nil {
		return
	}
	m.flowOutcomes.WithLabelValues(flow, stage, outcome).Inc()
}

func (m *Metrics) OTPSent(flow string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.otpSent.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.sessionsIssued.Inc()
}

func (m *Metrics) RateLimited(bucket string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(bucket).Inc()
}

// HTTPStart marca un request en vuelo; la func devuelta lo cierra con el status.
func (m *Metrics) HTTPStart(method, rawPath string) func(status int) {
	if m == nil {
		return func(int) {}
	}
	p := normalizePath(rawPath)
	m.httpInflight.WithLabelValues(method, p).Inc()
	start := time.Now()
	return func(status int) {
		m.httpInflight.WithLabelValues(method, p).Dec()
		m.httpDuration.WithLabelValues(method, p).Observe(time.Since(start).Seconds())
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(method, p, strconv.Itoa(status)).Inc()
	}
}
