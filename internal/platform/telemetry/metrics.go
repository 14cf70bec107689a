// Package telemetry records HTTP and generation metrics and serves them in
// the Prometheus text exposition format.
package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// durationBuckets (seconds) cover fast reads through long generation calls.
var durationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0,
}

// Metrics is safe for concurrent use. The zero value is not usable; call
// NewMetrics.
type Metrics struct {
	active      int64
	requests    *labeledHistograms // method|route|status
	genDuration *labeledHistograms // op
	genOutcomes *counters          // op|outcome
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:    newLabeledHistograms(durationBuckets),
		genDuration: newLabeledHistograms(durationBuckets),
		genOutcomes: newCounters(),
	}
}

func labelsKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// Middleware records request duration by route pattern and status code.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.active, 1)
			defer atomic.AddInt64(&m.active, -1)

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.get(labelsKey(c.Request().Method, route, strconv.Itoa(status))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(op, outcome string, elapsed time.Duration) {
	m.genOutcomes.inc(labelsKey(op, outcome))
	m.genDuration.get(op).Observe(elapsed.Seconds())
}

// GenerationCount returns how many calls of op ended with outcome.
func (m *Metrics) GenerationCount(op, outcome string) int64 {
	return m.genOutcomes.get(labelsKey(op, outcome))
}

// Handler serves every metric at /metrics.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
		for _, key := range m.requests.sortedKeys() {
			parts := strings.SplitN(key, "|", 3)
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "http_server_request_duration_seconds", labels, m.requests.get(key))
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&m.active))

		b.WriteString("# HELP generation_calls_total Generation calls by operation and outcome.\n")
		b.WriteString("# TYPE generation_calls_total counter\n")
		keys, values := m.genOutcomes.snapshot()
		for _, key := range keys {
			parts := strings.SplitN(key, "|", 2)
			fmt.Fprintf(&b, "generation_calls_total{op=%q,outcome=%q} %d\n", parts[0], parts[1], values[key])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP generation_duration_seconds Duration of generation calls in seconds.\n")
		b.WriteString("# TYPE generation_duration_seconds histogram\n")
		for _, op := range m.genDuration.sortedKeys() {
			writeHistogram(&b, "generation_duration_seconds", fmt.Sprintf("op=%q", op), m.genDuration.get(op))
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	total := h.Count()

	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}
