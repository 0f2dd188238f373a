package metrics

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentdesk/internal/event"
)

const namespace = "agentdesk"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry        *prometheus.Registry
	deletionOutcome *prometheus.CounterVec
	listUpdates     *prometheus.CounterVec
	requests        *prometheus.HistogramVec
}

// DropCounter is satisfied by event.InMemoryBus.
type DropCounter interface {
	Dropped() uint64
}

func New(bus DropCounter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deletionOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletion_outcomes_total",
			Help:      "Resolved deletion tickets by resource and outcome.",
		}, []string{"resource", "outcome"}),
		listUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_updates_total",
			Help:      "Roster list state changes by resource.",
		}, []string{"resource"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.deletionOutcome,
		m.listUpdates,
		m.requests,
	)
	if bus != nil {
		m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events discarded because a subscriber was full.",
		}, func() float64 { return float64(bus.Dropped()) }))
	}
	return m
}

// Consume counts bus events until ctx is done or the channel closes.
func (m *Metrics) Consume(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Observe(e)
		}
	}
}

func (m *Metrics) Observe(e event.Event) {
	switch e.Type {
	case event.TypeDeletionDeleted:
		m.deletionOutcome.WithLabelValues(e.Resource, "deleted").Inc()
	case event.TypeDeletionError:
		m.deletionOutcome.WithLabelValues(e.Resource, "failed").Inc()
	case event.TypeDeletionRestored:
		// includes the restore that precedes every failure
		m.deletionOutcome.WithLabelValues(e.Resource, "restored").Inc()
	case event.TypeListUpdated:
		m.listUpdates.WithLabelValues(e.Resource).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request latency labelled by chi route pattern, never the raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Observe(time.Since(started).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
