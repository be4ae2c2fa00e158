// Package metrics exports archive activity to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

const namespace = "sound_archive"

// Collector implements soundarchive.EventSink and instruments HTTP handlers.
type Collector struct {
	registry *prometheus.Registry

	contentEvents   *prometheus.CounterVec
	objectsWritten  *prometheus.CounterVec
	bytesWritten    *prometheus.CounterVec
	objectsOrphaned prometheus.Counter
	urlsIssued      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Collector on its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		contentEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_events_total",
			Help:      "Content records created, updated or deleted.",
		}, []string{"event"}),
		objectsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_written_total",
			Help:      "Media objects stored, by kind.",
		}, []string{"kind"}),
		bytesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_bytes_written_total",
			Help:      "Media bytes stored, by kind.",
		}, []string{"kind"}),
		objectsOrphaned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_orphaned_total",
			Help:      "Objects left in the bucket without a referencing record.",
		}),
		urlsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_urls_total",
			Help:      "Access URL requests per key, by outcome.",
		}, []string{"outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry holding every archive metric.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) ContentCreated(ctx context.Context, record *soundarchive.ContentRecord) error {
	c.contentEvents.WithLabelValues("created").Inc()
	return nil
}

func (c *Collector) ContentUpdated(ctx context.Context, record *soundarchive.ContentRecord) error {
	c.contentEvents.WithLabelValues("updated").Inc()
	return nil
}

func (c *Collector) ContentDeleted(ctx context.Context, id uuid.UUID) error {
	c.contentEvents.WithLabelValues("deleted").Inc()
	return nil
}

func (c *Collector) ObjectWritten(ctx context.Context, kind soundarchive.MediaKind, key string, size int64) error {
	c.objectsWritten.WithLabelValues(string(kind)).Inc()
	c.bytesWritten.WithLabelValues(string(kind)).Add(float64(size))
	return nil
}

func (c *Collector) ObjectOrphaned(ctx context.Context, key string, reason string) error {
	c.objectsOrphaned.Inc()
	return nil
}

func (c *Collector) URLIssued(ctx context.Context, key string, public bool, err error) error {
	outcome := "signed"
	switch {
	case err != nil:
		outcome = "denied_or_failed"
	case public:
		outcome = "public"
	}
	c.urlsIssued.WithLabelValues(outcome).Inc()
	return nil
}

var _ soundarchive.EventSink = (*Collector)(nil)
