// Package metrics exports search and HTTP metrics to Prometheus.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Alp4ka/searchpager"
	"github.com/Alp4ka/searchpager/engine"
)

const namespace = "searchpager"

// Collector implements searchpager.Collector.
type Collector struct {
	searchesTotal  *prometheus.CounterVec
	searchErrors   *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	hydratedTotal  *prometheus.CounterVec
	pagesWithMore  *prometheus.CounterVec
}

// NewCollector creates a collector and registers it on reg. A nil reg means
// prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of search requests sent to the engine",
			},
			[]string{"index", "mode"},
		),
		searchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_errors_total",
				Help:      "Total number of failed search requests",
			},
			[]string{"index", "mode", "status"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Search round trip duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"index", "mode"},
		),
		hydratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hydrated_entities_total",
				Help:      "Total number of entities hydrated from hits",
			},
			[]string{"index"},
		),
		pagesWithMore: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "Total number of hydrated pages by whether more results follow",
			},
			[]string{"index", "has_more"},
		),
	}

	for _, m := range []prometheus.Collector{
		c.searchesTotal, c.searchErrors, c.searchDuration, c.hydratedTotal, c.pagesWithMore,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// SearchQuery implements searchpager.Collector.
func (c *Collector) SearchQuery(index string, mode searchpager.Mode, took time.Duration, err error) {
	c.searchesTotal.WithLabelValues(index, string(mode)).Inc()
	c.searchDuration.WithLabelValues(index, string(mode)).Observe(took.Seconds())

	if err != nil {
		c.searchErrors.WithLabelValues(index, string(mode), errorStatus(err)).Inc()
	}
}

// Hydrated implements searchpager.Collector.
func (c *Collector) Hydrated(index string, entities int, hasMore bool) {
	c.hydratedTotal.WithLabelValues(index).Add(float64(entities))
	c.pagesWithMore.WithLabelValues(index, strconv.FormatBool(hasMore)).Inc()
}

// errorStatus is the engine status code, or "error" when the request never
// got an engine response.
func errorStatus(err error) string {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		return strconv.Itoa(engineErr.StatusCode)
	}

	return "error"
}

var _ searchpager.Collector = (*Collector)(nil)
