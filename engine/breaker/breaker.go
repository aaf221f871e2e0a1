// Package breaker guards a searchpager.Searcher with a circuit breaker.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Alp4ka/searchpager"
)

// ErrOpen is returned while the breaker rejects requests.
var ErrOpen = gobreaker.ErrOpenState

// Settings tunes the breaker. Zero values fall back to the defaults below.
type Settings struct {
	Name string
	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32
	// Interval is the closed-state window after which counts reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// MinRequests and FailureRatio decide when the breaker trips.
	MinRequests  uint32
	FailureRatio float64
}

const (
	defaultMaxRequests  = 5
	defaultInterval     = 10 * time.Second
	defaultTimeout      = 5 * time.Second
	defaultMinRequests  = 3
	defaultFailureRatio = 0.6
)

// Searcher trips after repeated engine failures. Errors of the wrapped
// searcher are returned as is; only an open breaker yields ErrOpen.
type Searcher struct {
	next searchpager.Searcher
	cb   *gobreaker.CircuitBreaker
}

func New(next searchpager.Searcher, s Settings, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Name == "" {
		s.Name = "search"
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = defaultMaxRequests
	}
	if s.Interval <= 0 {
		s.Interval = defaultInterval
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	if s.MinRequests == 0 {
		s.MinRequests = defaultMinRequests
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		s.FailureRatio = defaultFailureRatio
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("search circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
		// Cancelled callers say nothing about engine health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Searcher{next: next, cb: cb}
}

func (s *Searcher) Search(ctx context.Context, req *searchpager.Request) (*searchpager.SearchResult, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Search(ctx, req)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // engine errors pass through unchanged
	}

	result, _ := res.(*searchpager.SearchResult)

	return result, nil
}

// State reports the current breaker state.
func (s *Searcher) State() gobreaker.State {
	return s.cb.State()
}

var _ searchpager.Searcher = (*Searcher)(nil)
