package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"allergystats/internal/feeds/metrics"
	"allergystats/internal/feeds/models"
	"allergystats/pkg/platform/circuit"
	"allergystats/pkg/platform/sentinel"
)

const snapshotKey = "feeds"

// SnapshotCache stores whole snapshots. Get returns sentinel.ErrNotFound on
// a miss.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*models.Snapshot, error)
	Set(ctx context.Context, key string, snap *models.Snapshot, ttl time.Duration) error
}

// Loader reads one consistent Snapshot of the three feeds.
//
// Concurrent loads collapse into one upstream read. Once the breaker opens,
// failed reads are answered with the last good snapshot when one exists.
type Loader struct {
	source   Source
	cache    SnapshotCache
	cacheTTL time.Duration
	timeout  time.Duration
	breaker  *circuit.Breaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	group    singleflight.Group

	mu       sync.RWMutex
	lastGood *models.Snapshot
}

type LoaderOption func(*Loader)

// WithCache caches snapshots for ttl. A zero ttl disables caching.
func WithCache(c SnapshotCache, ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.cache = c
		l.cacheTTL = ttl
	}
}

// WithTimeout bounds one upstream read of all three feeds.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

func WithBreaker(b *circuit.Breaker) LoaderOption {
	return func(l *Loader) {
		l.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *Loader) {
		l.metrics = m
	}
}

func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
	}
}

// NewLoader builds a Loader over source.
func NewLoader(source Source, opts ...LoaderOption) (*Loader, error) {
	if source == nil {
		return nil, errors.New("feed source is required")
	}
	l := &Loader{
		source:  source,
		breaker: circuit.New("data-service"),
		logger:  slog.Default(),
		tracer:  otel.Tracer("allergystats/internal/feeds"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load returns a cached snapshot when fresh, otherwise reads the feeds.
func (l *Loader) Load(ctx context.Context) (*models.Snapshot, error) {
	ctx, span := l.tracer.Start(ctx, "feeds.Load")
	defer span.End()

	if snap := l.fromCache(ctx); snap != nil {
		span.SetAttributes(attribute.Bool("feeds.cache_hit", true))
		return snap, nil
	}

	// The shared read must not die with whichever caller started it.
	v, err, shared := l.group.Do(snapshotKey, func() (any, error) {
		return l.fetch(context.WithoutCancel(ctx))
	})
	span.SetAttributes(attribute.Bool("feeds.shared", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed load failed")
		return nil, err
	}
	return v.(*models.Snapshot), nil
}

func (l *Loader) fromCache(ctx context.Context) *models.Snapshot {
	if l.cache == nil || l.cacheTTL <= 0 {
		return nil
	}
	snap, err := l.cache.Get(ctx, snapshotKey)
	switch {
	case err == nil:
		l.metrics.IncrementCacheLookup("hit")
		return snap
	case errors.Is(err, sentinel.ErrNotFound):
		l.metrics.IncrementCacheLookup("miss")
	default:
		l.metrics.IncrementCacheLookup("error")
		l.logger.WarnContext(ctx, "snapshot cache lookup failed", "error", err)
	}
	return nil
}

func (l *Loader) fetch(ctx context.Context) (*models.Snapshot, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	snap, err := l.readAll(ctx)
	if err != nil {
		return l.failed(ctx, err)
	}

	_, change := l.breaker.RecordSuccess()
	l.logBreakerChange(ctx, change)

	snap.FetchedAt = l.now()
	l.mu.Lock()
	l.lastGood = snap
	l.mu.Unlock()

	if l.cache != nil && l.cacheTTL > 0 {
		if err := l.cache.Set(ctx, snapshotKey, snap, l.cacheTTL); err != nil {
			l.logger.WarnContext(ctx, "snapshot cache store failed", "error", err)
		}
	}
	return snap, nil
}

// readAll fans out the three feed reads; the first failure cancels the rest.
func (l *Loader) readAll(parent context.Context) (*models.Snapshot, error) {
	g, ctx := errgroup.WithContext(parent)
	snap := &models.Snapshot{}

	g.Go(func() error {
		return l.read(parent, ctx, FeedPopulation, func(ctx context.Context) (err error) {
			snap.Population, err = l.source.Population(ctx)
			return err
		})
	})
	g.Go(func() error {
		return l.read(parent, ctx, FeedCities, func(ctx context.Context) (err error) {
			snap.Cities, err = l.source.Cities(ctx)
			return err
		})
	})
	g.Go(func() error {
		return l.read(parent, ctx, FeedAllergies, func(ctx context.Context) (err error) {
			snap.AllergyNames, err = l.source.AllergyNames(ctx)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// read runs one feed read under the group context. A read cancelled because
// a sibling failed is not counted as a failure of its own feed.
func (l *Loader) read(parent, ctx context.Context, feed string, fn func(context.Context) error) error {
	ctx, span := l.tracer.Start(ctx, "feeds.read", trace.WithAttributes(attribute.String("feed", feed)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	l.metrics.ObserveFetch(feed, start)
	if err == nil {
		return nil
	}

	err = Classify(feed, err)
	if errors.Is(err, context.Canceled) && parent.Err() == nil {
		span.SetAttributes(attribute.Bool("feeds.sibling_cancelled", true))
		return err
	}
	l.metrics.IncrementFetchError(feed, string(CategoryOf(err)))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(CategoryOf(err)))
	return err
}

// failed records the failure and decides between the last good snapshot and
// the error.
func (l *Loader) failed(ctx context.Context, err error) (*models.Snapshot, error) {
	useFallback, change := l.breaker.RecordFailure()
	l.logBreakerChange(ctx, change)

	if useFallback {
		l.mu.RLock()
		stale := l.lastGood
		l.mu.RUnlock()
		if stale != nil {
			l.metrics.IncrementStaleServed()
			l.logger.WarnContext(ctx, "serving last good snapshot",
				"error", err,
				"fetched_at", stale.FetchedAt,
			)
			return stale, nil
		}
	}

	l.logger.ErrorContext(ctx, "feed load failed",
		"category", string(CategoryOf(err)),
		"error", err,
	)
	return nil, fmt.Errorf("load feeds: %w", err)
}

func (l *Loader) logBreakerChange(ctx context.Context, change circuit.StateChange) {
	switch {
	case change.Opened:
		l.metrics.SetBreakerOpen(true)
		l.logger.WarnContext(ctx, "circuit breaker opened", "breaker", l.breaker.Name())
	case change.Closed:
		l.metrics.SetBreakerOpen(false)
		l.logger.InfoContext(ctx, "circuit breaker closed", "breaker", l.breaker.Name())
	}
}
