package feeds

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"allergystats/internal/feeds/cache"
	"allergystats/internal/feeds/metrics"
	"allergystats/internal/feeds/mocks"
	"allergystats/internal/feeds/models"
	"allergystats/pkg/platform/circuit"
	"allergystats/pkg/platform/sentinel"
)

// =============================================================================
// Loader Test Suite
// =============================================================================
// The loader owns caching, request collapsing and the stale fallback; the
// source is mocked so each path can be forced deterministically.

type LoaderSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	source  *mocks.MockSource
	metrics *metrics.Metrics
	now     time.Time
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockSource(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
}

func (s *LoaderSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *LoaderSuite) newLoader(opts ...LoaderOption) *Loader {
	base := []LoaderOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	}
	l, err := NewLoader(s.source, append(base, opts...)...)
	s.Require().NoError(err)
	return l
}

func (s *LoaderSuite) expectFeeds(times int) {
	s.source.EXPECT().Population(gomock.Any()).Return(300, nil).Times(times)
	s.source.EXPECT().Cities(gomock.Any()).Return([]models.CityRecord{{City: "Springfield", Population: 300}}, nil).Times(times)
	s.source.EXPECT().AllergyNames(gomock.Any()).Return([]string{"pollen"}, nil).Times(times)
}

func (s *LoaderSuite) TestNewRequiresSource() {
	_, err := NewLoader(nil)
	s.Error(err)
}

func (s *LoaderSuite) TestLoadReadsAllFeeds() {
	s.expectFeeds(1)

	snap, err := s.newLoader().Load(context.Background())
	s.Require().NoError(err)
	s.Equal(300, snap.Population)
	s.Len(snap.Cities, 1)
	s.Equal([]string{"pollen"}, snap.AllergyNames)
	s.Equal(s.now, snap.FetchedAt)
}

func (s *LoaderSuite) TestCachedSnapshotSkipsSource() {
	s.expectFeeds(1)
	l := s.newLoader(WithCache(cache.NewMemoryCache(time.Minute), time.Minute))

	first, err := l.Load(context.Background())
	s.Require().NoError(err)
	second, err := l.Load(context.Background())
	s.Require().NoError(err)

	s.Same(first, second)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.CacheLookups.WithLabelValues("miss")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.CacheLookups.WithLabelValues("hit")))
}

func (s *LoaderSuite) TestZeroTTLDisablesCache() {
	s.expectFeeds(2)
	l := s.newLoader(WithCache(cache.NewMemoryCache(time.Minute), 0))

	_, err := l.Load(context.Background())
	s.Require().NoError(err)
	_, err = l.Load(context.Background())
	s.Require().NoError(err)
}

func (s *LoaderSuite) TestFailureIsUnavailable() {
	s.source.EXPECT().Population(gomock.Any()).Return(0, errors.New("connection refused"))
	s.source.EXPECT().Cities(gomock.Any()).Return(nil, nil).AnyTimes()
	s.source.EXPECT().AllergyNames(gomock.Any()).Return(nil, nil).AnyTimes()

	_, err := s.newLoader().Load(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal(ErrorOutage, CategoryOf(err))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.FetchErrors.WithLabelValues(FeedPopulation, "outage")))
}

func (s *LoaderSuite) TestCancelledSiblingsAreNotCountedAsFailures() {
	waitForCancel := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	s.source.EXPECT().Population(gomock.Any()).DoAndReturn(func(ctx context.Context) (int, error) {
		return 0, waitForCancel(ctx)
	})
	s.source.EXPECT().AllergyNames(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]string, error) {
		return nil, waitForCancel(ctx)
	})
	s.source.EXPECT().Cities(gomock.Any()).Return(nil, NewFeedError(ErrorBadStatus, FeedCities, "unexpected status 500", nil))

	_, err := s.newLoader().Load(context.Background())
	s.Require().Error(err)
	s.Equal(ErrorBadStatus, CategoryOf(err))

	s.Equal(1, promtest.CollectAndCount(s.metrics.FetchErrors))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.FetchErrors.WithLabelValues(FeedCities, "bad_status")))
	s.Equal(0.0, promtest.ToFloat64(s.metrics.FetchErrors.WithLabelValues(FeedPopulation, "outage")))
}

func (s *LoaderSuite) TestOpenBreakerServesLastGoodSnapshot() {
	l := s.newLoader(WithBreaker(circuit.New("test", circuit.WithFailureThreshold(1))))

	s.expectFeeds(1)
	good, err := l.Load(context.Background())
	s.Require().NoError(err)

	s.source.EXPECT().Population(gomock.Any()).Return(0, NewFeedError(ErrorBadStatus, FeedPopulation, "status 500", nil))
	s.source.EXPECT().Cities(gomock.Any()).Return(nil, nil).AnyTimes()
	s.source.EXPECT().AllergyNames(gomock.Any()).Return(nil, nil).AnyTimes()

	stale, err := l.Load(context.Background())
	s.Require().NoError(err)
	s.Same(good, stale)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.BreakerOpen))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.StaleServed))
}

func (s *LoaderSuite) TestOpenBreakerWithoutSnapshotFails() {
	l := s.newLoader(WithBreaker(circuit.New("test", circuit.WithFailureThreshold(1))))

	s.source.EXPECT().Population(gomock.Any()).Return(0, errors.New("boom"))
	s.source.EXPECT().Cities(gomock.Any()).Return(nil, nil).AnyTimes()
	s.source.EXPECT().AllergyNames(gomock.Any()).Return(nil, nil).AnyTimes()

	_, err := l.Load(context.Background())
	s.Error(err)
}

func (s *LoaderSuite) TestConcurrentLoadsShareOneRead() {
	release := make(chan struct{})
	s.source.EXPECT().Population(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
		<-release
		return 300, nil
	}).Times(1)
	s.source.EXPECT().Cities(gomock.Any()).Return([]models.CityRecord{}, nil).Times(1)
	s.source.EXPECT().AllergyNames(gomock.Any()).Return([]string{}, nil).Times(1)
	l := s.newLoader()

	var wg sync.WaitGroup
	results := make([]*models.Snapshot, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := l.Load(context.Background())
			s.NoError(err)
			results[i] = snap
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		s.Same(results[0], r)
	}
}

func (s *LoaderSuite) TestTimeoutBoundsRead() {
	s.source.EXPECT().Population(gomock.Any()).DoAndReturn(func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	s.source.EXPECT().Cities(gomock.Any()).Return(nil, nil).AnyTimes()
	s.source.EXPECT().AllergyNames(gomock.Any()).Return(nil, nil).AnyTimes()

	_, err := s.newLoader(WithTimeout(20 * time.Millisecond)).Load(context.Background())
	s.Require().Error(err)
	s.Equal(ErrorTimeout, CategoryOf(err))
}
