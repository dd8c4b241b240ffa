package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"allergystats/internal/feeds"
	"allergystats/internal/feeds/models"
	"allergystats/internal/report/metrics"
	"allergystats/internal/report/service/mocks"
	"allergystats/internal/stats"
	dErrors "allergystats/pkg/domain-errors"
	"allergystats/pkg/requestcontext"
)

// =============================================================================
// Report Service Test Suite
// =============================================================================
// The service is thin orchestration: these tests pin the error translation
// from feed failures to domain codes and the mode to policy resolution.

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	loader  *mocks.MockSnapshotLoader
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.loader = mocks.NewMockSnapshotLoader(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	var err error
	s.service, err = New(s.loader,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func snapshot() *models.Snapshot {
	return &models.Snapshot{
		Population: 400,
		Cities: []models.CityRecord{
			{City: "Springfield", State: "IL", Population: 100, Allergies: []models.AllergyRecord{
				{Allergy: "dust", Type: "environmental", Developed: []float64{1, 2}},
			}},
			{City: "Shelbyville", State: "IL", Population: 300, Allergies: []models.AllergyRecord{}},
		},
		AllergyNames: []string{"dust"},
		FetchedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ServiceSuite) TestPopulationStats() {
	s.loader.EXPECT().Load(gomock.Any()).Return(snapshot(), nil)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 9, 0, 30, 0, time.UTC))

	got, err := s.service.PopulationStats(ctx)
	s.Require().NoError(err)
	s.Equal("Shelbyville", got.Max.City)
	s.Equal(200.0, got.Mean)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ReportOutcome.WithLabelValues("population", "ok")))
}

func (s *ServiceSuite) TestAllergyStatsModes() {
	s.Run("default policy is legacy", func() {
		s.loader.EXPECT().Load(gomock.Any()).Return(snapshot(), nil)
		got, err := s.service.AllergyStats(context.Background(), "")
		s.Require().NoError(err)
		s.Equal(&stats.MinCount{City: "Shelbyville", Min: 0}, got.Stats.Developed[0].Min.Total)
		s.Equal(stats.Value(1), got.Stats.Developed[0].Mean.Total)
	})

	s.Run("scoped mode", func() {
		s.loader.EXPECT().Load(gomock.Any()).Return(snapshot(), nil)
		got, err := s.service.AllergyStats(context.Background(), stats.ModeScoped)
		s.Require().NoError(err)
		s.Equal(&stats.MinCount{City: "Springfield", Min: 2}, got.Stats.Developed[0].Min.Total)
		s.Equal(stats.Value(2), got.Stats.Developed[0].Mean.Total)
	})

	s.Run("unknown mode is rejected before loading", func() {
		_, err := s.service.AllergyStats(context.Background(), "weighted")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("configured default applies", func() {
		svc, err := New(s.loader, WithPolicy(stats.ScopedPolicy()), WithConcurrentReducers())
		s.Require().NoError(err)
		s.loader.EXPECT().Load(gomock.Any()).Return(snapshot(), nil)

		got, err := svc.AllergyStats(context.Background(), "")
		s.Require().NoError(err)
		s.Equal(stats.Value(2), got.Stats.Developed[0].Mean.Total)
	})
}

func (s *ServiceSuite) TestLoadErrorsTranslate() {
	tests := []struct {
		name string
		err  error
		code dErrors.Code
	}{
		{
			name: "outage",
			err:  fmt.Errorf("load feeds: %w", feeds.NewFeedError(feeds.ErrorOutage, feeds.FeedCities, "source unreachable", nil)),
			code: dErrors.CodeDataUnavailable,
		},
		{
			name: "malformed record",
			err: feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedCities, "invalid city record",
				&models.RecordError{City: "Springfield", Reason: "population must not be negative"}),
			code: dErrors.CodeMalformedRecord,
		},
		{
			name: "unexpected",
			err:  fmt.Errorf("boom"),
			code: dErrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.loader.EXPECT().Load(gomock.Any()).Return(nil, tt.err)
			_, err := s.service.PopulationStats(context.Background())
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
		})
	}
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ReportOutcome.WithLabelValues("population", "data_unavailable")))
}

func (s *ServiceSuite) TestEmptyCitiesIsInsufficientData() {
	snap := snapshot()
	snap.Cities = nil
	s.loader.EXPECT().Load(gomock.Any()).Return(snap, nil).Times(2)

	_, err := s.service.PopulationStats(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientData))

	_, err = s.service.AllergyStats(context.Background(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientData))
}
