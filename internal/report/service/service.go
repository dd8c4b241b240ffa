package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks SnapshotLoader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"allergystats/internal/feeds/models"
	"allergystats/internal/report/metrics"
	"allergystats/internal/stats"
	dErrors "allergystats/pkg/domain-errors"
	"allergystats/pkg/platform/sentinel"
	"allergystats/pkg/requestcontext"
)

const (
	reportPopulation = "population"
	reportAllergies  = "allergies"
)

// SnapshotLoader supplies one consistent read of the feeds.
type SnapshotLoader interface {
	Load(ctx context.Context) (*models.Snapshot, error)
}

// Service loads feeds and runs the statistics over them. Every report is
// computed from a single snapshot; nothing is kept between calls.
type Service struct {
	loader     SnapshotLoader
	policy     stats.Policy
	concurrent bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicy sets the allergy policy used when a request names no mode.
func WithPolicy(p stats.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithConcurrentReducers() Option {
	return func(s *Service) {
		s.concurrent = true
	}
}

// New constructs a Service.
func New(loader SnapshotLoader, opts ...Option) (*Service, error) {
	if loader == nil {
		return nil, errors.New("snapshot loader is required")
	}
	s := &Service{
		loader: loader,
		policy: stats.LegacyPolicy(),
		logger: slog.Default(),
		tracer: otel.Tracer("allergystats/internal/report"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PopulationStats computes the population report.
func (s *Service) PopulationStats(ctx context.Context) (*stats.PopulationStats, error) {
	ctx, span := s.tracer.Start(ctx, "report.PopulationStats")
	defer span.End()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, s.finish(ctx, span, reportPopulation, err)
	}

	start := time.Now()
	result, err := stats.ComputePopulation(snap.Population, snap.Cities)
	s.metrics.ObserveCompute(reportPopulation, time.Since(start))
	if err != nil {
		return nil, s.finish(ctx, span, reportPopulation, err)
	}

	span.SetAttributes(attribute.Int("report.cities", len(result.Cities)))
	return result, s.finish(ctx, span, reportPopulation, nil)
}

// AllergyStats computes the allergy report. An empty mode uses the
// configured default policy; an unknown mode is a bad request.
func (s *Service) AllergyStats(ctx context.Context, mode string) (*stats.AllergyStats, error) {
	ctx, span := s.tracer.Start(ctx, "report.AllergyStats")
	defer span.End()

	policy := s.policy
	if mode != "" {
		p, err := stats.PolicyForMode(mode)
		if err != nil {
			return nil, s.finish(ctx, span, reportAllergies, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		}
		policy = p
	}
	span.SetAttributes(attribute.String("report.mode", mode))

	snap, err := s.load(ctx)
	if err != nil {
		return nil, s.finish(ctx, span, reportAllergies, err)
	}

	opts := []stats.Option{stats.WithPolicy(policy)}
	if s.concurrent {
		opts = append(opts, stats.WithConcurrentReducers())
	}
	start := time.Now()
	result, err := stats.ComputeAllergies(snap.Cities, snap.AllergyNames, opts...)
	s.metrics.ObserveCompute(reportAllergies, time.Since(start))
	if err != nil {
		return nil, s.finish(ctx, span, reportAllergies, err)
	}

	span.SetAttributes(
		attribute.Int("report.cities", len(result.Cities)),
		attribute.Int("report.allergies", len(result.Stats.Developed)),
	)
	return result, s.finish(ctx, span, reportAllergies, nil)
}

// load reads the snapshot and translates feed failures into domain errors.
func (s *Service) load(ctx context.Context) (*models.Snapshot, error) {
	snap, err := s.loader.Load(ctx)
	if err != nil {
		var recErr *models.RecordError
		switch {
		case errors.As(err, &recErr):
			return nil, dErrors.Wrap(err, dErrors.CodeMalformedRecord, recErr.Error())
		case errors.Is(err, sentinel.ErrUnavailable):
			return nil, dErrors.Wrap(err, dErrors.CodeDataUnavailable, "data service unavailable")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load feeds")
		}
	}
	if !snap.FetchedAt.IsZero() {
		s.metrics.ObserveSnapshotAge(requestcontext.Now(ctx).Sub(snap.FetchedAt))
	}
	return snap, nil
}

func (s *Service) finish(ctx context.Context, span trace.Span, report string, err error) error {
	if err == nil {
		s.metrics.IncrementOutcome(report, "ok")
		return nil
	}

	code := dErrors.CodeOf(err)
	s.metrics.IncrementOutcome(report, string(code))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))

	level := slog.LevelWarn
	if code == dErrors.CodeInternal || code == dErrors.CodeDataUnavailable {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "report failed",
		"request_id", requestcontext.RequestID(ctx),
		"report", report,
		"code", string(code),
		"error", err,
	)
	return err
}
