package movies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ruipcf/reelbase/app/observability/metrics"
)

var _ MovieService = (*MovieServiceImpl)(nil)

// MovieService defines the business logic contract for the lookup proxy.
type MovieService interface {
	SearchMovies(ctx context.Context, query string) ([]byte, error)
	GetMovieDetails(ctx context.Context, movieID string) ([]byte, error)
}

// MovieServiceImpl forwards lookups to the upstream client, recording
// metrics and classifying failures for the logs.
type MovieServiceImpl struct {
	logger *slog.Logger
	client UpstreamClient
}

func NewMovieService(client UpstreamClient, logger *slog.Logger) *MovieServiceImpl {
	return &MovieServiceImpl{
		logger: logger,
		client: client,
	}
}

func (s *MovieServiceImpl) SearchMovies(ctx context.Context, query string) ([]byte, error) {
	ctx, span := otel.Tracer("MovieService").Start(ctx, "SearchMovies", trace.WithAttributes(
		attribute.String("movies.query", query),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "SearchMovies"), slog.String("query", query))
	body, err := s.observe(ctx, "search", func() ([]byte, error) {
		return s.client.SearchMovies(ctx, query)
	})
	if err != nil {
		l.ErrorContext(ctx, "Upstream search failed",
			slog.String("cause", classify(err)),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream search failed")
		return nil, fmt.Errorf("error searching movies: %w", err)
	}

	span.SetStatus(codes.Ok, "search completed")
	return body, nil
}

func (s *MovieServiceImpl) GetMovieDetails(ctx context.Context, movieID string) ([]byte, error) {
	ctx, span := otel.Tracer("MovieService").Start(ctx, "GetMovieDetails", trace.WithAttributes(
		attribute.String("movies.id", movieID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GetMovieDetails"), slog.String("movieID", movieID))
	body, err := s.observe(ctx, "details", func() ([]byte, error) {
		return s.client.GetMovieDetails(ctx, movieID)
	})
	if err != nil {
		l.ErrorContext(ctx, "Upstream detail lookup failed",
			slog.String("cause", classify(err)),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream detail lookup failed")
		return nil, fmt.Errorf("error fetching movie details: %w", err)
	}

	span.SetStatus(codes.Ok, "details fetched")
	return body, nil
}

// observe wraps an upstream call with the request/error counters and the
// duration histogram.
func (s *MovieServiceImpl) observe(ctx context.Context, op string, call func() ([]byte, error)) ([]byte, error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("operation", op))

	start := time.Now()
	body, err := call()
	m.UpstreamRequestsTotal.Add(ctx, 1, attrs)
	m.UpstreamRequestDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.UpstreamErrorsTotal.Add(ctx, 1, attrs)
	}
	return body, err
}

// classify names the failure class for logging without changing the
// external contract.
func classify(err error) string {
	var statusErr *UpstreamStatusError
	switch {
	case errors.Is(err, ErrUpstreamUnreachable):
		return "unreachable"
	case errors.As(err, &statusErr):
		return "error_status"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "unknown"
	}
}
