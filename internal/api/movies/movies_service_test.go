package movies

import (
	"context"
	"errors"
	"os"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ruipcf/reelbase/app/observability/metrics"
)

// MockUpstreamClient is a mock implementation of the UpstreamClient interface
type MockUpstreamClient struct {
	mock.Mock
}

func (m *MockUpstreamClient) SearchMovies(ctx context.Context, query string) ([]byte, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockUpstreamClient) GetMovieDetails(ctx context.Context, movieID string) ([]byte, error) {
	args := m.Called(ctx, movieID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// The service records upstream counters; initialize the instruments against
// the no-op global meter provider.
func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

// Test cases for MovieService
func TestSearchMoviesService(t *testing.T) {
	mockClient := new(MockUpstreamClient)
	logger := slog.Default()
	service := NewMovieService(mockClient, logger)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		payload := []byte(`{"results": []}`)

		mockClient.On("SearchMovies", mock.Anything, "dune").Return(payload, nil).Once()

		body, err := service.SearchMovies(ctx, "dune")

		assert.NoError(t, err)
		assert.Equal(t, payload, body)
		mockClient.AssertExpectations(t)
	})

	// Test case: the typed upstream error survives the service wrapping
	t.Run("UpstreamStatusError", func(t *testing.T) {
		ctx := context.Background()

		mockClient.On("SearchMovies", mock.Anything, "dune").
			Return(nil, &UpstreamStatusError{StatusCode: 503}).Once()

		body, err := service.SearchMovies(ctx, "dune")

		assert.Nil(t, body)
		var statusErr *UpstreamStatusError
		assert.ErrorAs(t, err, &statusErr)
		assert.Equal(t, 503, statusErr.StatusCode)
		mockClient.AssertExpectations(t)
	})

	t.Run("Unreachable", func(t *testing.T) {
		ctx := context.Background()

		mockClient.On("SearchMovies", mock.Anything, "dune").
			Return(nil, ErrUpstreamUnreachable).Once()

		body, err := service.SearchMovies(ctx, "dune")

		assert.Nil(t, body)
		assert.ErrorIs(t, err, ErrUpstreamUnreachable)
		mockClient.AssertExpectations(t)
	})
}

func TestGetMovieDetailsService(t *testing.T) {
	mockClient := new(MockUpstreamClient)
	logger := slog.Default()
	service := NewMovieService(mockClient, logger)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		payload := []byte(`{"results": {"id": "tt0133093"}}`)

		mockClient.On("GetMovieDetails", mock.Anything, "tt0133093").Return(payload, nil).Once()

		body, err := service.GetMovieDetails(ctx, "tt0133093")

		assert.NoError(t, err)
		assert.Equal(t, payload, body)
		mockClient.AssertExpectations(t)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		ctx := context.Background()

		mockClient.On("GetMovieDetails", mock.Anything, "tt0133093").
			Return(nil, ErrMalformedPayload).Once()

		body, err := service.GetMovieDetails(ctx, "tt0133093")

		assert.Nil(t, body)
		assert.ErrorIs(t, err, ErrMalformedPayload)
		mockClient.AssertExpectations(t)
	})
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "unreachable", classify(ErrUpstreamUnreachable))
	assert.Equal(t, "error_status", classify(&UpstreamStatusError{StatusCode: 500}))
	assert.Equal(t, "malformed_payload", classify(ErrMalformedPayload))
	assert.Equal(t, "unknown", classify(errors.New("boom")))
}
