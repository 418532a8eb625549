package movies

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockMovieService is a mock implementation of the MovieService interface
type MockMovieService struct {
	mock.Mock
}

func (m *MockMovieService) SearchMovies(ctx context.Context, query string) ([]byte, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockMovieService) GetMovieDetails(ctx context.Context, movieID string) ([]byte, error) {
	args := m.Called(ctx, movieID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Test cases for MovieHandler
func TestSearchMoviesHandler(t *testing.T) {
	mockService := new(MockMovieService)
	logger := slog.Default()
	handler := NewMovieHandler(mockService, logger)

	// Test case: the upstream payload is written through byte-for-byte
	t.Run("Success", func(t *testing.T) {
		payload := `{"results": [{"id": "tt0133093", "title": "The Matrix"}]}`

		req := httptest.NewRequest(http.MethodGet, "/search_movies?query=The+Matrix", nil)
		w := httptest.NewRecorder()

		mockService.On("SearchMovies", mock.Anything, "The Matrix").
			Return([]byte(payload), nil).Once()

		handler.SearchMovies(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, payload, w.Body.String())

		mockService.AssertExpectations(t)
	})

	// Test case: every failure collapses to the same generic 500, regardless
	// of what went wrong upstream
	t.Run("UpstreamFailureIsGeneric", func(t *testing.T) {
		for _, upstreamErr := range []error{
			ErrUpstreamUnreachable,
			ErrMalformedPayload,
			&UpstreamStatusError{StatusCode: http.StatusTooManyRequests},
		} {
			req := httptest.NewRequest(http.MethodGet, "/search_movies?query=dune", nil)
			w := httptest.NewRecorder()

			mockService.On("SearchMovies", mock.Anything, "dune").
				Return(nil, upstreamErr).Once()

			handler.SearchMovies(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			assert.NoError(t, err)
			assert.Equal(t, "An error occurred during the API request", response["error"])
			// No upstream detail may leak into the response
			assert.NotContains(t, w.Body.String(), "429")
		}
		mockService.AssertExpectations(t)
	})

	// Test case: an empty query is still forwarded; the provider decides
	t.Run("EmptyQuery", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/search_movies", nil)
		w := httptest.NewRecorder()

		mockService.On("SearchMovies", mock.Anything, "").
			Return([]byte(`{"results": []}`), nil).Once()

		handler.SearchMovies(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestGetMovieDetailsHandler(t *testing.T) {
	mockService := new(MockMovieService)
	logger := slog.Default()
	handler := NewMovieHandler(mockService, logger)

	newRouter := func() http.Handler {
		r := chi.NewRouter()
		r.Get("/get_movie_details/{movieID}", handler.GetMovieDetails)
		return r
	}

	t.Run("Success", func(t *testing.T) {
		payload := `{"results": {"id": "tt0133093", "titleText": {"text": "The Matrix"}}}`

		req := httptest.NewRequest(http.MethodGet, "/get_movie_details/tt0133093", nil)
		w := httptest.NewRecorder()

		mockService.On("GetMovieDetails", mock.Anything, "tt0133093").
			Return([]byte(payload), nil).Once()

		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, payload, w.Body.String())

		mockService.AssertExpectations(t)
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/get_movie_details/tt0133093", nil)
		w := httptest.NewRecorder()

		mockService.On("GetMovieDetails", mock.Anything, "tt0133093").
			Return(nil, &UpstreamStatusError{StatusCode: http.StatusNotFound}).Once()

		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "An error occurred during the API request", response["error"])

		mockService.AssertExpectations(t)
	})
}
