package movies

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ruipcf/reelbase/internal/api"
)

// genericUpstreamError is the only failure detail callers ever see; the
// specific cause is logged server-side.
const genericUpstreamError = "An error occurred during the API request"

type MovieHandler struct {
	movieService MovieService
	logger       *slog.Logger
}

func NewMovieHandler(movieService MovieService, logger *slog.Logger) *MovieHandler {
	return &MovieHandler{
		movieService: movieService,
		logger:       logger,
	}
}

// SearchMovies handles GET /search_movies/?query= and passes the upstream
// body through verbatim.
func (h *MovieHandler) SearchMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "SearchMovies"))

	query := r.URL.Query().Get("query")

	body, err := h.movieService.SearchMovies(ctx, query)
	if err != nil {
		l.ErrorContext(ctx, "Movie search failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, genericUpstreamError)
		return
	}

	api.WriteRawJSONResponse(w, r, http.StatusOK, body)
}

// GetMovieDetails handles GET /get_movie_details/{movieID}.
func (h *MovieHandler) GetMovieDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetMovieDetails"))

	movieID := chi.URLParam(r, "movieID")

	body, err := h.movieService.GetMovieDetails(ctx, movieID)
	if err != nil {
		l.ErrorContext(ctx, "Movie detail lookup failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, genericUpstreamError)
		return
	}

	api.WriteRawJSONResponse(w, r, http.StatusOK, body)
}
