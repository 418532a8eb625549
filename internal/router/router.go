package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ruipcf/reelbase/internal/api/account"
	"github.com/ruipcf/reelbase/internal/api/movies"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AccountHandler *account.AccountHandler
	MovieHandler   *movies.MovieHandler
	Authenticate   func(http.Handler) http.Handler
	RequireAdmin   func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied *before* mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/users", func(r chi.Router) {
		// --- Public account routes ---
		r.Post("/create", cfg.AccountHandler.Register)
		r.Post("/login", cfg.AccountHandler.Login)

		// --- Self-service profile (token-scoped, never by id) ---
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)
			r.Get("/profile", cfg.AccountHandler.GetProfile)
			r.Patch("/profile", cfg.AccountHandler.UpdateProfile)
			r.Delete("/profile", cfg.AccountHandler.DeleteProfile)
		})

		// --- Administrative collection ---
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)
			r.Use(cfg.RequireAdmin)
			r.Get("/", cfg.AccountHandler.ListUsers)
			r.Post("/", cfg.AccountHandler.CreateUser)
			r.Get("/{userID}", cfg.AccountHandler.GetUser)
			r.Patch("/{userID}", cfg.AccountHandler.UpdateUser)
			r.Put("/{userID}", cfg.AccountHandler.UpdateUser)
			r.Delete("/{userID}", cfg.AccountHandler.DeleteUser)
		})
	})

	// --- Movie lookup proxy (any authenticated user) ---
	r.Group(func(r chi.Router) {
		r.Use(cfg.Authenticate)
		r.Get("/search_movies", cfg.MovieHandler.SearchMovies)
		r.Get("/get_movie_details/{movieID}", cfg.MovieHandler.GetMovieDetails)
	})

	return r
}
