package movies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruipcf/reelbase/config"
)

var _ UpstreamClient = (*Client)(nil)

// UpstreamClient is the outbound contract to the movie-metadata provider.
type UpstreamClient interface {
	SearchMovies(ctx context.Context, query string) ([]byte, error)
	GetMovieDetails(ctx context.Context, movieID string) ([]byte, error)
}

// Client talks to the upstream movie-metadata provider. The API key is
// injected at construction and held privately; it never appears in logs or
// responses.
type Client struct {
	baseURL    string
	hostHeader string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg config.MoviesConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		hostHeader: cfg.HostHeader,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SearchMovies forwards a free-text query to the provider's search endpoint
// and returns the response body verbatim.
func (c *Client) SearchMovies(ctx context.Context, query string) ([]byte, error) {
	return c.get(ctx, c.baseURL+"/search/"+url.PathEscape(query))
}

// GetMovieDetails fetches a single movie's record by the provider's ID and
// returns the response body verbatim.
func (c *Client) GetMovieDetails(ctx context.Context, movieID string) ([]byte, error) {
	return c.get(ctx, c.baseURL+"/"+url.PathEscape(movieID))
}

func (c *Client) get(ctx context.Context, apiURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Host", c.hostHeader)
	req.Header.Set("X-RapidAPI-Key", c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnreachable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %s", ErrUpstreamUnreachable, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UpstreamStatusError{StatusCode: res.StatusCode}
	}

	// The body is passed through unmodified, so at least make sure it is
	// JSON before handing it to callers.
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrMalformedPayload)
	}

	return body, nil
}
