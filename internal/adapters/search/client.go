// Package search provides the HTTP adapter for the transcript/PDF search backend.
// Clean Architecture: This is an adapter that implements ports.SearchService.
// It knows the backend's URL layout and JSON shapes but the domain layer doesn't.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
)

const (
	// DefaultBaseURL is where the backend listens in local development.
	DefaultBaseURL = "http://localhost:8000"

	videoPath    = "/search"
	documentPath = "/search-pdf"
)

// HTTPAdapter implements ports.SearchService and ports.BackendSwitcher over HTTP GET.
type HTTPAdapter struct {
	mu      sync.RWMutex
	baseURL *url.URL

	client *http.Client
	logger *slog.Logger
}

// NewHTTPAdapter creates a search adapter. A zero timeout leaves request
// lifetime to the transport defaults.
func NewHTTPAdapter(baseURL string, timeout time.Duration, logger *slog.Logger) (*HTTPAdapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &HTTPAdapter{
		baseURL: u,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// videoDTO is the /search result item format.
type videoDTO struct {
	VideoID string  `json:"video_id"`
	Start   float64 `json:"start"`
	Text    string  `json:"text"`
	Link    string  `json:"link"`
}

// documentDTO is the /search-pdf result item format.
type documentDTO struct {
	Filename string  `json:"filename"`
	Page     float64 `json:"page"`
	Link     string  `json:"link"`
}

// SearchVideos calls GET /search?query=...
func (a *HTTPAdapter) SearchVideos(ctx context.Context, query string) ([]entities.VideoHit, error) {
	raw, err := a.get(ctx, videoPath, query)
	if err != nil {
		return nil, err
	}
	items, err := decodeResults[videoDTO](raw)
	if err != nil {
		a.logger.Debug("skipped search results of unexpected shape", slog.String("endpoint", videoPath), slog.Any("error", err))
	}

	hits := make([]entities.VideoHit, 0, len(items))
	for _, it := range items {
		hits = append(hits, entities.VideoHit{
			VideoID:      it.VideoID,
			StartSeconds: clampInt(it.Start, 0),
			Caption:      it.Text,
			Link:         it.Link,
		})
	}
	return hits, nil
}

// SearchDocuments calls GET /search-pdf?query=...
func (a *HTTPAdapter) SearchDocuments(ctx context.Context, query string) ([]entities.DocHit, error) {
	raw, err := a.get(ctx, documentPath, query)
	if err != nil {
		return nil, err
	}
	items, err := decodeResults[documentDTO](raw)
	if err != nil {
		a.logger.Debug("skipped search results of unexpected shape", slog.String("endpoint", documentPath), slog.Any("error", err))
	}

	hits := make([]entities.DocHit, 0, len(items))
	for _, it := range items {
		hits = append(hits, entities.DocHit{
			Filename: it.Filename,
			Page:     clampInt(it.Page, 1),
			Link:     it.Link,
		})
	}
	return hits, nil
}

// BaseURL returns the backend address currently in use.
func (a *HTTPAdapter) BaseURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.baseURL.String()
}

// SetBaseURL points subsequent requests at a different backend.
func (a *HTTPAdapter) SetBaseURL(baseURL string) error {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.baseURL = u
	a.mu.Unlock()
	return nil
}

// get fetches path?query=q and returns the raw "results" array, nil when
// the body is valid JSON without one.
func (a *HTTPAdapter) get(ctx context.Context, path, q string) (json.RawMessage, error) {
	endpoint := a.endpoint(path, q)
	a.logger.Debug("search request", slog.String("url", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Kind: TransportFailure, Endpoint: path, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: TransportFailure, Endpoint: path, Err: fmt.Errorf("calling backend: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: TransportFailure, Endpoint: path, Err: fmt.Errorf("reading body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: TransportFailure, Endpoint: path, StatusCode: resp.StatusCode}
	}

	results, err := extractResults(body)
	if err != nil {
		return nil, &Error{Kind: MalformedResponse, Endpoint: path, Err: err}
	}
	return results, nil
}

// extractResults returns the raw "results" array, or nil when the body is
// valid JSON without one. Invalid JSON and a bare null body are errors.
func extractResults(body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, errors.New("response body is not valid JSON")
	}
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("response body is null")
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}

	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, nil
	}
	raw := bytes.TrimSpace(envelope.Results)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, nil
	}
	return raw, nil
}

func (a *HTTPAdapter) endpoint(path, q string) string {
	a.mu.RLock()
	u := *a.baseURL
	a.mu.RUnlock()

	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = url.Values{"query": {q}}.Encode()
	return u.String()
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend URL %q: missing host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// decodeResults decodes a results array item by item. Items of the wrong
// shape are skipped; the first decode error is returned with the rest.
func decodeResults[T any](raw json.RawMessage) ([]T, error) {
	if raw == nil {
		return []T{}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []T{}, err
	}

	var firstErr error
	items := make([]T, 0, len(elems))
	for i, elem := range elems {
		if bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
			continue
		}
		var item T
		if err := json.Unmarshal(elem, &item); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("result %d: %w", i, err)
			}
			continue
		}
		items = append(items, item)
	}
	return items, firstErr
}

// clampInt truncates a JSON number to an int no smaller than lo.
func clampInt(f float64, lo int) int {
	if math.IsNaN(f) || f < float64(lo) {
		return lo
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}
