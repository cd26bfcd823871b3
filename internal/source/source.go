// Package source fetches vehicle observations from the dealership's
// public inventory API.
//
// The API is paginated by a start offset with a fixed page size, sorted
// by inventory date, and supports a free-text search filter which the
// sweep controller uses for targeted VIN lookups.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

// DefaultPageSize is the fixed page size used by full sweeps.
const DefaultPageSize = 100

// Source produces pages of vehicle observations. Implementations must be
// safe for sequential use from one sweep; they are not required to be
// concurrency-safe.
type Source interface {
	// FetchPage returns one page of observations starting at the given
	// offset. An empty (non-nil error-free) result means the sweep has
	// walked past the last listing. search optionally filters results;
	// the sweep controller passes a VIN for targeted lookups.
	FetchPage(ctx context.Context, offset int, search string) ([]inventory.Observation, error)
}

// Config describes the HTTP client for the inventory API. It is built
// once per process and never mutated afterwards; proxy selection is per
// client, not a process-wide socket default.
type Config struct {
	// BaseURL is the full inventory endpoint URL, without query string.
	BaseURL string

	// GeoZip and GeoRadius scope the listing search. Radius 0 means
	// nationwide.
	GeoZip    string
	GeoRadius int

	PageSize  int
	UserAgent string

	// Timeout bounds each request.
	Timeout time.Duration

	// SOCKS5 is an optional host:port proxy address, typically taken
	// from the SOCKS5 environment variable.
	SOCKS5 string
}

// HTTPSource is the production Source backed by net/http.
type HTTPSource struct {
	cfg    Config
	client *http.Client
}

// New builds an HTTPSource from the given config. The SOCKS5 dialer, if
// configured, is attached to this client's transport only.
func New(cfg Config) (*HTTPSource, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("source: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("source: invalid base URL: %w", err)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SOCKS5 != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.SOCKS5, nil, &net.Dialer{Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("source: socks5 proxy %q: %w", cfg.SOCKS5, err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("source: socks5 dialer does not support context dialing")
		}
		transport.DialContext = ctxDialer.DialContext
		transport.Proxy = nil
	}

	return &HTTPSource{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// PageSize returns the configured page size.
func (s *HTTPSource) PageSize() int { return s.cfg.PageSize }

// FetchPage implements Source.
func (s *HTTPSource) FetchPage(ctx context.Context, offset int, search string) ([]inventory.Observation, error) {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("source: parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("geoRadius", strconv.Itoa(s.cfg.GeoRadius))
	if s.cfg.GeoZip != "" {
		q.Set("geoZip", s.cfg.GeoZip)
	}
	q.Set("sortBy", "inventoryDate asc")
	q.Set("start", strconv.Itoa(offset))
	q.Set("pageSize", strconv.Itoa(s.cfg.PageSize))
	if search != "" {
		q.Set("search", search)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetch page at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("source: read page at offset %d: %w", offset, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: page at offset %d: unexpected status %d", offset, resp.StatusCode)
	}

	obs, err := decodePage(body)
	if err != nil {
		return nil, fmt.Errorf("source: page at offset %d: %w", offset, err)
	}
	return obs, nil
}

// decodePage parses one API response and returns the merged, decoded
// observations.
func decodePage(body []byte) ([]inventory.Observation, error) {
	var page struct {
		Inventory []json.RawMessage `json:"inventory"`
		PageInfo  struct {
			TrackingData []json.RawMessage `json:"trackingData"`
		} `json:"pageInfo"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	obs := make([]inventory.Observation, 0, len(page.Inventory))
	for i, raw := range page.Inventory {
		// Each listing is enriched with the tracking record at the same
		// index. Listings beyond the trackingData length pass through
		// without the extra fields; that is an API quirk, not an error.
		merged := raw
		if i < len(page.PageInfo.TrackingData) {
			m, err := mergeRecords(raw, page.PageInfo.TrackingData[i])
			if err != nil {
				return nil, fmt.Errorf("merge tracking data for record %d: %w", i, err)
			}
			merged = m
		}
		obs = append(obs, decodeRecord(merged))
	}
	return obs, nil
}

// mergeRecords overlays the tracking record's top-level keys onto the
// listing record.
func mergeRecords(listing, tracking json.RawMessage) (json.RawMessage, error) {
	var base map[string]json.RawMessage
	if err := json.Unmarshal(listing, &base); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(tracking, &extra); err != nil {
		return nil, err
	}
	for k, v := range extra {
		base[k] = v
	}
	return json.Marshal(base)
}
