// Package edgar provides a client for the SEC EDGAR public data API:
// the company_tickers file and per-company submissions. All requests share
// one limiter honoring the SEC's 10 requests/second policy.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defines the EDGAR operations used by company enrichment.
type Client interface {
	// CompanyTickers returns the full public-company ticker file,
	// roughly 13k entries. Cached for the client's lifetime.
	CompanyTickers(ctx context.Context) ([]TickerEntry, error)
	// Submissions fetches filing metadata for one company by CIK.
	Submissions(ctx context.Context, cik int) (*Submissions, error)
}

// TickerEntry is one row of the company_tickers file.
type TickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Submissions is the subset of the submissions document enrichment reads.
type Submissions struct {
	Name                 string    `json:"name"`
	SIC                  string    `json:"sic"`
	SICDescription       string    `json:"sicDescription"`
	StateOfIncorporation string    `json:"stateOfIncorporation"`
	Addresses            Addresses `json:"addresses"`
}

// Addresses holds the business address block of a submissions document.
type Addresses struct {
	Business Address `json:"business"`
}

// Address is a single EDGAR address record.
type Address struct {
	StateOrCountry string `json:"stateOrCountry"`
}

// State returns the best available state code: incorporation state first,
// business address as fallback.
func (s *Submissions) State() string {
	if s.StateOfIncorporation != "" {
		return s.StateOfIncorporation
	}
	return s.Addresses.Business.StateOrCountry
}

// Option configures the EDGAR client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL for www.sec.gov (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithDataBaseURL sets a custom base URL for data.sec.gov (for testing).
func WithDataBaseURL(url string) Option {
	return func(c *httpClient) {
		c.dataBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	userAgent   string
	baseURL     string
	dataBaseURL string
	http        *http.Client
	limiter     *rate.Limiter

	mu      sync.Mutex
	tickers []TickerEntry
}

// NewClient creates an EDGAR client. The SEC requires a descriptive
// User-Agent with a contact address on every request.
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		userAgent:   userAgent,
		baseURL:     "https://www.sec.gov",
		dataBaseURL: "https://data.sec.gov",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CompanyTickers(ctx context.Context) ([]TickerEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tickers != nil {
		return c.tickers, nil
	}

	body, err := c.get(ctx, c.baseURL+"/files/company_tickers.json")
	if err != nil {
		return nil, eris.Wrap(err, "edgar: fetch company tickers")
	}

	// The file is a JSON object keyed by row index, not an array.
	var raw map[string]TickerEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "edgar: parse company tickers")
	}

	entries := make([]TickerEntry, 0, len(raw))
	for _, entry := range raw {
		entries = append(entries, entry)
	}
	c.tickers = entries

	zap.L().Info("edgar: company tickers loaded", zap.Int("count", len(entries)))
	return entries, nil
}

func (c *httpClient) Submissions(ctx context.Context, cik int) (*Submissions, error) {
	url := fmt.Sprintf("%s/submissions/CIK%010d.json", c.dataBaseURL, cik)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: fetch submissions cik=%d", cik)
	}

	var subs Submissions
	if err := json.Unmarshal(body, &subs); err != nil {
		return nil, eris.Wrapf(err, "edgar: parse submissions cik=%d", cik)
	}
	return &subs, nil
}

func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "edgar: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("edgar: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
