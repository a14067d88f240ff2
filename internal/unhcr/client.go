package unhcr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the root of the UNHCR population statistics API.
	DefaultBaseURL = "https://api.unhcr.org/population/v1"

	// DefaultTimeout bounds every upstream request.
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "unhcr-mcp/1.0"

	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 32 << 20

	// maxErrorBody caps how much of an error body is echoed into messages.
	maxErrorBody = 512
)

// ErrUnknownEndpoint is returned for endpoint names the API does not serve.
var ErrUnknownEndpoint = errors.New("unhcr: unknown endpoint")

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Endpoint Endpoint
	Code     int
	Body     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unhcr: %s: HTTP %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("unhcr: %s: HTTP %d: %s", e.Endpoint, e.Code, e.Body)
}

// Result is a decoded upstream payload or a failure object.
type Result map[string]any

// Failure object keys.
const (
	KeyError  = "error"
	KeyStatus = "status"

	StatusFailed = "error"
)

// ErrorResult builds the failure object returned in place of upstream data.
func ErrorResult(msg string) Result {
	return Result{KeyError: msg, KeyStatus: StatusFailed}
}

// IsError reports whether r is a failure object.
func (r Result) IsError() bool {
	_, hasErr := r[KeyError]
	return hasErr && r[KeyStatus] == StatusFailed
}

// Client fetches statistics from the UNHCR API.
type Client struct {
	http         *http.Client
	baseURL      string
	userAgent    string
	logger       *slog.Logger
	defaultYear  int
	yearDefaults map[Endpoint]int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the HTTP client timeout. Non-positive values are ignored
// so requests always stay bounded.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for request and failure logs.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDefaultYear sets the year requested when a query names none.
func WithDefaultYear(year int) ClientOption {
	return func(c *Client) {
		if year > 0 {
			c.defaultYear = year
		}
	}
}

// WithYearDefaults overrides the default year for individual endpoints.
func WithYearDefaults(m map[Endpoint]int) ClientOption {
	return func(c *Client) {
		for e, y := range m {
			if y > 0 {
				c.yearDefaults[e] = y
			}
		}
	}
}

// NewClient creates a Client for the public API.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL:      DefaultBaseURL,
		userAgent:    defaultUserAgent,
		logger:       slog.Default(),
		defaultYear:  DefaultYear,
		yearDefaults: make(map[Endpoint]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Timeout <= 0 {
		hc := *c.http
		hc.Timeout = DefaultTimeout
		c.http = &hc
	}
	return c
}

// DefaultYear returns the year requested from e when a query names none.
func (c *Client) DefaultYear(e Endpoint) int {
	if y, ok := c.yearDefaults[e]; ok {
		return y
	}
	return c.defaultYear
}

// Query builds the parameters for q and fetches them from e. The population
// type breakdown is only forwarded to the demographics endpoint.
func (c *Client) Query(ctx context.Context, e Endpoint, q Query) Result {
	if e != EndpointDemographics {
		q.PopulationType = false
	}
	return c.Fetch(ctx, e, BuildParams(q, c.DefaultYear(e)))
}

// Population returns stock figures for refugees, asylum-seekers, IDPs and
// other displaced groups.
func (c *Client) Population(ctx context.Context, q Query) Result {
	return c.Query(ctx, EndpointPopulation, q)
}

// Demographics returns age and sex breakdowns where available.
func (c *Client) Demographics(ctx context.Context, q Query) Result {
	return c.Query(ctx, EndpointDemographics, q)
}

// AsylumApplications returns refugee status determination applications.
func (c *Client) AsylumApplications(ctx context.Context, q Query) Result {
	return c.Query(ctx, EndpointAsylumApplications, q)
}

// AsylumDecisions returns refugee status determination decisions.
func (c *Client) AsylumDecisions(ctx context.Context, q Query) Result {
	return c.Query(ctx, EndpointAsylumDecisions, q)
}

// Solutions returns durable solutions: returns, resettlement and
// naturalisation.
func (c *Client) Solutions(ctx context.Context, q Query) Result {
	return c.Query(ctx, EndpointSolutions, q)
}

// Fetch issues a GET against e with params and returns the decoded body.
// Every failure is logged and converted into an ErrorResult.
func (c *Client) Fetch(ctx context.Context, e Endpoint, params Params) Result {
	reqID := uuid.NewString()
	log := c.logger.With("endpoint", string(e), "params", params.String(), "request_id", reqID)

	log.Info("fetching UNHCR data")
	start := time.Now()

	res, err := c.get(ctx, e, params)
	if err != nil {
		log.Error("fetching UNHCR data failed", "error", err, "elapsed", time.Since(start))
		return ErrorResult(err.Error())
	}

	log.Debug("fetched UNHCR data", "elapsed", time.Since(start))
	return res
}

// get performs the request and decodes the body.
func (c *Client) get(ctx context.Context, e Endpoint, params Params) (Result, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, string(e))
	}

	u := c.baseURL + "/" + string(e) + "/"
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("unhcr: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unhcr: %s: %w", e, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("unhcr: %s: read response: %w", e, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: e, Code: resp.StatusCode, Body: truncate(body, maxErrorBody)}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var out Result
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unhcr: %s: decode response: %w", e, err)
	}
	if out == nil {
		return nil, fmt.Errorf("unhcr: %s: decode response: body is null", e)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unhcr: %s: decode response: unexpected data after JSON object", e)
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
