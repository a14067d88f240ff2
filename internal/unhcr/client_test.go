package unhcr

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream records the requests it receives and answers with a fixed status
// and body.
type upstream struct {
	mu       sync.Mutex
	requests []*http.Request
	queries  []url.Values

	status int
	body   string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, r)
	u.queries = append(u.queries, r.URL.Query())
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(u.status)
	_, _ = w.Write([]byte(u.body))
}

func (u *upstream) last(t *testing.T) (*http.Request, url.Values) {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.requests, "upstream received no requests")
	n := len(u.requests) - 1
	return u.requests[n], u.queries[n]
}

func newUpstream(t *testing.T, status int, body string) (*upstream, *Client) {
	t.Helper()
	up := &upstream{status: status, body: body}
	ts := httptest.NewServer(up)
	t.Cleanup(ts.Close)

	return up, NewClient(WithBaseURL(ts.URL), WithLogger(discardLogger()))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

const populationBody = `{"items":[{"year":2023,"coo":"SYR","coa":"DEU","refugees":100}]}`

// TestPopulation_PassthroughBody verifies the upstream body is returned unmodified.
func TestPopulation_PassthroughBody(t *testing.T) {
	_, c := newUpstream(t, http.StatusOK, populationBody)

	res := c.Population(context.Background(), Query{Origin: "SYR", Asylum: "DEU", Years: "2023"})
	require.False(t, res.IsError(), "unexpected failure: %v", res)

	got, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, populationBody, string(got))
}

// TestFetch_PreservesNumbers verifies large and fractional numbers survive decoding.
func TestFetch_PreservesNumbers(t *testing.T) {
	body := `{"items":[{"refugees":12345678901234567,"share":0.1}]}`
	_, c := newUpstream(t, http.StatusOK, body)

	res := c.Population(context.Background(), Query{})

	got, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

// TestFetch_RequestShape verifies the URL, query and headers sent upstream.
func TestFetch_RequestShape(t *testing.T) {
	up, c := newUpstream(t, http.StatusOK, `{"items":[]}`)

	c.Query(context.Background(), EndpointAsylumApplications, Query{
		Origin:          "SYR,AFG",
		Years:           "2022,2023",
		OriginBreakdown: true,
	})

	req, q := up.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/asylum-applications/", req.URL.Path)
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, defaultUserAgent, req.Header.Get("User-Agent"))

	assert.Equal(t, url.Values{
		"cf_type": {"ISO"},
		"coo":     {"SYR,AFG"},
		"coo_all": {"true"},
		"year[]":  {"2022", "2023"},
	}, q)
}

// TestAsylumDecisions_DefaultYearScenario verifies a decisions query without a year.
func TestAsylumDecisions_DefaultYearScenario(t *testing.T) {
	up, c := newUpstream(t, http.StatusOK, `{"items":[]}`)

	c.AsylumDecisions(context.Background(), Query{Origin: "SYR", Asylum: "DEU"})

	req, q := up.last(t)
	assert.Equal(t, "/asylum-decisions/", req.URL.Path)
	assert.Equal(t, url.Values{
		"cf_type": {"ISO"},
		"coo":     {"SYR"},
		"coa":     {"DEU"},
		"year[]":  {"2024"},
	}, q)
	assert.NotContains(t, q, "coo_all")
	assert.NotContains(t, q, "coa_all")
}

// TestPopTypeOnlyForDemographics verifies pop_type is dropped for other endpoints.
func TestPopTypeOnlyForDemographics(t *testing.T) {
	up, c := newUpstream(t, http.StatusOK, `{"items":[]}`)
	ctx := context.Background()
	q := Query{PopulationType: true}

	c.Demographics(ctx, q)
	_, params := up.last(t)
	assert.Equal(t, "true", params.Get("pop_type"))

	calls := []func(context.Context, Query) Result{
		c.Population, c.AsylumApplications, c.AsylumDecisions, c.Solutions,
	}
	for _, call := range calls {
		call(ctx, q)
		_, params := up.last(t)
		assert.NotContains(t, params, "pop_type")
	}
}

// TestDefaultYear_Overrides verifies global and per-endpoint default years.
func TestDefaultYear_Overrides(t *testing.T) {
	up := &upstream{status: http.StatusOK, body: `{"items":[]}`}
	ts := httptest.NewServer(up)
	defer ts.Close()

	c := NewClient(
		WithBaseURL(ts.URL),
		WithLogger(discardLogger()),
		WithDefaultYear(2025),
		WithYearDefaults(map[Endpoint]int{EndpointSolutions: 2023}),
	)

	assert.Equal(t, 2025, c.DefaultYear(EndpointPopulation))
	assert.Equal(t, 2023, c.DefaultYear(EndpointSolutions))

	c.Solutions(context.Background(), Query{})
	_, q := up.last(t)
	assert.Equal(t, "2023", q.Get("year[]"))

	c.Population(context.Background(), Query{})
	_, q = up.last(t)
	assert.Equal(t, "2025", q.Get("year[]"))
}

// TestFetch_Failures verifies bad statuses and bodies become failure objects.
func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"service unavailable", http.StatusServiceUnavailable, "maintenance", "HTTP 503: maintenance"},
		{"not found", http.StatusNotFound, "", "HTTP 404"},
		{"malformed json", http.StatusOK, `{"items":[`, "decode response"},
		{"json array", http.StatusOK, `[1,2,3]`, "decode response"},
		{"json null", http.StatusOK, `null`, "body is null"},
		{"trailing garbage", http.StatusOK, `{"items":[]} <html>oops</html>`, "unexpected data"},
		{"two objects", http.StatusOK, `{"items":[]}{"items":[]}`, "unexpected data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newUpstream(t, tt.status, tt.body)

			var res Result
			require.NotPanics(t, func() {
				res = c.Population(context.Background(), Query{})
			})

			assert.True(t, res.IsError())
			assert.Equal(t, "error", res["status"])
			assert.Contains(t, res["error"], tt.wantMsg)
		})
	}
}

// TestFetch_TransportFailure verifies a refused connection becomes a failure object.
func TestFetch_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c := NewClient(WithBaseURL(addr), WithLogger(discardLogger()))
	res := c.Solutions(context.Background(), Query{})

	assert.True(t, res.IsError())
	assert.Contains(t, res["error"], "unhcr: solutions")
}

// TestFetch_Timeout verifies a hung upstream is cut off by the client timeout.
func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := NewClient(WithBaseURL(ts.URL), WithTimeout(50*time.Millisecond), WithLogger(discardLogger()))

	start := time.Now()
	res := c.Population(context.Background(), Query{})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, res.IsError())
}

// TestFetch_ContextCanceled verifies a cancelled context aborts the request.
func TestFetch_ContextCanceled(t *testing.T) {
	_, c := newUpstream(t, http.StatusOK, populationBody)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Population(ctx, Query{})
	assert.True(t, res.IsError())
	assert.Contains(t, res["error"], "context canceled")
}

// TestFetch_UnknownEndpoint verifies unknown endpoints never reach the network.
func TestFetch_UnknownEndpoint(t *testing.T) {
	up, c := newUpstream(t, http.StatusOK, populationBody)

	res := c.Query(context.Background(), Endpoint("refugees"), Query{})
	assert.True(t, res.IsError())
	assert.Contains(t, res["error"], "unknown endpoint")

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Empty(t, up.requests, "no request should reach upstream")
}

// TestFetch_LogsFailureWithParams verifies failures are logged with endpoint and params.
func TestFetch_LogsFailureWithParams(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	up := &upstream{status: http.StatusBadGateway}
	ts := httptest.NewServer(up)
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL), WithLogger(logger))
	c.Population(context.Background(), Query{Origin: "UKR"})

	out := buf.String()
	assert.Contains(t, out, "fetching UNHCR data failed")
	assert.Contains(t, out, "endpoint=population")
	assert.Contains(t, out, "coo=UKR")
	assert.Contains(t, out, "request_id=")
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Endpoint: EndpointPopulation, Code: 503}
	assert.Equal(t, "unhcr: population: HTTP 503", err.Error())

	err.Body = "down"
	assert.Equal(t, "unhcr: population: HTTP 503: down", err.Error())
}

// TestTruncate_RuneBoundary verifies truncated error bodies stay valid UTF-8.
func TestTruncate_RuneBoundary(t *testing.T) {
	assert.Equal(t, "abc", truncate([]byte(" abc "), 5))
	assert.Equal(t, "ab...", truncate([]byte("abcdef"), 2))

	// "é" is two bytes; cutting at byte 2 would split it.
	got := truncate([]byte("aéb"), 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))
}

func TestNewClient_TimeoutAlwaysBounded(t *testing.T) {
	hc := &http.Client{}
	c := NewClient(WithHTTPClient(hc), WithTimeout(0))

	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.Zero(t, hc.Timeout, "caller's client must not be modified")
}

// TestResult_IsError verifies only the exact failure shape counts as an error.
func TestResult_IsError(t *testing.T) {
	assert.True(t, ErrorResult("boom").IsError())
	assert.False(t, Result{"items": []any{}}.IsError())
	assert.False(t, Result{"error": "field named error", "status": "ok"}.IsError())
}
