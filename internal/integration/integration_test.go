package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govukmcp/internal/api"
	"govukmcp/internal/config"
	"govukmcp/internal/mcpserver"
	"govukmcp/internal/models"
	"govukmcp/internal/observability"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/tools"
	"govukmcp/internal/upstream"
	"govukmcp/internal/version"
)

// Integration tests that wire the whole stack together the way the binary
// does, against a fake upstream.

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type stack struct {
	server       *httptest.Server
	upstreamHits *atomic.Int64
}

func fakeUpstream(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /bank-holidays.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"england-and-wales": map[string]any{
				"division": "england-and-wales",
				"events": []map[string]any{
					{"title": "New Year's Day", "date": "2025-01-01", "notes": "", "bunting": true},
					{"title": "Good Friday", "date": "2025-04-18", "notes": "", "bunting": false},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

// writeConfig writes a YAML file that points every upstream at base.
func writeConfig(t *testing.T, base string, bankHolidayRPM int) string {
	t.Helper()
	content := fmt.Sprintf(`
server:
  transport: http
  host: localhost
  port: 8080
security:
  admin_token: integration-token
  client_rate_limit:
    enabled: false
    requests_per_minute: 60
rate_limits:
  endpoints:
    bank_holidays: %d
upstream:
  timeout: 2s
  user_agent: govuk-mcp-integration
  base_urls:
    postcodes: %[2]s/postcodes.io
    bank_holidays: %[2]s/bank-holidays.json
    tfl: %[2]s/tfl
    companies_house: %[2]s/ch
    food_hygiene: %[2]s/fsa
    flood_monitoring: %[2]s/ea
    police: %[2]s/police
    hansard: %[2]s/hansard
logging:
  level: error
  format: json
  output: stderr
`, bankHolidayRPM, base)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newStack(t *testing.T, bankHolidayRPM int) *stack {
	t.Helper()
	up, hits := fakeUpstream(t)

	cfg, err := config.Load(writeConfig(t, up.URL, bankHolidayRPM))
	require.NoError(t, err)

	clock := func() time.Time { return fixedNow }
	limiter, err := ratelimit.New(
		ratelimit.WithLimits(cfg.RateLimits.Overrides()),
		ratelimit.WithClock(clock),
	)
	require.NoError(t, err)
	instrumented, err := observability.NewInstrumentedLimiter(limiter)
	require.NoError(t, err)
	t.Cleanup(func() { instrumented.Close() })

	toolMetrics, err := observability.NewToolMetrics()
	require.NoError(t, err)

	registry := tools.NewRegistry(instrumented, toolMetrics.Wrap)
	service := tools.NewService(upstream.NewClient(cfg.Upstream), cfg.Upstream, tools.WithClock(clock))
	require.NoError(t, tools.RegisterAll(registry, service))

	mcp := mcpserver.New(registry, version.GetInfo(), nil)
	handlers := api.NewHandlers(registry, instrumented, api.WithClock(clock))
	router := api.SetupRoutes(handlers, cfg, api.WithMCPHandler(mcp.HTTPHandler()))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &stack{server: srv, upstreamHits: hits}
}

func (s *stack) callTool(t *testing.T, name string, args map[string]any) *http.Response {
	t.Helper()
	body, err := json.Marshal(args)
	require.NoError(t, err)
	resp, err := http.Post(s.server.URL+"/api/v1/tools/"+name, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIntegration_ToolCallUntilRateLimited(t *testing.T) {
	s := newStack(t, 2)

	for i := 0; i < 2; i++ {
		resp := s.callTool(t, "get_bank_holidays", map[string]any{"country": "england-and-wales"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result models.ToolResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "GOV.UK Bank Holidays API", result.DataSource)
		require.NotNil(t, result.RateLimit)
		assert.Equal(t, 2, result.RateLimit.Limit)
		assert.Equal(t, 1-i, result.RateLimit.Remaining)
	}

	resp := s.callTool(t, "get_bank_holidays", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "31", resp.Header.Get("Retry-After"))

	var payload models.ErrorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, models.ErrorKindRateLimit, payload.ErrorType)
	assert.Equal(t, 31, payload.RetryAfter)
	assert.Equal(t, 2, payload.Limit)

	// The denied call never reached the upstream.
	assert.Equal(t, int64(2), s.upstreamHits.Load())
}

func TestIntegration_ResetRestoresCapacity(t *testing.T) {
	s := newStack(t, 1)

	require.Equal(t, http.StatusOK, s.callTool(t, "get_bank_holidays", nil).StatusCode)
	require.Equal(t, http.StatusTooManyRequests, s.callTool(t, "get_bank_holidays", nil).StatusCode)

	// Status does not consume.
	resp, err := http.Get(s.server.URL + "/api/v1/ratelimits/bank_holidays")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status models.RateLimitStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 0, status.Available)
	assert.Equal(t, 1, status.Limit)

	// Reset without the admin token is refused.
	unauth, err := http.Post(s.server.URL+"/api/v1/ratelimits/reset?endpoint=bank_holidays", "application/json", nil)
	require.NoError(t, err)
	unauth.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, unauth.StatusCode)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/v1/ratelimits/reset?endpoint=bank_holidays", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer integration-token")
	reset, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer reset.Body.Close()
	require.Equal(t, http.StatusOK, reset.StatusCode)

	var resetResp models.ResetRateLimitsResponse
	require.NoError(t, json.NewDecoder(reset.Body).Decode(&resetResp))
	assert.Equal(t, []string{"bank_holidays"}, resetResp.Reset)

	assert.Equal(t, http.StatusOK, s.callTool(t, "get_bank_holidays", nil).StatusCode)
}

func TestIntegration_ConcurrentCallsNeverExceedCapacity(t *testing.T) {
	const capacity = 10
	s := newStack(t, capacity)

	var (
		wg      sync.WaitGroup
		granted atomic.Int64
		denied  atomic.Int64
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(s.server.URL+"/api/v1/tools/get_bank_holidays", "application/json", nil)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusOK:
				granted.Add(1)
			case http.StatusTooManyRequests:
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(capacity), granted.Load())
	assert.Equal(t, int64(40-capacity), denied.Load())
	assert.Equal(t, int64(capacity), s.upstreamHits.Load())
}

func TestIntegration_ListToolsAndHealth(t *testing.T) {
	s := newStack(t, 60)

	resp, err := http.Get(s.server.URL + "/api/v1/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list models.ListToolsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 16, list.Count)

	health, err := http.Get(s.server.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	var hc models.HealthCheckResponse
	require.NoError(t, json.NewDecoder(health.Body).Decode(&hc))
	assert.Equal(t, models.StatusHealthy, hc.Status)
}

func TestIntegration_ConfigurationErrorSurfacesWithoutKey(t *testing.T) {
	t.Setenv("COMPANIES_HOUSE_API_KEY", "")
	s := newStack(t, 60)

	resp := s.callTool(t, "search_companies", map[string]any{"query": "acme"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var payload models.ErrorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, models.ErrorKindConfiguration, payload.ErrorType)
	assert.Equal(t, "Companies House API key not configured", payload.Error)
}
