package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iago/reports-back/internal/datasource"
	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/export"
	"github.com/iago/reports-back/internal/http/handlers"
	"github.com/iago/reports-back/internal/metrics"
	"github.com/iago/reports-back/internal/render"
	"github.com/iago/reports-back/internal/report"
	"github.com/iago/reports-back/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct {
	datasource.MemorySource
}

func (*failingSource) FetchSales(context.Context, domain.Predicate) ([]domain.SaleRow, error) {
	return nil, errors.New("connection refused")
}

type testServer struct {
	server  *httptest.Server
	exports *service.ExportService
}

func seededSource() *datasource.MemorySource {
	source := datasource.NewMemorySource()
	source.AddSales(
		domain.SaleRow{
			ID:        "s-1",
			Total:     100,
			CreatedAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
			Items: []domain.SaleItemRow{
				{ProductID: "p-1", ProductName: "Widget", CategoryID: "c-1", CategoryName: "Tools", Quantity: 2, UnitPrice: 50, UnitCost: 30},
			},
		},
		domain.SaleRow{
			ID:        "s-2",
			Total:     60,
			CreatedAt: time.Date(2024, 2, 3, 15, 0, 0, 0, time.UTC),
			Items: []domain.SaleItemRow{
				{ProductID: "p-1", ProductName: "Widget", CategoryID: "c-1", CategoryName: "Tools", Quantity: 1, UnitPrice: 60, UnitCost: 30},
			},
		},
	)
	return source
}

func startServer(t *testing.T, source datasource.Source, tick time.Duration) testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	engine := report.NewEngine(report.Dependencies{Source: source, Metrics: m})
	exports := service.NewExportService(service.ExportDependencies{
		Generator:  engine,
		Serializer: export.NewSerializer(render.NewComposite()),
		Metrics:    m,
		Config:     service.ExportConfig{Tick: tick, Step: 50},
	})
	router := NewRouter(ctx, RouterDependencies{
		API:            handlers.NewAPI(engine, exports, nil),
		Gatherer:       registry,
		RateLimitRPS:   10000,
		RateLimitBurst: 10000,
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		assert.NoError(t, exports.Shutdown(shutdownCtx))
		cancel()
	})
	return testServer{server: server, exports: exports}
}

func doRequest(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	request, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response, data
}

func decodeBody(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	payload := decodeBody(t, data)
	errorObject, ok := payload["error"].(map[string]any)
	require.True(t, ok, "missing error object in %s", data)
	return errorObject["code"].(string)
}

func waitForJob(t *testing.T, ts testServer, jobID string, status string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		response, data := doRequest(t, http.MethodGet, ts.server.URL+"/v1/exports/"+jobID, nil)
		if response.StatusCode != http.StatusOK {
			return false
		}
		last = decodeBody(t, data)
		return last["status"] == status
	}, 3*time.Second, 5*time.Millisecond)
	return last
}

func TestHealthAndMetrics(t *testing.T) {
	ts := startServer(t, seededSource(), time.Millisecond)

	response, data := doRequest(t, http.MethodGet, ts.server.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, data)["status"])
	assert.NotEmpty(t, response.Header.Get("X-Request-Id"))

	doRequest(t, http.MethodGet, ts.server.URL+"/v1/reports/sales", nil)
	response, data = doRequest(t, http.MethodGet, ts.server.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(data), "reports_engine_reports_generated_total")
}

func TestSalesReportWithDateFilter(t *testing.T) {
	ts := startServer(t, seededSource(), time.Millisecond)

	response, data := doRequest(t, http.MethodGet,
		ts.server.URL+"/v1/reports/sales?start_date=2024-01-01&end_date=2024-01-31", nil)
	require.Equal(t, http.StatusOK, response.StatusCode, string(data))

	payload := decodeBody(t, data)
	assert.Equal(t, "sales", payload["report_type"])
	summary := payload["data"].(map[string]any)["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["total_sales"])
	assert.EqualValues(t, 100, summary["total_revenue"])
}

func TestReportErrorsMapToStatus(t *testing.T) {
	ts := startServer(t, seededSource(), time.Millisecond)

	response, data := doRequest(t, http.MethodGet, ts.server.URL+"/v1/reports/weather", nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "unsupported", errorCode(t, data))

	response, data = doRequest(t, http.MethodGet,
		ts.server.URL+"/v1/reports/sales?start_date=2024-02-01&end_date=2024-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "invalid_filter", errorCode(t, data))

	response, data = doRequest(t, http.MethodGet, ts.server.URL+"/v1/reports/sales?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "invalid_filter", errorCode(t, data))

	failing := startServer(t, &failingSource{}, time.Millisecond)
	response, data = doRequest(t, http.MethodGet, failing.server.URL+"/v1/reports/sales", nil)
	assert.Equal(t, http.StatusBadGateway, response.StatusCode)
	assert.Equal(t, "data_source_error", errorCode(t, data))
}

func TestComparisonEndpoint(t *testing.T) {
	ts := startServer(t, seededSource(), time.Millisecond)

	response, data := doRequest(t, http.MethodPost, ts.server.URL+"/v1/reports/comparison", map[string]any{
		"period_a":  map[string]any{"start_date": "2024-01-01", "end_date": "2024-01-31"},
		"period_b":  map[string]any{"start_date": "2024-02-01", "end_date": "2024-02-29"},
		"dimension": "product",
	})
	require.Equal(t, http.StatusOK, response.StatusCode, string(data))

	comparison := decodeBody(t, data)["data"].(map[string]any)
	changes := comparison["changes"].(map[string]any)
	assert.EqualValues(t, -40, changes["revenue"])
	assert.Equal(t, "product", comparison["dimension"])

	response, data = doRequest(t, http.MethodPost, ts.server.URL+"/v1/reports/comparison", map[string]any{
		"period_a":   map[string]any{},
		"period_b":   map[string]any{},
		"unexpected": true,
	})
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(t, data))
}

func TestExportLifecycle(t *testing.T) {
	ts := startServer(t, seededSource(), time.Millisecond)

	response, data := doRequest(t, http.MethodPost, ts.server.URL+"/v1/exports", map[string]any{
		"report_type": "sales",
		"format":      "csv",
		"filter":      map[string]any{"start_date": "2024-01-01", "end_date": "2024-12-31"},
	})
	require.Equal(t, http.StatusAccepted, response.StatusCode, string(data))
	accepted := decodeBody(t, data)
	jobID := accepted["job_id"].(string)
	assert.Equal(t, "queued", accepted["status"])
	assert.Equal(t, "/v1/exports/"+jobID, accepted["status_url"])
	assert.Equal(t, "1", response.Header.Get("Retry-After"))

	done := waitForJob(t, ts, jobID, "completed")
	assert.EqualValues(t, 100, done["progress"])
	result := done["result"].(map[string]any)
	assert.Equal(t, "/v1/exports/"+jobID+"/download", result["download_url"])

	response, data = doRequest(t, http.MethodGet, ts.server.URL+"/v1/exports/"+jobID+"/download", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, export.ContentTypeCSV, response.Header.Get("Content-Type"))
	assert.Contains(t, response.Header.Get("Content-Disposition"), "sales-report-")
	assert.True(t, strings.HasPrefix(string(data), "report,sales"))

	response, data = doRequest(t, http.MethodPost, ts.server.URL+"/v1/exports/"+jobID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, response.StatusCode)
	assert.Equal(t, "already_finished", errorCode(t, data))

	response, data = doRequest(t, http.MethodGet, ts.server.URL+"/v1/exports", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	jobs := decodeBody(t, data)["jobs"].([]any)
	require.Len(t, jobs, 1)

	response, _ = doRequest(t, http.MethodDelete, ts.server.URL+"/v1/exports/"+jobID, nil)
	assert.Equal(t, http.StatusNoContent, response.StatusCode)
	response, data = doRequest(t, http.MethodGet, ts.server.URL+"/v1/exports/"+jobID, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, data))
	response, _ = doRequest(t, http.MethodDelete, ts.server.URL+"/v1/exports/"+jobID, nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestExportCancelAndUnfinishedDownload(t *testing.T) {
	ts := startServer(t, seededSource(), time.Hour)

	response, data := doRequest(t, http.MethodPost, ts.server.URL+"/v1/exports", map[string]any{
		"report_type": "inventory",
		"format":      "xlsx",
	})
	require.Equal(t, http.StatusAccepted, response.StatusCode, string(data))
	jobID := decodeBody(t, data)["job_id"].(string)

	response, data = doRequest(t, http.MethodGet, ts.server.URL+"/v1/exports/"+jobID+"/download", nil)
	assert.Equal(t, http.StatusConflict, response.StatusCode)
	assert.Equal(t, "not_ready", errorCode(t, data))

	response, data = doRequest(t, http.MethodPost, ts.server.URL+"/v1/exports/"+jobID+"/cancel", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	cancelled := decodeBody(t, data)
	assert.Equal(t, "cancelled", cancelled["status"])
	assert.EqualValues(t, 0, cancelled["progress"])
	assert.Equal(t, "excel", cancelled["format"])

	response, _ = doRequest(t, http.MethodPost, ts.server.URL+"/v1/exports/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestExportRejectsBadRequests(t *testing.T) {
	ts := startServer(t, seededSource(), time.Millisecond)

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"unknown type", map[string]any{"report_type": "weather", "format": "csv"}, "unsupported"},
		{"unknown format", map[string]any{"report_type": "sales", "format": "docx"}, "unsupported"},
		{"inverted range", map[string]any{
			"report_type": "sales",
			"format":      "csv",
			"filter":      map[string]any{"start_date": "2024-03-01", "end_date": "2024-01-01"},
		}, "invalid_filter"},
		{"comparison without window", map[string]any{"report_type": "comparison", "format": "json"}, "invalid_filter"},
		{"unknown field", map[string]any{"report_type": "sales", "format": "csv", "priority": 1}, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			response, data := doRequest(t, http.MethodPost, ts.server.URL+"/v1/exports", tc.body)
			assert.Equal(t, http.StatusBadRequest, response.StatusCode)
			assert.Equal(t, tc.code, errorCode(t, data))
		})
	}

	response, data := doRequest(t, http.MethodGet, ts.server.URL+"/v1/exports?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(t, data))
}
