package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/ideabank/internal/config"
	"github.com/insightdelivered/ideabank/internal/parser"
)

const exportCSV = "IDEA BANK ID,PROJECT TITLE,SUBSYSTEM,REGION,PLATFORM,PLANT,FINAL STATUS,SUBMIT DATE,REQUESTER EMAIL,SCOPING LEADER,TOTAL SAVINGS,LINK\n" +
	"IB-1,Bracket,chassis,north america,T1XX,flint,approved,2024-03-01,a@x.com,jane,\"$1,000\",\n" +
	"IB-2,Clip,body,europe,T1XX,flint,rejected,2024-05-02,b@x.com,joe,250,\n" +
	"IB-3,Harness,chassis,europe,C1YY,arlington,approved,2023-11-20,a@x.com,jane,500,\n" +
	"IB-4,No date,body,europe,C1YY,arlington,approved,,c@x.com,joe,75,\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:           ":0",
			BodyLimit:      4 << 20,
			AllowedOrigins: "*",
		},
		Fetch: config.FetchConfig{
			Timeout:      time.Second,
			MaxBytes:     1 << 20,
			AllowedHosts: []string{"127.0.0.1"},
		},
		Report: config.ReportConfig{
			TopN:             10,
			ExcludedStatuses: []string{"rejected"},
		},
	}
}

func setupTestApp() (*fiber.App, *Handler) {
	return NewServer(testConfig(), nil, "test")
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), "body: %s", body)
}

func multipartUpload(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/ideas/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// createDataset stores exportCSV and returns its id.
func createDataset(t *testing.T, app *fiber.App) string {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/datasets", strings.NewReader(exportCSV))
	req.Header.Set("Content-Type", "text/csv")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var result DatasetResponse
	decode(t, resp, &result)
	require.NotEmpty(t, result.ID)
	return result.ID
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest("GET", "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]string
	decode(t, resp, &result)

	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", result["status"])
	}
	if result["engine"] != "fiber" {
		t.Errorf("expected engine=fiber, got %q", result["engine"])
	}
	if result["version"] != "test" {
		t.Errorf("expected version=test, got %q", result["version"])
	}
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Error("expected a request id header")
	}
}

func TestParseEndpointRequiresFile(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest("POST", "/api/ideas/parse", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode == fiber.StatusOK {
		t.Error("expected non-200 for missing file")
	}
	var result ErrorResponse
	decode(t, resp, &result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestParseEndpoint(t *testing.T) {
	app, _ := setupTestApp()

	resp, err := app.Test(multipartUpload(t, "ideas.csv", []byte(exportCSV)), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result ParseResponse
	decode(t, resp, &result)

	assert.True(t, result.Success)
	require.Len(t, result.Ideas, 3)
	assert.Equal(t, "Chassis", result.Ideas[0].Subsystem)
	assert.Equal(t, 4, result.Report.Rows)
	assert.Equal(t, 3, result.Report.Accepted)
	assert.Equal(t, 1, result.Report.Rejected[parser.RejectMissingDate])
	assert.Equal(t, 3, result.Summary.Count)
	assert.Equal(t, 1750.0, result.Summary.TotalSavings)
	assert.Equal(t, []string{"Approved"}, result.Defaults.Statuses)
}

func TestParseEndpointWorkbook(t *testing.T) {
	app, _ := setupTestApp()

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"IDEA BANK ID", "PROJECT TITLE", "SUBSYSTEM", "SUBMIT DATE", "TOTAL SAVINGS"},
		{"IB-1", "Bracket", "chassis", "2024-03-01", 1000},
		{"IB-2", "Clip", "body", "2024-05-02", 250},
		{"IB-3", "Harness", "chassis", "2023-11-20", 500},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	resp, err := app.Test(multipartUpload(t, "ideas.xlsx", buf.Bytes()), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result ParseResponse
	decode(t, resp, &result)
	assert.Len(t, result.Ideas, 3)
}

func TestParseEndpointNoValidData(t *testing.T) {
	app, _ := setupTestApp()

	tests := []struct {
		name string
		body string
	}{
		{"header only", "IDEA BANK ID,SUBMIT DATE,TOTAL SAVINGS\n"},
		{"all rows rejected", "IDEA BANK ID,SUBMIT DATE,TOTAL SAVINGS\nIB-1,not a date,10\n"},
		{"unrelated text", "hello\nworld\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/ideas/parse", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "text/csv")
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

			var result ErrorResponse
			decode(t, resp, &result)
			assert.Equal(t, "no valid data found", result.Error)
		})
	}
}

func TestParseEndpointEmptyBody(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest("POST", "/api/ideas/parse", strings.NewReader("  \n"))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDatasetLifecycle(t *testing.T) {
	app, h := setupTestApp()
	id := createDataset(t, app)
	assert.Equal(t, 1, h.Store().Len())

	t.Run("ideas", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/datasets/"+id+"/ideas?subsystem=chassis&sort=desc", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result IdeasResponse
		decode(t, resp, &result)
		require.Equal(t, 2, result.Count)
		assert.Equal(t, "IB-1", result.Ideas[0].ID)
		assert.Equal(t, "IB-3", result.Ideas[1].ID)
	})

	t.Run("ideas multi value and dates", func(t *testing.T) {
		url := "/api/datasets/" + id + "/ideas?status=approved&status=rejected&from=2024-01-01&to=2024-05-02"
		resp, err := app.Test(httptest.NewRequest("GET", url, nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result IdeasResponse
		decode(t, resp, &result)
		require.Equal(t, 2, result.Count)
		assert.Equal(t, "IB-1", result.Ideas[0].ID)
		assert.Equal(t, "IB-2", result.Ideas[1].ID)
	})

	t.Run("search", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/datasets/"+id+"/ideas?q=HARN", nil), -1)
		require.NoError(t, err)

		var result IdeasResponse
		decode(t, resp, &result)
		require.Equal(t, 1, result.Count)
		assert.Equal(t, "IB-3", result.Ideas[0].ID)
	})

	t.Run("summary", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/datasets/"+id+"/summary?top=1", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result SummaryResponse
		decode(t, resp, &result)
		assert.Equal(t, 3, result.Summary.Count)
		assert.Equal(t, 2, result.Summary.DistinctSubmitters)
		require.Len(t, result.Summary.BySubsystem, 1)
		assert.Equal(t, "Chassis", result.Summary.BySubsystem[0].Value)
		assert.Equal(t, 1500.0, result.Summary.BySubsystem[0].Savings)
	})

	t.Run("options ignore filters", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/datasets/"+id+"/options/platform?subsystem=body", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var result OptionsResponse
		decode(t, resp, &result)
		require.Len(t, result.Options, 2)
		assert.Equal(t, "T1xx", result.Options[0].Value)
		assert.Equal(t, 2, result.Options[0].Count)
	})

	t.Run("export csv", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/datasets/"+id+"/export?format=csv&status=approved", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "ideas.csv")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		ideas := parser.Parse(string(body))
		require.Len(t, ideas, 2)
		assert.Equal(t, "IB-1", ideas[0].ID)
	})

	t.Run("export xlsx", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/datasets/"+id+"/export?format=xlsx", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		f, err := excelize.OpenReader(resp.Body)
		require.NoError(t, err)
		defer f.Close()
		v, err := f.GetCellValue("Ideas", "A2")
		require.NoError(t, err)
		assert.Equal(t, "IB-1", v)
	})

	t.Run("delete", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("DELETE", "/api/datasets/"+id, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, 0, h.Store().Len())

		resp, err = app.Test(httptest.NewRequest("GET", "/api/datasets/"+id+"/ideas", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestDatasetBadRequests(t *testing.T) {
	app, _ := setupTestApp()
	id := createDataset(t, app)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"unknown dataset", "/api/datasets/nope/ideas", fiber.StatusNotFound},
		{"bad sort", "/api/datasets/" + id + "/ideas?sort=sideways", fiber.StatusBadRequest},
		{"bad date", "/api/datasets/" + id + "/ideas?from=03/01/2024", fiber.StatusBadRequest},
		{"reversed dates", "/api/datasets/" + id + "/ideas?from=2024-05-01&to=2024-01-01", fiber.StatusBadRequest},
		{"negative top", "/api/datasets/" + id + "/summary?top=-1", fiber.StatusBadRequest},
		{"bad format", "/api/datasets/" + id + "/export?format=pdf", fiber.StatusBadRequest},
		{"unknown field", "/api/datasets/" + id + "/options/colour", fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.url, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)

			var result ErrorResponse
			decode(t, resp, &result)
			assert.False(t, result.Success)
		})
	}
}

func TestDatasetFromURL(t *testing.T) {
	var remote *httptest.Server
	remote = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/export.csv":
			fmt.Fprint(w, exportCSV)
		case "/moved":
			http.Redirect(w, r, remote.URL+"/export.csv", http.StatusFound)
		case "/elsewhere":
			// Same server, but under a name the allowlist does not carry.
			other := strings.Replace(remote.URL, "127.0.0.1", "localhost", 1)
			http.Redirect(w, r, other+"/export.csv", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer remote.Close()

	app, _ := setupTestApp()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"fetched", `{"url":"` + remote.URL + `/export.csv","name":"weekly"}`, fiber.StatusCreated},
		{"remote 404", `{"url":"` + remote.URL + `/missing"}`, fiber.StatusBadGateway},
		{"missing url", `{"name":"weekly"}`, fiber.StatusBadRequest},
		{"not http", `{"url":"file:///etc/passwd"}`, fiber.StatusBadRequest},
		{"redirect within allowlist", `{"url":"` + remote.URL + `/moved"}`, fiber.StatusCreated},
		{"host not allowed", `{"url":"http://169.254.169.254/latest/meta-data"}`, fiber.StatusForbidden},
		{"same host by another name", `{"url":"` + strings.Replace(remote.URL, "127.0.0.1", "localhost", 1) + `/export.csv"}`, fiber.StatusForbidden},
		{"redirect off allowlist", `{"url":"` + remote.URL + `/elsewhere"}`, fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/datasets", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestDatasetFromURLWithoutAllowlist(t *testing.T) {
	var hits atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, exportCSV)
	}))
	defer remote.Close()

	cfg := testConfig()
	cfg.Fetch.AllowedHosts = nil
	app, _ := NewServer(cfg, nil, "test")

	req := httptest.NewRequest("POST", "/api/datasets", strings.NewReader(`{"url":"`+remote.URL+`/export.csv"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Zero(t, hits.Load())

	var body ErrorResponse
	decode(t, resp, &body)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "IDEABANK_FETCH_ALLOWED_HOSTS")
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := setupTestApp()
	createDataset(t, app)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "ideabank_rows_accepted_total 3")
	assert.Contains(t, text, `ideabank_rows_rejected_total{reason="missing_date"} 1`)
	assert.Contains(t, text, "ideabank_datasets_loaded_total 1")
	assert.Contains(t, text, "ideabank_datasets_active 1")
}
