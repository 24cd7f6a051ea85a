package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certdispatch/internal/batch"
	"certdispatch/internal/config"
	"certdispatch/internal/infra/convert"
	"certdispatch/internal/infra/metrics"
	"certdispatch/internal/notify"
	"certdispatch/internal/render"
)

func minimalConfig() config.Config {
	var cfg config.Config
	cfg.PDF.DefaultPaper = "A4"
	cfg.PDF.PaperSizes = map[string]config.PaperSize{"A4": {Width: 8.27, Height: 11.69}}
	cfg.PDF.TimeoutSecs = 1
	cfg.Limits.MaxUploadBytes = 1024 * 1024
	return cfg
}

func TestNew_RoutesAndJSON404(t *testing.T) {
	app := New(Deps{Config: minimalConfig()})

	respStats, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/chrome/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, respStats.StatusCode)

	resp404, err := app.Test(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
	assert.Contains(t, resp404.Header.Get("Content-Type"), "application/json")

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp404.Body).Decode(&body))
	assert.Equal(t, http.StatusNotFound, body.Error.Code)
	assert.Equal(t, "Not Found", body.Error.Message)
}

func TestNew_DomainErrorsAreJSON(t *testing.T) {
	cfg := minimalConfig()
	cfg.Documents.OutputDir = t.TempDir()
	cfg.Documents.Certificate.Template = "/missing/TEMPLATE.docx"

	m := metrics.New()
	r := render.New(convert.NewRegistry(), render.Options{Metrics: m})
	o := batch.New(r, notify.NewDispatcher(notify.Unavailable{Reason: io.EOF}, nil), batch.Options{
		OutputDir: cfg.Documents.OutputDir,
		Documents: batch.DocumentsFromConfig(cfg),
	})
	app := New(Deps{Config: cfg, Batch: o, Metrics: m})

	req := httptest.NewRequest(http.MethodPost, "/v1/certificates", strings.NewReader(`{"name":"Asha Rao","role":"ML"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	metricsResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	raw, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "certdispatch_render_duration_seconds")
}
