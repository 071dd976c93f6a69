package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/eodledger/internal/config"
	"github.com/aristath/eodledger/internal/di"
	testingpkg "github.com/aristath/eodledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:     dir,
		ExtractDir:  dir + "/extracts",
		Port:        8011,
		Accounts:    []string{"U1"},
		Schedule:    "0 30 22 * * MON-FRI",
		Location:    time.UTC,
		LockTimeout: time.Second,
	}
	log := zerolog.New(nil).Level(zerolog.Disabled)

	container, _, err := di.Wire(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	return New(Config{Log: log, Config: cfg, Port: cfg.Port, DevMode: true, Container: container}), cfg
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "ok", response.Database)
	assert.Greater(t, response.NumCPU, 0)
}

func TestHealth_ClosedDatabase(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.container.LedgerDB.Close())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDatabaseStats(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/system/database", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "ledger", data["name"])
}

func TestRoutes_BatchThenLedgerViews(t *testing.T) {
	s, cfg := newTestServer(t)
	testingpkg.WriteStandardDay(t, cfg.ExtractDir, "U1", "2024-03-05")

	req := httptest.NewRequest("POST", "/api/eod/batches", strings.NewReader(`{"account":"U1","date":"2024-03-05"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{
		"/api/eod/runs?account=U1",
		"/api/ledger/executions?account=U1",
		"/api/ledger/realized-trades?account=U1&date=2024-03-05",
		"/api/ledger/daily-equity?account=U1",
		"/api/ledger/daily-summary?account=U1&date=2024-03-05",
	} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			s.Router().ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}
