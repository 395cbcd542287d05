// Package main provides tests for the health check endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stuartshay/geo-session-engine/internal/geofence"
)

type fakePinger struct {
	err error
}

func (f fakePinger) HealthCheck(context.Context) error {
	return f.err
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newHTTPHandler("geo-session-engine", fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	expected := `{"status":"healthy","service":"geo-session-engine"}`
	if strings.TrimSpace(rec.Body.String()) != expected {
		t.Errorf("Expected body %s, got %s", expected, rec.Body.String())
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}
}

func TestReadyzEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"database reachable", nil, http.StatusOK, `"status":"ready"`},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, `"error":"connection refused"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newHTTPHandler("geo-session-engine", fakePinger{err: tt.err})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("Expected body to contain %s, got %s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newHTTPHandler("geo-session-engine", fakePinger{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "geosession_sessions_active") {
		t.Error("Expected session gauge in metrics output")
	}
}

func TestRunTicker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	done := make(chan struct{})

	go func() {
		runTicker(ctx, 5*time.Millisecond, func(time.Time) { ticks.Add(1) })
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	cancel()
	<-done

	if ticks.Load() == 0 {
		t.Error("Expected at least one tick")
	}
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	levels := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"unknown": zerolog.InfoLevel,
	}
	for name, want := range levels {
		setLogLevel(name)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("setLogLevel(%q): expected %s, got %s", name, want, got)
		}
	}
}

type fakeUpserter struct {
	pois []geofence.POI
	err  error
}

func (f *fakeUpserter) UpsertPOI(_ context.Context, p geofence.POI) error {
	if f.err != nil {
		return f.err
	}
	f.pois = append(f.pois, p)
	return nil
}

func writePOIFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pois.geojson")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write POI file: %v", err)
	}
	return path
}

func TestSeedPOIs(t *testing.T) {
	path := writePOIFile(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-73.9857,40.7484]},"properties":{"id":"esb","name":"Empire State"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-73.9832,40.7536]},"properties":{"id":"bryant"}}
	]}`)

	store := &fakeUpserter{}
	n, err := seedPOIs(context.Background(), store, path)
	if err != nil {
		t.Fatalf("seedPOIs() failed: %v", err)
	}
	if n != 2 || len(store.pois) != 2 {
		t.Fatalf("expected 2 POIs upserted, got n=%d stored=%d", n, len(store.pois))
	}
	if store.pois[0].ID != "esb" || store.pois[0].Latitude != 40.7484 {
		t.Errorf("unexpected first POI: %+v", store.pois[0])
	}
}

func TestSeedPOIs_Errors(t *testing.T) {
	duplicate := writePOIFile(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"id":"a"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,1]},"properties":{"id":"a"}}
	]}`)
	valid := writePOIFile(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"id":"a"}}
	]}`)

	tests := []struct {
		name  string
		path  string
		store *fakeUpserter
	}{
		{"missing file", filepath.Join(t.TempDir(), "none.geojson"), &fakeUpserter{}},
		{"duplicate ids", duplicate, &fakeUpserter{}},
		{"store error", valid, &fakeUpserter{err: errors.New("db down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := seedPOIs(context.Background(), tt.store, tt.path); err == nil {
				t.Error("expected an error")
			}
			if len(tt.store.pois) != 0 {
				t.Errorf("expected nothing upserted, got %d", len(tt.store.pois))
			}
		})
	}
}
