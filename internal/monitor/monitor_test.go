package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"github.com/oss-sdr/fmreceiver/internal/dsp/stats"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

func TestServer_StatusReflectsLastObservedBlock(t *testing.T) {
	s := New(0, nil)
	s.Observe(types.BlockMetrics{IFLevel: 0.3, StereoDetected: true, PilotLevel: 0.02})

	router := httprouter.New()
	router.GET("/status", s.handleStatus)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.BlocksProcessed != 1 || !resp.StereoDetected {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestServer_HistogramAbsentReturns404(t *testing.T) {
	s := New(0, nil)
	router := httprouter.New()
	router.GET("/histogram", s.handleHistogram)

	req := httptest.NewRequest(http.MethodGet, "/histogram", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when histogram disabled, got %d", rec.Code)
	}
}

func TestServer_HistogramPresentReturnsJSON(t *testing.T) {
	h := stats.NewHistogram()
	h.Add(42)
	s := New(0, h)
	router := httprouter.New()
	router.GET("/histogram", s.handleHistogram)

	req := httptest.NewRequest(http.MethodGet, "/histogram", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
