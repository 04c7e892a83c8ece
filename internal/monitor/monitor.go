// Package monitor exposes the FM decoder's latest per-block metrics
// and histogram as JSON over HTTP, for external dashboards and health
// checks. It never feeds data back into the pipeline.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/oss-sdr/fmreceiver/internal/dsp/stats"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

// Server serves the most recently observed block metrics and an
// optional deviation histogram snapshot as JSON.
type Server struct {
	mu      sync.RWMutex
	latest  types.BlockMetrics
	hist    *stats.Histogram
	blocks  uint64
	port    int
	httpSrv *http.Server
}

// New builds a monitor server listening on port. hist may be nil if
// histogram collection is disabled.
func New(port int, hist *stats.Histogram) *Server {
	return &Server{
		port: port,
		hist: hist,
		httpSrv: &http.Server{
			Addr: fmt.Sprintf(":%d", port),
		},
	}
}

// Observe satisfies pipeline.MetricsSink: it records the latest block
// metrics for the next HTTP poll.
func (s *Server) Observe(m types.BlockMetrics) {
	s.mu.Lock()
	s.latest = m
	s.blocks++
	s.mu.Unlock()
}

type statusResponse struct {
	BlocksProcessed uint64  `json:"blocks_processed"`
	IFLevel         float64 `json:"if_level"`
	BasebandLevel   float64 `json:"baseband_level"`
	TuningOffsetHz  float64 `json:"tuning_offset_hz"`
	StereoDetected  bool    `json:"stereo_detected"`
	PilotLevel      float64 `json:"pilot_level"`
	PPSEventsLast   int     `json:"pps_events_last_block"`
}

// Run starts the HTTP server and blocks until ctx is cancelled, at
// which point it performs a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	router := httprouter.New()
	router.GET("/status", s.handleStatus)
	router.GET("/histogram", s.handleHistogram)
	s.httpSrv.Handler = router

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.mu.RLock()
	resp := statusResponse{
		BlocksProcessed: s.blocks,
		IFLevel:         s.latest.IFLevel,
		BasebandLevel:   s.latest.BasebandLevel,
		TuningOffsetHz:  s.latest.TuningOffsetHz,
		StereoDetected:  s.latest.StereoDetected,
		PilotLevel:      s.latest.PilotLevel,
		PPSEventsLast:   len(s.latest.PPSEvents),
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.hist == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.hist)
}
