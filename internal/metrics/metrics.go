// Package metrics publishes per-block FmDecoder diagnostics to
// InfluxDB as a side channel. Metrics are write-only: nothing here
// ever feeds back into the DSP pipeline.
package metrics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"

	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

// Publisher writes per-block metrics as InfluxDB points tagged by the
// receiver's frequency label.
type Publisher struct {
	writeAPI api.WriteAPI
	freqTag  string
}

// NewPublisher builds a Publisher that writes through an InfluxDB
// client at url, authenticated by token, into org/bucket.
func NewPublisher(url, token, org, bucket, freqTag string) *Publisher {
	client := influxdb2.NewClient(url, token)
	return &Publisher{
		writeAPI: client.WriteAPI(org, bucket),
		freqTag:  freqTag,
	}
}

// NewPublisherWithWriteAPI builds a Publisher around an already
// constructed write API, primarily for tests with MockWriteAPI.
func NewPublisherWithWriteAPI(w api.WriteAPI, freqTag string) *Publisher {
	return &Publisher{writeAPI: w, freqTag: freqTag}
}

// Observe satisfies pipeline.MetricsSink: it writes one InfluxDB point
// per decoded block.
func (p *Publisher) Observe(m types.BlockMetrics) {
	fields := map[string]interface{}{
		"if_level":        m.IFLevel,
		"baseband_level":  m.BasebandLevel,
		"tuning_offset":   m.TuningOffsetHz,
		"pilot_level":     m.PilotLevel,
		"stereo_detected": m.StereoDetected,
		"pps_events":      len(m.PPSEvents),
	}
	tags := map[string]string{
		"frequency": p.freqTag,
	}
	p.writeAPI.WritePoint(influxdb2.NewPoint("fmradio.block", tags, fields, time.Now()))
}

// Flush forces any buffered points to be sent before shutdown.
func (p *Publisher) Flush() {
	p.writeAPI.Flush()
}
