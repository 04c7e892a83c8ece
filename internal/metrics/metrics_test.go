package metrics

import (
	"testing"

	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

func TestPublisher_ObserveWritesOnePointPerBlock(t *testing.T) {
	rec := &RecordingWriteAPI{}
	pub := NewPublisherWithWriteAPI(rec, "99.5MHz")

	pub.Observe(types.BlockMetrics{IFLevel: 0.4, BasebandLevel: 0.2, StereoDetected: true})
	pub.Observe(types.BlockMetrics{IFLevel: 0.5})

	if len(rec.Points) != 2 {
		t.Fatalf("expected 2 recorded points, got %d", len(rec.Points))
	}
}

func TestPublisher_FlushDelegatesToWriteAPI(t *testing.T) {
	rec := &RecordingWriteAPI{}
	pub := NewPublisherWithWriteAPI(rec, "99.5MHz")
	pub.Flush() // MockWriteAPI.Flush is a no-op; exercising it should not panic
}
