// Package pps writes pulse-per-second events extracted by the pilot
// PLL to a fixed-width text file for downstream timing analysis.
package pps

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
)

const header = "#pps_index sample_index unix_time\n"

// Writer appends one fixed-width row per PPS event to an underlying
// file, flushing after every write so a concurrent reader always sees
// a consistent prefix.
type Writer struct {
	file *os.File
	w    *bufio.Writer
	now  func() time.Time
}

// Open creates (or truncates) path and writes its header row.
func Open(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pps: creating %s: %w", path, err)
	}
	w := &Writer{file: f, w: bufio.NewWriter(f), now: time.Now}
	if _, err := io.WriteString(w.w, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("pps: writing header: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("pps: flushing header: %w", err)
	}
	return w, nil
}

// Write appends one row per event, in order, and flushes.
func (w *Writer) Write(events []types.PPSEvent) error {
	for _, ev := range events {
		unixTime := float64(w.now().UnixNano()) / 1e9
		if _, err := fmt.Fprintf(w.w, "%8d%14d%18.6f\n", ev.PPSIndex, ev.SampleIndex, unixTime); err != nil {
			return fmt.Errorf("pps: writing event row: %w", err)
		}
	}
	if len(events) > 0 {
		if err := w.w.Flush(); err != nil {
			return fmt.Errorf("pps: flushing: %w", err)
		}
	}
	return nil
}

// Close flushes any buffered output and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("pps: flushing on close: %w", err)
	}
	return w.file.Close()
}
