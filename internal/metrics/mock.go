package metrics

import "github.com/influxdata/influxdb-client-go/api/write"

// MockWriteAPI is a no-op api.WriteAPI double for tests that exercise
// Publisher without a running InfluxDB instance, and a RecordingWriteAPI
// variant that keeps every point so assertions can inspect them.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string)       {}
func (m *MockWriteAPI) WritePoint(point *write.Point) {}
func (m *MockWriteAPI) Flush()                        {}
func (m *MockWriteAPI) Close()                        {}
func (m *MockWriteAPI) Errors() <-chan error          { return nil }

// RecordingWriteAPI is a MockWriteAPI that additionally records every
// point it receives, for assertions in tests.
type RecordingWriteAPI struct {
	MockWriteAPI
	Points []*write.Point
}

func (r *RecordingWriteAPI) WritePoint(point *write.Point) {
	r.Points = append(r.Points, point)
}
