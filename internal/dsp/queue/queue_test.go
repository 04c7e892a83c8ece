package queue

import (
	"sync"
	"testing"
)

func TestQueue_PushPullFIFO(t *testing.T) {
	q := New[[]float32]()

	q.Push([]float32{1, 2, 3})
	q.Push([]float32{4, 5})

	if got := q.QueuedSamples(); got != 5 {
		t.Fatalf("expected 5 queued samples, got %d", got)
	}

	first := q.Pull()
	if len(first) != 3 || first[0] != 1 {
		t.Fatalf("expected first block [1 2 3], got %v", first)
	}

	second := q.Pull()
	if len(second) != 2 || second[0] != 4 {
		t.Fatalf("expected second block [4 5], got %v", second)
	}

	if q.QueuedSamples() != 0 {
		t.Fatalf("expected 0 queued samples after draining, got %d", q.QueuedSamples())
	}
}

func TestQueue_EndReached(t *testing.T) {
	q := New[[]float32]()

	if q.EndReached() {
		t.Fatal("end reached before any push_end")
	}

	q.Push([]float32{1})
	q.PushEnd()

	if q.EndReached() {
		t.Fatal("end should not be reached while a block is still pending")
	}

	q.Pull()

	if !q.EndReached() {
		t.Fatal("end should be reached once drained and end-marked")
	}

	// Further pulls return an empty block, never block.
	if got := q.Pull(); len(got) != 0 {
		t.Fatalf("expected empty block past end, got %v", got)
	}
}

func TestQueue_PushEndIsIdempotent(t *testing.T) {
	q := New[[]float32]()
	q.PushEnd()
	q.PushEnd()
	if !q.EndReached() {
		t.Fatal("expected end reached after repeated push_end")
	}
}

func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	const totalSamples = 200_000
	const writeChunk = 333
	const readChunk = 257

	q := New[[]float32]()

	source := make([]float32, totalSamples)
	for i := range source {
		source[i] = float32(i)
	}

	var dest []float32
	var destMu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		written := 0
		for written < totalSamples {
			end := written + writeChunk
			if end > totalSamples {
				end = totalSamples
			}
			chunk := make([]float32, end-written)
			copy(chunk, source[written:end])
			q.Push(chunk)
			written = end
		}
		q.PushEnd()
	}()

	go func() {
		defer wg.Done()
		for {
			q.WaitUntilAtLeast(readChunk)
			block := q.Pull()
			if len(block) == 0 && q.EndReached() {
				return
			}
			destMu.Lock()
			dest = append(dest, block...)
			destMu.Unlock()
		}
	}()

	wg.Wait()

	if len(dest) != totalSamples {
		t.Fatalf("expected %d samples, got %d", totalSamples, len(dest))
	}
	for i, v := range dest {
		if v != source[i] {
			t.Fatalf("mismatch at %d: want %v got %v", i, source[i], v)
		}
	}
}
