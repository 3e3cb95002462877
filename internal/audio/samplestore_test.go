package audio

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestSampleStoreBounded(t *testing.T) {
	t.Parallel()

	const rate = 100
	store := NewSampleStore(rate, time.Second) // capacity 100 samples

	total := 0
	for i := 0; i < 50; i++ {
		chunk := make([]float32, 17)
		for j := range chunk {
			chunk[j] = float32(total+j) / 1000
		}
		store.Append(chunk)
		total += len(chunk)
		if got := store.Len(); got > 2*rate {
			t.Fatalf("after %d appended samples store holds %d, want <= %d", total, got, 2*rate)
		}
	}

	latest := store.Latest(time.Second)
	if len(latest) != rate {
		t.Fatalf("Latest(1s) returned %d samples, want %d", len(latest), rate)
	}
	// The trailing window must be exactly the most recent samples.
	for i, v := range latest {
		want := float32(total-rate+i) / 1000
		if v != want {
			t.Fatalf("latest[%d] = %g, want %g", i, v, want)
		}
	}
}

func TestSampleStoreLatestShortAndEmpty(t *testing.T) {
	t.Parallel()

	store := NewSampleStore(100, time.Second)
	if got := store.Latest(time.Second); got != nil {
		t.Fatalf("Latest on empty store = %v, want nil", got)
	}
	store.Append([]float32{0.1, 0.2, 0.3})
	if got := store.Latest(-time.Second); got != nil {
		t.Fatalf("Latest with negative duration = %v, want nil", got)
	}
	got := store.Latest(time.Second)
	if len(got) != 3 {
		t.Fatalf("Latest returned %d samples, want all 3", len(got))
	}
}

func TestSampleStoreAppendEmptyNoop(t *testing.T) {
	t.Parallel()

	store := NewSampleStore(100, time.Second)
	store.Append(nil)
	store.Append([]float32{})
	if store.Len() != 0 {
		t.Fatalf("empty appends changed length to %d", store.Len())
	}
}

func TestSampleStoreClearPreservesCapacity(t *testing.T) {
	t.Parallel()

	store := NewSampleStore(100, time.Second)
	store.Append(make([]float32, 150))
	store.Clear()
	if store.Len() != 0 {
		t.Fatalf("Clear left %d samples", store.Len())
	}
	store.Append([]float32{0.5})
	if store.Len() != 1 {
		t.Fatalf("append after Clear left %d samples, want 1", store.Len())
	}
}

func TestSampleStoreRMS(t *testing.T) {
	t.Parallel()

	store := NewSampleStore(100, time.Second)
	if got := store.RMS(time.Second); got != 0 {
		t.Fatalf("RMS on empty store = %g, want 0", got)
	}

	chunk := make([]float32, 100)
	for i := range chunk {
		chunk[i] = 0.5
	}
	store.Append(chunk)
	if got := store.RMS(time.Second); math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("RMS of constant 0.5 signal = %g, want 0.5", got)
	}
}

func TestSampleStoreConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	store := NewSampleStore(16000, time.Second)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		chunk := make([]float32, 160)
		for i := 0; i < 500; i++ {
			store.Append(chunk)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = store.Latest(100 * time.Millisecond)
			_ = store.RMS(50 * time.Millisecond)
		}
	}()
	wg.Wait()

	if got := store.Len(); got > 2*16000 {
		t.Fatalf("store exceeded bound under concurrency: %d", got)
	}
}
