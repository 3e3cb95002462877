package audio

import (
	"math"
	"sync"
	"time"
)

// SampleStore is a bounded, thread-safe store of mono float32 samples at a
// fixed rate. One producer (the capture callback) appends while one consumer
// (the scheduler) reads trailing windows; the mutex is held only for the copy
// or append, never across inference.
//
// Trimming is amortized: the backing slice may grow to twice the capacity
// before the oldest samples are dropped in one bulk operation, so a single
// append never pays an O(n) shift.
type SampleStore struct {
	mu         sync.Mutex
	samples    []float32
	capacity   int
	sampleRate int
}

// NewSampleStore creates a store holding at most maxDuration of audio at the
// given sample rate.
func NewSampleStore(sampleRate int, maxDuration time.Duration) *SampleStore {
	capacity := int(float64(sampleRate) * maxDuration.Seconds())
	if capacity < 1 {
		capacity = 1
	}
	return &SampleStore{
		samples:    make([]float32, 0, 2*capacity),
		capacity:   capacity,
		sampleRate: sampleRate,
	}
}

// Append adds new samples to the store. Empty chunks are a no-op. When the
// stored length exceeds twice the capacity, the store is trimmed back to the
// most recent capacity worth of samples.
func (s *SampleStore) Append(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, chunk...)
	if len(s.samples) > 2*s.capacity {
		keep := s.samples[len(s.samples)-s.capacity:]
		copy(s.samples[:s.capacity], keep)
		s.samples = s.samples[:s.capacity]
	}
}

// Clear empties the store while preserving the allocated backing array.
func (s *SampleStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = s.samples[:0]
}

// Len reports the number of stored samples.
func (s *SampleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Latest returns a copy of the most recent duration worth of samples, or
// fewer if the store holds less. The returned slice is an independent
// snapshot safe to read while capture keeps appending.
func (s *SampleStore) Latest(duration time.Duration) []float32 {
	if duration <= 0 {
		return nil
	}
	want := int(float64(s.sampleRate) * duration.Seconds())
	if want < 1 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if want > len(s.samples) {
		want = len(s.samples)
	}
	if want == 0 {
		return nil
	}
	out := make([]float32, want)
	copy(out, s.samples[len(s.samples)-want:])
	return out
}

// RMS computes the root-mean-square energy over the trailing window. An
// empty window yields 0.
func (s *SampleStore) RMS(duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	want := int(float64(s.sampleRate) * duration.Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	if want > len(s.samples) {
		want = len(s.samples)
	}
	if want == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.samples[len(s.samples)-want:] {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(want))
}
