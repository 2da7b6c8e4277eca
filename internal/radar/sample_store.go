package radar

import "sync"

// SampleStore is the mutex-guarded container for the current collection's
// accumulated samples. It is the only state shared between the scan-delivery
// context and the polling consumer, and it is never handed out by reference:
// callers append, snapshot, or copy out through its methods.
//
// The generation counter increments on every Reset so a consumer can tell a
// fresh collection's count of zero apart from a stale read of the previous
// one.
type SampleStore struct {
	mu         sync.Mutex
	samples    []Sample
	generation uint64
}

// NewSampleStore creates an empty store at generation zero.
func NewSampleStore() *SampleStore {
	return &SampleStore{}
}

// Append adds one sample. Amortized O(1); the only failure mode is running
// out of memory, which is fatal to the process.
func (s *SampleStore) Append(sample Sample) {
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()
}

// AppendBatch adds all samples from one scan under a single critical
// section, so a concurrent Snapshot sees either none or all of the scan.
func (s *SampleStore) AppendBatch(samples []Sample) {
	if len(samples) == 0 {
		return
	}
	s.mu.Lock()
	s.samples = append(s.samples, samples...)
	s.mu.Unlock()
}

// Reset clears all samples and increments the generation. Safe to call while
// other goroutines are mid-Append or mid-Snapshot; the store's mutex
// serializes them so no caller ever observes a partial reset.
func (s *SampleStore) Reset() {
	s.mu.Lock()
	s.samples = nil
	s.generation++
	s.mu.Unlock()
}

// Snapshot returns the current sample count together with the generation it
// belongs to. The pair is consistent: a count is never paired with another
// generation's value.
func (s *SampleStore) Snapshot() (count int, generation uint64) {
	s.mu.Lock()
	count = len(s.samples)
	generation = s.generation
	s.mu.Unlock()
	return count, generation
}

// Points returns a copy of the accumulated samples. Used at collection end
// to analyze the run without holding the lock during analysis.
func (s *SampleStore) Points() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return nil
	}
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}
