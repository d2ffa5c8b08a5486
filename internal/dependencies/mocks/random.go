package mocks

import (
	"sync"

	"github.com/mcoot/paddleduel/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued values are consumed in order; once a queue is empty the
// fallback source is used, or zero values if there is none.
type MockRandom struct {
	mu sync.Mutex

	intnResults   []int
	stringResults []string

	fallback random.Random
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom with no fallback
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// WithFallback sets the source used when the queues are empty
func (r *MockRandom) WithFallback(fallback random.Random) *MockRandom {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fallback
	return r
}

// Intn returns the next queued result
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intnResults) == 0 {
		if r.fallback != nil {
			return r.fallback.Intn(n)
		}
		return 0
	}
	result := r.intnResults[0]
	r.intnResults = r.intnResults[1:]
	return result
}

// String returns the next queued result
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stringResults) == 0 {
		if r.fallback != nil {
			return r.fallback.String(length, alphabet)
		}
		return ""
	}
	result := r.stringResults[0]
	r.stringResults = r.stringResults[1:]
	return result
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = append(r.intnResults, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stringResults = append(r.stringResults, values...)
}
