package factory

import (
	"time"

	"github.com/mcoot/paddleduel/internal/dependencies/mocks"
	"github.com/mcoot/paddleduel/internal/gateway"
	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/storage/memory"
	"github.com/mcoot/paddleduel/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockRandom   *mocks.MockRandom
	MockNotifier *mocks.MockNotifier
	MemStorage   *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Game events are captured by MockNotifier rather than sent over websockets.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockNotifier := mocks.NewMockNotifier()
	logger := testutil.NopLogger()

	m := metrics.New()
	hub := gateway.NewHub(m, logger)
	app := newWithDependencies(store, mockClock, mockRandom, m, hub, mockNotifier, Config{}, logger)

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockRandom:   mockRandom,
		MockNotifier: mockNotifier,
		MemStorage:   store,
	}
}
