package gateway

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/paddleduel/internal/metrics"
	"github.com/mcoot/paddleduel/internal/model"
	logtest "github.com/mcoot/paddleduel/internal/testutil"
)

func testClient(hub *Hub, id model.ConnectionID, buffer int) *Client {
	return &Client{hub: hub, id: id, send: make(chan []byte, buffer), logger: logtest.NopLogger()}
}

func TestHubSendDeliversEncodedEvent(t *testing.T) {
	hub := NewHub(nil, logtest.NopLogger())
	c := testClient(hub, "c1", 4)
	hub.Register(c)

	hub.Send("c1", model.Event{Type: model.EventScoreSync, Payload: model.ScoreSyncPayload{Scores: [2]int{2, 1}}})

	require.Len(t, c.send, 1)
	assert.JSONEq(t, `{"type":"score-sync","payload":{"scores":[2,1]}}`, string(<-c.send))
}

func TestHubSendToUnknownConnectionIsDropped(t *testing.T) {
	hub := NewHub(nil, logtest.NopLogger())
	assert.NotPanics(t, func() {
		hub.Send("ghost", model.Event{Type: model.EventPong})
	})
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, logtest.NopLogger())
	a := testClient(hub, "a", 4)
	b := testClient(hub, "b", 4)
	other := testClient(hub, "other", 4)
	hub.Register(a)
	hub.Register(b)
	hub.Register(other)

	hub.Broadcast([]model.ConnectionID{"a", "b"}, model.Event{Type: model.EventMatchComplete})

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
	assert.Len(t, other.send, 0)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	m := metrics.New()
	hub := NewHub(m, logtest.NopLogger())
	c := testClient(hub, "c1", 1)
	hub.Register(c)

	hub.Send("c1", model.Event{Type: model.EventPong})
	hub.Send("c1", model.Event{Type: model.EventPong})

	assert.Len(t, c.send, 1)
	expected := `
# HELP paddleduel_outbound_dropped_total Outbound messages dropped because a client buffer was full.
# TYPE paddleduel_outbound_dropped_total counter
paddleduel_outbound_dropped_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "paddleduel_outbound_dropped_total"))
}

func TestHubUnregisterClosesSendOnce(t *testing.T) {
	hub := NewHub(nil, logtest.NopLogger())
	c := testClient(hub, "c1", 1)
	hub.Register(c)

	hub.Unregister(c)
	assert.NotPanics(t, func() { hub.Unregister(c) })
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-c.send
	assert.False(t, open)

	// Sends after unregistering go nowhere
	hub.Send("c1", model.Event{Type: model.EventPong})
}

func TestHubUnregisterIgnoresReplacedClient(t *testing.T) {
	hub := NewHub(nil, logtest.NopLogger())
	old := testClient(hub, "c1", 1)
	replacement := testClient(hub, "c1", 1)
	hub.Register(old)
	hub.Register(replacement)

	hub.Unregister(old)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestErrorResponseCodes(t *testing.T) {
	errDisk := errors.New("disk on fire")
	cases := map[error]string{
		model.ErrValidation:     CodeValidation,
		model.ErrNotRegistered:  CodeNotRegistered,
		model.ErrRateLimited:    CodeRateLimited,
		model.ErrRoomNotFound:   CodeRoomNotFound,
		model.ErrRoomFull:       CodeRoomFull,
		model.ErrCodeGeneration: CodeCodeGeneration,
		model.ErrAlreadyInRoom:  CodeAlreadyInRoom,
		model.ErrNotInRoom:      CodeNotInRoom,
		model.ErrInvalidState:   CodeInvalidState,
		errDisk: CodeInternal,
	}
	for err, code := range cases {
		assert.Equal(t, code, errorResponse(err).Code, err.Error())
	}
	assert.Equal(t, "internal error", errorResponse(errDisk).Message)
}
