package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"upbitwatch/internal/upbit/model"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func updateEvent(cycle uint64, price int64) model.UpdateEvent {
	p := decimal.NewFromInt(price)
	return model.UpdateEvent{
		Cycle: cycle,
		At:    time.UnixMilli(1_700_000_000_000 + int64(cycle)),
		Deltas: []model.DeltaRecord{
			{Symbol: "KRW-BTC", Current: p, Previous: p, Delta: decimal.Zero, Direction: model.Flat},
		},
	}
}

func startServer(t *testing.T, b *Broadcaster) string {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) UpdateMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// go test -v --run TestBroadcastToViewers
func TestBroadcastToViewers(t *testing.T) {
	b := NewBroadcaster(4, nil, zap.NewNop())
	url := startServer(t, b)

	c1 := dial(t, url)
	c2 := dial(t, url)
	require.Eventually(t, func() bool { return b.Len() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, b.OnUpdate(updateEvent(1, 100)))
	require.NoError(t, b.OnUpdate(updateEvent(2, 101)))

	for _, c := range []*websocket.Conn{c1, c2} {
		first := readUpdate(t, c)
		second := readUpdate(t, c)
		assert.Equal(t, "update", first.Type)
		assert.Equal(t, uint64(1), first.Cycle)
		assert.Equal(t, uint64(2), second.Cycle)
		require.Len(t, second.Deltas, 1)
		assert.True(t, second.Deltas[0].Current.Equal(decimal.NewFromInt(101)))
	}
}

// go test -v --run TestReplayLastOnConnect
func TestReplayLastOnConnect(t *testing.T) {
	last := updateEvent(5, 200)
	b := NewBroadcaster(4, func() (model.UpdateEvent, bool) { return last, true }, zap.NewNop())
	url := startServer(t, b)

	c := dial(t, url)
	assert.Equal(t, uint64(5), readUpdate(t, c).Cycle)

	// Same cycle again is not resent.
	require.NoError(t, b.OnUpdate(last))
	require.NoError(t, b.OnUpdate(updateEvent(6, 201)))
	assert.Equal(t, uint64(6), readUpdate(t, c).Cycle)
}

// go test -v --run TestSlowViewerDisconnected
func TestSlowViewerDisconnected(t *testing.T) {
	b := NewBroadcaster(1, nil, zap.NewNop())
	b.clients[&client{send: make(chan []byte, 1)}] = struct{}{}

	require.NoError(t, b.OnUpdate(updateEvent(1, 1)))
	err := b.OnUpdate(updateEvent(2, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow viewers")
	assert.Zero(t, b.Len())
}

// go test -v --run TestUpdateEncodedOnce
func TestUpdateEncodedOnce(t *testing.T) {
	b := NewBroadcaster(2, nil, zap.NewNop())
	viewers := []*client{
		{send: make(chan []byte, 2)},
		{send: make(chan []byte, 2)},
		{send: make(chan []byte, 2)},
	}
	for _, c := range viewers {
		b.clients[c] = struct{}{}
	}

	require.NoError(t, b.OnUpdate(updateEvent(1, 100)))

	first := <-viewers[0].send
	require.NotEmpty(t, first)
	for _, c := range viewers[1:] {
		got := <-c.send
		assert.Same(t, &first[0], &got[0], "viewers share one encoded payload")
	}

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(first, &msg))
	assert.Equal(t, uint64(1), msg.Cycle)
}

// go test -v --run TestCloseDisconnectsViewers
func TestCloseDisconnectsViewers(t *testing.T) {
	b := NewBroadcaster(4, nil, zap.NewNop())
	url := startServer(t, b)

	c := dial(t, url)
	require.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, 10*time.Millisecond)

	b.Close()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	late := dial(t, url)
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, b.Len())
}
