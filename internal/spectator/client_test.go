package spectator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	"github.com/yourusername/lucky-wheel/internal/service"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
	"github.com/yourusername/lucky-wheel/internal/service/wheel"
	ws "github.com/yourusername/lucky-wheel/internal/websocket"
)

func encode(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(ws.Event{Type: eventType, Data: data})
	require.NoError(t, err)
	return b
}

func participants(ids ...string) []entity.Participant {
	out := make([]entity.Participant, len(ids))
	for i, id := range ids {
		out[i] = entity.Participant{ID: id, Name: "Name " + id, Status: entity.ParticipantStatusActive}
	}
	return out
}

func testWheel() *spinmanager.Config {
	cfg := spinmanager.DefaultConfig()
	cfg.FrameInterval = 100 * time.Millisecond
	return cfg
}

func TestClient_SnapshotAndFeed(t *testing.T) {
	c := NewClient(Config{URL: "ws://unused/ws", Wheel: testWheel()}, clockwork.NewFakeClock())

	require.NoError(t, c.handle(encode(t, ws.SYNC_SNAPSHOT, service.Snapshot{Participants: participants("a", "b")})))
	assert.Len(t, c.Observer().Segments(), 2)

	require.NoError(t, c.handle(encode(t, ws.PARTICIPANT_INSERT, participants("c")[0])))
	require.NoError(t, c.handle(encode(t, ws.PARTICIPANT_DELETE, participants("a")[0])))

	eliminated := participants("b")[0]
	eliminated.Status = entity.ParticipantStatusEliminated
	require.NoError(t, c.handle(encode(t, ws.PARTICIPANT_UPDATE, eliminated)))

	segments := c.Observer().Segments()
	require.Len(t, segments, 1)
	assert.Equal(t, "c", segments[0].ID)

	assert.Error(t, c.handle([]byte("not json")))
	assert.NoError(t, c.handle(encode(t, "something:new", nil)))
}

func TestClient_ReplaysSpinAndAcceptsBroadcastWinner(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := testWheel()
	c := NewClient(Config{URL: "ws://unused/ws", Wheel: cfg}, clock)

	accepted := make(chan entity.Participant, 1)
	c.OnWinner = func(p entity.Participant) { accepted <- p }

	// the server saw four segments; this spectator sees three
	server := participants("a", "b", "c", "d")
	local := participants("a", "c", "d")
	require.NoError(t, c.handle(encode(t, ws.SYNC_SNAPSHOT, service.Snapshot{Participants: local})))

	payload := spinmanager.SpinPayload{
		SpinID:       "s1",
		WinnerID:     "c",
		WinnerIndex:  2,
		SegmentCount: len(server),
		FullTurns:    6,
		Rotation:     wheel.RotationForSegment(2, len(server), 6),
		PrizeRank:    3,
		Round:        1,
	}
	require.NoError(t, c.handle(encode(t, ws.WHEEL_SPINNING, payload)))
	assert.Equal(t, spinmanager.StateSpinning, c.Observer().State())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	assert.Eventually(t, func() bool {
		clock.Advance(cfg.SpinDuration)
		return len(c.Winners()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	winner := <-accepted
	assert.Equal(t, "c", winner.ID)
	assert.Equal(t, "Name c", winner.Name)
	assert.Equal(t, 1, wheel.IndexOf(wheel.Segments(local), "c"))
	assert.Equal(t, 1, wheel.SegmentUnderPointer(c.Observer().Rotation(), len(local)))
}

func TestClient_ResetAndAbort(t *testing.T) {
	c := NewClient(Config{URL: "ws://unused/ws", Wheel: testWheel()}, clockwork.NewFakeClock())
	require.NoError(t, c.handle(encode(t, ws.SYNC_SNAPSHOT, service.Snapshot{Participants: participants("a", "b")})))

	p := spinmanager.SpinPayload{SpinID: "s1", WinnerID: "a", SegmentCount: 2, CountdownSeconds: 5}
	require.NoError(t, c.handle(encode(t, ws.COUNTDOWN_START, p)))
	assert.Equal(t, spinmanager.StateCountdownPending, c.Observer().State())

	require.NoError(t, c.handle(encode(t, ws.SPIN_ABORTED, spinmanager.SpinNotice{SpinID: "other"})))
	assert.Equal(t, spinmanager.StateCountdownPending, c.Observer().State())

	require.NoError(t, c.handle(encode(t, ws.SPIN_ABORTED, spinmanager.SpinNotice{SpinID: "s1", WinnerID: "a", Reason: "winner_removed"})))
	assert.Equal(t, spinmanager.StateIdle, c.Observer().State())

	require.NoError(t, c.handle(encode(t, ws.COUNTDOWN_START, p)))
	require.NoError(t, c.handle(encode(t, ws.GAME_RESET, map[string]int{"round": 1})))
	assert.Equal(t, spinmanager.StateIdle, c.Observer().State())
	assert.Empty(t, c.Winners())
}

func TestClient_RunRequestsSnapshotAfterDrops(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frame := func(eventType string, data interface{}) []byte {
		b, _ := json.Marshal(ws.Event{Type: eventType, Data: data})
		return b
	}
	roles := make(chan string, 1)
	requests := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roles <- r.URL.Query().Get("role")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, frame(ws.SYNC_SNAPSHOT, service.Snapshot{Participants: participants("a", "b")}))
		_ = conn.WriteMessage(websocket.TextMessage, frame(ws.SERVER_BUFFER_WARNING, map[string]string{"message": "slow"}))

		var ev ws.Event
		if err := conn.ReadJSON(&ev); err == nil {
			requests <- ev.Type
		}
		// hold the connection until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := NewClient(Config{
		URL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Role:  ws.RoleDisplay,
		Wheel: testWheel(),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case role := <-roles:
		assert.Equal(t, ws.RoleDisplay, role)
	case <-time.After(2 * time.Second):
		t.Fatal("spectator did not connect")
	}
	select {
	case typ := <-requests:
		assert.Equal(t, ws.SYNC_REQUEST, typ)
	case <-time.After(2 * time.Second):
		t.Fatal("no sync:request after buffer warning")
	}
	assert.Eventually(t, func() bool { return len(c.Observer().Segments()) == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLogRendererThrottles(t *testing.T) {
	clock := clockwork.NewFakeClock()
	calls := 0
	r := NewLogRenderer(clock, time.Second, func(int) string { calls++; return "x" })

	r.RenderFrame(0, 0)
	r.RenderFrame(0.1, 0)
	clock.Advance(time.Second)
	r.RenderFrame(0.2, 1)

	assert.Equal(t, 2, calls)
}
