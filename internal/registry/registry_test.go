package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Qiujialin/DouyinDm/internal/event"
	"github.com/Qiujialin/DouyinDm/internal/protocol"
	"github.com/Qiujialin/DouyinDm/internal/protocol/prototest"
	"github.com/Qiujialin/DouyinDm/internal/resolver"
	"github.com/Qiujialin/DouyinDm/internal/sink"
)

// stubResolver maps handles to fixed rooms without hitting the network.
type stubResolver struct {
	rooms map[string]resolver.Room
	err   error
}

func (s *stubResolver) Resolve(ctx context.Context, webRID string) (resolver.Room, error) {
	if s.err != nil {
		return resolver.Room{}, s.err
	}
	room, ok := s.rooms[webRID]
	if !ok {
		return resolver.Room{}, resolver.ErrRoomNotFound
	}
	return room, nil
}

type stubSigner struct{}

func (stubSigner) Sign(roomID, uniqueID string) (string, error) { return "testsig", nil }

func (stubSigner) SignURL(rawURL, userAgent string) (string, error) { return rawURL, nil }

// pushServer stands in for the websocket push endpoint. The handler holds
// the connection open until the client closes it.
func pushServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// idleHandler drains the join signal and heartbeats until the client leaves.
func idleHandler(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func testRoom(id string) resolver.Room {
	return resolver.Room{
		RoomID: id,
		WebRID: "web-" + id,
		Title:  "room " + id,
		Owner:  "owner-" + id,
		Live:   true,
	}
}

func newTestRegistry(t *testing.T, baseURL string, rooms ...resolver.Room) *Registry {
	t.Helper()
	res := &stubResolver{rooms: make(map[string]resolver.Room)}
	for _, room := range rooms {
		res.rooms[room.WebRID] = room
	}
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.HeartbeatInterval = time.Minute
	return New(cfg, stubSigner{}, res, sink.New(nil), nil)
}

func TestRegistry_AddResolvesAndRegisters(t *testing.T) {
	reg := newTestRegistry(t, "", testRoom("100"))

	room, err := reg.Add(context.Background(), "web-100")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if room.ID != "100" || room.Title != "room 100" || room.Owner != "owner-100" {
		t.Errorf("unexpected room snapshot: %+v", room)
	}
	if room.State != RoomIdle {
		t.Errorf("state = %s, want %s", room.State, RoomIdle)
	}
	if got := len(reg.Rooms()); got != 1 {
		t.Errorf("Rooms() returned %d rooms, want 1", got)
	}
}

func TestRegistry_AddDuplicateRejected(t *testing.T) {
	reg := newTestRegistry(t, "", testRoom("100"))

	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	_, err := reg.Add(context.Background(), "web-100")
	if !errors.Is(err, ErrDuplicateRoom) {
		t.Fatalf("second Add error = %v, want ErrDuplicateRoom", err)
	}
}

func TestRegistry_AddResolveFailure(t *testing.T) {
	reg := newTestRegistry(t, "")

	_, err := reg.Add(context.Background(), "missing")
	if !errors.Is(err, resolver.ErrRoomNotFound) {
		t.Fatalf("Add error = %v, want resolver.ErrRoomNotFound", err)
	}
	if got := len(reg.Rooms()); got != 0 {
		t.Errorf("failed Add registered a room: %d rooms", got)
	}
}

func TestRegistry_StartUnknownRoom(t *testing.T) {
	reg := newTestRegistry(t, "")

	err := reg.Start(context.Background(), "nope")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Start error = %v, want ErrRoomNotFound", err)
	}
}

func TestRegistry_StartWhileRunningFails(t *testing.T) {
	server := pushServer(t, idleHandler)
	defer server.Close()

	reg := newTestRegistry(t, wsURL(server), testRoom("100"))
	defer reg.Shutdown()

	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.Start(context.Background(), "100"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := reg.Start(context.Background(), "100")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start error = %v, want ErrAlreadyRunning", err)
	}
}

func TestRegistry_StopThenRestart(t *testing.T) {
	server := pushServer(t, idleHandler)
	defer server.Close()

	reg := newTestRegistry(t, wsURL(server), testRoom("100"))
	defer reg.Shutdown()

	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.Start(context.Background(), "100"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := reg.Stop("100"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	rooms := reg.Rooms()
	if rooms[0].State != RoomStopped {
		t.Fatalf("state after Stop = %s, want %s", rooms[0].State, RoomStopped)
	}

	// A stopped room can be started again with a fresh session.
	if err := reg.Start(context.Background(), "100"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestRegistry_StopIdleRoomIsNoop(t *testing.T) {
	reg := newTestRegistry(t, "", testRoom("100"))

	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.Stop("100"); err != nil {
		t.Fatalf("Stop on idle room failed: %v", err)
	}
}

func TestRegistry_RemoveDropsRoomAndHistory(t *testing.T) {
	reg := newTestRegistry(t, "", testRoom("100"))

	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.Remove("100"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := len(reg.Rooms()); got != 0 {
		t.Errorf("Rooms() after Remove = %d, want 0", got)
	}
	if _, err := reg.History("100", 10); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("History after Remove error = %v, want ErrRoomNotFound", err)
	}
}

func TestRegistry_EventsFlowToBuffersAndSink(t *testing.T) {
	server := pushServer(t, func(conn *websocket.Conn) {
		// Wait for the join signal, then push one chat batch.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		data := protocol.EncodeFrame(protocol.Frame{
			LogID: 7,
			Payload: prototest.EncodeBatch(protocol.Batch{
				Messages: []protocol.Message{{
					Method:  "WebcastChatMessage",
					Payload: prototest.EncodeChat("alice", "hello"),
				}},
			}),
		})
		conn.WriteMessage(websocket.BinaryMessage, data)
		idleHandler(conn)
	})
	defer server.Close()

	snk := sink.New(nil)
	subID, subCh := snk.Subscribe()
	defer snk.Unsubscribe(subID)

	res := &stubResolver{rooms: map[string]resolver.Room{"web-100": testRoom("100")}}
	cfg := DefaultConfig()
	cfg.BaseURL = wsURL(server)
	cfg.HeartbeatInterval = time.Minute
	reg := New(cfg, stubSigner{}, res, snk, nil)
	defer reg.Shutdown()

	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.Start(context.Background(), "100"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var rec event.Record
	select {
	case rec = <-subCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink delivery")
	}

	chat, ok := rec.Event.(event.Chat)
	if !ok {
		t.Fatalf("delivered event is %T, want event.Chat", rec.Event)
	}
	if chat.Username != "alice" || chat.Content != "hello" {
		t.Errorf("chat = %+v", chat)
	}
	if rec.Origin.RoomID != "100" {
		t.Errorf("origin room id = %s, want 100", rec.Origin.RoomID)
	}

	// The event landed in both the room buffer and the global buffer.
	roomHist, err := reg.History("100", 10)
	if err != nil {
		t.Fatalf("History(room) failed: %v", err)
	}
	if len(roomHist) != 1 {
		t.Fatalf("room history has %d records, want 1", len(roomHist))
	}
	globalHist, err := reg.History("", 10)
	if err != nil {
		t.Fatalf("History(global) failed: %v", err)
	}
	if len(globalHist) != 1 {
		t.Fatalf("global history has %d records, want 1", len(globalHist))
	}
}

func TestRegistry_StartAllreportsPerRoomFailures(t *testing.T) {
	server := pushServer(t, idleHandler)
	defer server.Close()

	reg := newTestRegistry(t, wsURL(server), testRoom("100"), testRoom("200"))
	defer reg.Shutdown()

	for _, rid := range []string{"web-100", "web-200"} {
		if _, err := reg.Add(context.Background(), rid); err != nil {
			t.Fatalf("Add(%s) failed: %v", rid, err)
		}
	}

	if errs := reg.StartAll(context.Background()); len(errs) != 0 {
		t.Fatalf("StartAll errors: %v", errs)
	}

	st := reg.Status()
	if st.RunningRooms != 2 {
		t.Errorf("running rooms = %d, want 2", st.RunningRooms)
	}

	// Already-running rooms are skipped, not errors.
	if errs := reg.StartAll(context.Background()); len(errs) != 0 {
		t.Errorf("second StartAll errors: %v", errs)
	}
}

func TestRegistry_StopAllTerminatesEverySession(t *testing.T) {
	server := pushServer(t, idleHandler)
	defer server.Close()

	reg := newTestRegistry(t, wsURL(server), testRoom("100"), testRoom("200"))

	for _, rid := range []string{"web-100", "web-200"} {
		if _, err := reg.Add(context.Background(), rid); err != nil {
			t.Fatalf("Add(%s) failed: %v", rid, err)
		}
	}
	if errs := reg.StartAll(context.Background()); len(errs) != 0 {
		t.Fatalf("StartAll errors: %v", errs)
	}

	reg.StopAll()

	for _, room := range reg.Rooms() {
		if room.State != RoomStopped {
			t.Errorf("room %s state = %s, want %s", room.ID, room.State, RoomStopped)
		}
	}
}

func TestRegistry_RemoteDisconnectMarksStopped(t *testing.T) {
	release := make(chan struct{})
	server := pushServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		<-release
		// Returning closes the connection server-side.
	})
	defer server.Close()

	reg := newTestRegistry(t, wsURL(server), testRoom("100"))
	defer reg.Shutdown()

	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := reg.Start(context.Background(), "100"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	close(release)

	deadline := time.After(2 * time.Second)
	for {
		rooms := reg.Rooms()
		if rooms[0].State == RoomStopped {
			if rooms[0].LastErr == "" {
				t.Error("remote disconnect left LastErr empty")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("room never reached stopped state, still %s", rooms[0].State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRegistry_ShutdownRejectsNewRooms(t *testing.T) {
	reg := newTestRegistry(t, "", testRoom("100"))
	reg.Shutdown()

	_, err := reg.Add(context.Background(), "web-100")
	if !errors.Is(err, ErrShutdown) {
		t.Fatalf("Add after Shutdown error = %v, want ErrShutdown", err)
	}
}

func TestRing_CapacityNeverExceeded(t *testing.T) {
	const capacity = 100
	ring := NewRing[int](capacity)

	for i := 0; i < capacity+1; i++ {
		ring.Append(i)
	}

	if ring.Len() != capacity {
		t.Fatalf("Len = %d, want %d", ring.Len(), capacity)
	}
	if ring.Evicted() != 1 {
		t.Errorf("Evicted = %d, want 1", ring.Evicted())
	}

	got := ring.Last(capacity)
	for _, v := range got {
		if v == 0 {
			t.Fatal("oldest element still present after eviction")
		}
	}
	if got[0] != 1 || got[len(got)-1] != capacity {
		t.Errorf("window = [%d..%d], want [1..%d]", got[0], got[len(got)-1], capacity)
	}
}

func TestRing_LastReturnsOldestFirst(t *testing.T) {
	ring := NewRing[string](3)
	for _, s := range []string{"a", "b", "c", "d"} {
		ring.Append(s)
	}

	got := ring.Last(10)
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("Last returned %d elements, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Last[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if got := ring.Last(2); len(got) != 2 || got[0] != "c" {
		t.Errorf("Last(2) = %v, want [c d]", got)
	}
}

func TestRegistry_HistoryCountsAreBounded(t *testing.T) {
	reg := newTestRegistry(t, "", testRoom("100"))
	if _, err := reg.Add(context.Background(), "web-100"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Feed the global buffer past capacity through the consumer path.
	consumer := reg.consumerFor(reg.rooms["100"].buf)
	for i := 0; i < DefaultConfig().GlobalBufferSize+50; i++ {
		consumer.Consume(event.Record{
			Origin: event.Origin{RoomID: "100"},
			Event:  event.Chat{Username: "u", Content: fmt.Sprintf("m%d", i)},
		})
	}

	roomHist, _ := reg.History("100", 1000)
	if len(roomHist) != DefaultConfig().RoomBufferSize {
		t.Errorf("room history = %d records, want %d", len(roomHist), DefaultConfig().RoomBufferSize)
	}
	globalHist, _ := reg.History("", 1000)
	if len(globalHist) != DefaultConfig().GlobalBufferSize {
		t.Errorf("global history = %d records, want %d", len(globalHist), DefaultConfig().GlobalBufferSize)
	}
}
