package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Qiujialin/DouyinDm/internal/event"
	"github.com/Qiujialin/DouyinDm/internal/resolver"
	"github.com/Qiujialin/DouyinDm/internal/session"
	"github.com/Qiujialin/DouyinDm/internal/sign"
	"github.com/Qiujialin/DouyinDm/internal/sink"
)

// Errors
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrDuplicateRoom  = errors.New("room already monitored")
	ErrAlreadyRunning = errors.New("room already running")
	ErrShutdown       = errors.New("registry is shut down")
)

// RoomState is the lifecycle state of a monitored room.
type RoomState string

const (
	RoomIdle     RoomState = "idle"
	RoomStarting RoomState = "starting"
	RoomRunning  RoomState = "running"
	RoomStopping RoomState = "stopping"
	RoomStopped  RoomState = "stopped"
)

// Resolver maps a public handle to room metadata.
type Resolver interface {
	Resolve(ctx context.Context, webRID string) (resolver.Room, error)
}

// Config configures the registry and the sessions it creates.
type Config struct {
	GlobalBufferSize  int           // default 200
	RoomBufferSize    int           // default 100
	BaseURL           string        // push endpoint passed to sessions
	Cookie            string        // session cookie
	UserAgent         string        // user agent for connections
	HeartbeatInterval time.Duration // session heartbeat period
}

// DefaultConfig returns the registry defaults; buffer sizes match the
// original deployment.
func DefaultConfig() Config {
	return Config{
		GlobalBufferSize: 200,
		RoomBufferSize:   100,
	}
}

// Room is a point-in-time snapshot of a monitored room.
type Room struct {
	ID       string
	WebRID   string
	Title    string
	Owner    string
	State    RoomState
	Buffered int
	LastErr  string
}

// Status summarizes the registry for the status endpoint.
type Status struct {
	TotalRooms     int
	RunningRooms   int
	FilterPattern  string
	GlobalBuffered int
}

type roomEntry struct {
	info    event.Origin
	state   RoomState
	sess    *session.Session
	buf     *Ring[event.Record]
	lastErr error
}

// Registry owns all rooms, their sessions, and their buffers.
type Registry struct {
	cfg    Config
	signer sign.Signer
	res    Resolver
	sink   *sink.Sink
	logger *slog.Logger

	mu     sync.Mutex
	rooms  map[string]*roomEntry
	global *Ring[event.Record]
	closed bool
}

// New creates a registry. The sink receives every event its sessions decode.
func New(cfg Config, signer sign.Signer, res Resolver, snk *sink.Sink, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GlobalBufferSize < 1 {
		cfg.GlobalBufferSize = DefaultConfig().GlobalBufferSize
	}
	if cfg.RoomBufferSize < 1 {
		cfg.RoomBufferSize = DefaultConfig().RoomBufferSize
	}

	return &Registry{
		cfg:    cfg,
		signer: signer,
		res:    res,
		sink:   snk,
		logger: logger,
		rooms:  make(map[string]*roomEntry),
		global: NewRing[event.Record](cfg.GlobalBufferSize),
	}
}

// Add resolves a handle and registers the room. The resolver is called once;
// a handle resolving to an already-monitored id is rejected.
func (r *Registry) Add(ctx context.Context, webRID string) (Room, error) {
	resolved, err := r.res.Resolve(ctx, webRID)
	if err != nil {
		return Room{}, fmt.Errorf("resolve %s: %w", webRID, err)
	}

	return r.Restore(event.Origin{
		RoomID: resolved.RoomID,
		WebRID: resolved.WebRID,
		Title:  resolved.Title,
		Owner:  resolved.Owner,
	})
}

// Restore registers a room from already-known metadata, without calling the
// resolver. Used to rebuild the room list from the persisted config file.
func (r *Registry) Restore(info event.Origin) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Room{}, ErrShutdown
	}
	if _, exists := r.rooms[info.RoomID]; exists {
		return Room{}, fmt.Errorf("%w: %s", ErrDuplicateRoom, info.RoomID)
	}

	entry := &roomEntry{
		info:  info,
		state: RoomIdle,
		buf:   NewRing[event.Record](r.cfg.RoomBufferSize),
	}
	r.rooms[info.RoomID] = entry

	r.logger.Info("room added",
		"room_id", info.RoomID,
		"web_rid", info.WebRID,
		"title", info.Title,
	)
	return snapshot(entry), nil
}

// Start creates and opens a session for the room. It fails with
// ErrAlreadyRunning if a live session exists; otherwise it returns once the
// session is open, and the session then runs on its own goroutines.
func (r *Registry) Start(ctx context.Context, roomID string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrShutdown
	}
	entry, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	// RoomStopping counts as live: the old session has not finished its
	// teardown yet.
	if entry.state == RoomStarting || entry.state == RoomRunning || entry.state == RoomStopping {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, roomID)
	}

	sess := session.New(session.Config{
		BaseURL:           r.cfg.BaseURL,
		RoomID:            entry.info.RoomID,
		WebRID:            entry.info.WebRID,
		Title:             entry.info.Title,
		Owner:             entry.info.Owner,
		Cookie:            r.cfg.Cookie,
		UserAgent:         r.cfg.UserAgent,
		HeartbeatInterval: r.cfg.HeartbeatInterval,
	}, r.signer, r.consumerFor(entry.buf), r.logger)

	entry.state = RoomStarting
	entry.sess = sess
	entry.lastErr = nil
	r.mu.Unlock()

	// Signing and dialing happen outside the registry lock.
	if err := sess.Start(ctx); err != nil {
		r.mu.Lock()
		if entry.sess == sess {
			entry.state = RoomStopped
			entry.sess = nil
			entry.lastErr = err
		}
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	if entry.sess == sess && entry.state == RoomStarting {
		entry.state = RoomRunning
	}
	r.mu.Unlock()

	go r.watch(roomID, sess)

	r.logger.Info("room started", "room_id", roomID)
	return nil
}

// watch marks the room stopped once its session terminates for any reason.
func (r *Registry) watch(roomID string, sess *session.Session) {
	<-sess.Done()

	r.mu.Lock()
	entry, ok := r.rooms[roomID]
	if ok && entry.sess == sess {
		entry.state = RoomStopped
		entry.sess = nil
		entry.lastErr = sess.Err()
	}
	r.mu.Unlock()

	if err := sess.Err(); err != nil {
		r.logger.Warn("room session terminated", "room_id", roomID, "error", err)
	} else {
		r.logger.Info("room session closed", "room_id", roomID)
	}
}

// consumerFor wires a session's events into the room buffer, the global
// buffer, and the sink. The registry lock is never taken here, so a
// broadcast send can never hold it.
func (r *Registry) consumerFor(buf *Ring[event.Record]) session.EventConsumer {
	return session.ConsumerFunc(func(rec event.Record) {
		buf.Append(rec)
		r.global.Append(rec)
		r.sink.Publish(rec)
	})
}

// Stop shuts down the room's session if one is live. Stopping a room that
// is not running is a no-op.
func (r *Registry) Stop(roomID string) error {
	r.mu.Lock()
	entry, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	sess := entry.sess
	if sess != nil {
		entry.state = RoomStopping
	}
	r.mu.Unlock()

	if sess != nil {
		sess.Stop()
	}

	r.mu.Lock()
	if entry.sess == sess || entry.sess == nil {
		entry.state = RoomStopped
		entry.sess = nil
	}
	r.mu.Unlock()

	r.logger.Info("room stopped", "room_id", roomID)
	return nil
}

// Remove stops the room and drops it together with its buffer.
func (r *Registry) Remove(roomID string) error {
	if err := r.Stop(roomID); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.rooms, roomID)
	r.mu.Unlock()

	r.logger.Info("room removed", "room_id", roomID)
	return nil
}

// StartAll starts every room that is not already running. Failures are
// per-room and reported in the returned map; they do not stop the sweep.
func (r *Registry) StartAll(ctx context.Context) map[string]error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	errs := make(map[string]error)
	for _, id := range ids {
		if err := r.Start(ctx, id); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				continue
			}
			errs[id] = err
		}
	}
	return errs
}

// StopAll stops every live session concurrently and waits for all of them
// to terminate.
func (r *Registry) StopAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id, entry := range r.rooms {
		if entry.sess != nil {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return r.Stop(id)
		})
	}
	g.Wait()
}

// SetFilter installs (or, with an empty pattern, clears) the sink filter.
// It takes effect for all subsequently delivered events across all rooms;
// already-buffered events are not retroactively filtered.
func (r *Registry) SetFilter(pattern string) error {
	return r.sink.SetFilter(pattern)
}

// FilterPattern returns the sink's current filter pattern.
func (r *Registry) FilterPattern() string {
	return r.sink.FilterPattern()
}

// History returns up to count buffered events, oldest-first: the room's
// buffer when roomID is given, the global buffer otherwise.
func (r *Registry) History(roomID string, count int) ([]event.Record, error) {
	if roomID == "" {
		return r.global.Last(count), nil
	}

	r.mu.Lock()
	entry, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return entry.buf.Last(count), nil
}

// Rooms returns a snapshot of all rooms, ordered by room id.
func (r *Registry) Rooms() []Room {
	r.mu.Lock()
	out := make([]Room, 0, len(r.rooms))
	for _, entry := range r.rooms {
		out = append(out, snapshot(entry))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Status returns the registry summary.
func (r *Registry) Status() Status {
	r.mu.Lock()
	total := len(r.rooms)
	running := 0
	for _, entry := range r.rooms {
		if entry.state == RoomRunning || entry.state == RoomStarting {
			running++
		}
	}
	r.mu.Unlock()

	return Status{
		TotalRooms:     total,
		RunningRooms:   running,
		FilterPattern:  r.sink.FilterPattern(),
		GlobalBuffered: r.global.Len(),
	}
}

// Shutdown stops all sessions and rejects further mutations.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.StopAll()
	r.logger.Info("registry shut down")
}

func snapshot(entry *roomEntry) Room {
	room := Room{
		ID:       entry.info.RoomID,
		WebRID:   entry.info.WebRID,
		Title:    entry.info.Title,
		Owner:    entry.info.Owner,
		State:    entry.state,
		Buffered: entry.buf.Len(),
	}
	if entry.lastErr != nil {
		room.LastErr = entry.lastErr.Error()
	}
	return room
}
