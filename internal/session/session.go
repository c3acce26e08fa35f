package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Qiujialin/DouyinDm/internal/event"
	"github.com/Qiujialin/DouyinDm/internal/protocol"
	"github.com/Qiujialin/DouyinDm/internal/router"
	"github.com/Qiujialin/DouyinDm/internal/sign"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
	ErrNotConnected   = errors.New("not connected")
)

// State is the lifecycle state of a session. There is no transition from
// Closed back to Connecting; reconnection is the registry caller's job.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// EventConsumer receives each decoded event. Implementations must not block;
// the session calls Consume from its receive loop.
type EventConsumer interface {
	Consume(event.Record)
}

// ConsumerFunc adapts a function to the EventConsumer interface.
type ConsumerFunc func(event.Record)

func (f ConsumerFunc) Consume(r event.Record) { f(r) }

// Defaults applied by New for zero-valued config fields.
const (
	DefaultBaseURL           = "wss://webcast3-ws-web-lq.douyin.com/webcast/im/push/v2/"
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
)

// Config configures a session.
type Config struct {
	BaseURL  string // push endpoint; DefaultBaseURL if empty
	RoomID   string // internal numeric room id
	WebRID   string // public handle, stamped on events
	Title    string // room title, stamped on events
	Owner    string // owner display name, stamped on events
	UniqueID string // per-session viewer id; random if empty

	Cookie    string
	UserAgent string

	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
}

// Session owns one websocket connection and one heartbeat task for a room.
type Session struct {
	cfg      Config
	origin   event.Origin
	signer   sign.Signer
	consumer EventConsumer
	logger   *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu    sync.Mutex
	state State
	err   error

	stopCh   chan struct{}
	haltOnce sync.Once
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a session in the Idle state.
func New(cfg Config, signer sign.Signer, consumer EventConsumer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UniqueID == "" {
		cfg.UniqueID = sign.MsToken(12)
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	return &Session{
		cfg: cfg,
		origin: event.Origin{
			RoomID: cfg.RoomID,
			WebRID: cfg.WebRID,
			Title:  cfg.Title,
			Owner:  cfg.Owner,
		},
		signer:   signer,
		consumer: consumer,
		logger:   logger.With("room_id", cfg.RoomID),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start obtains a signed URL, dials the push endpoint, sends the join
// signal, and spawns the receive and heartbeat loops. It returns once the
// session is Open; the loops run until the socket fails or Stop is called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, st)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	signature, err := s.signer.Sign(s.cfg.RoomID, s.cfg.UniqueID)
	if err != nil {
		s.fail(fmt.Errorf("sign connection: %w", err))
		return fmt.Errorf("sign connection: %w", err)
	}

	wsURL := connectionURL(s.cfg.BaseURL, s.cfg.RoomID, s.cfg.UniqueID, signature, time.Now())

	header := http.Header{}
	header.Set("User-Agent", s.cfg.UserAgent)
	header.Set("Cookie", s.cfg.Cookie)
	header.Set("Origin", "https://live.douyin.com")

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.fail(fmt.Errorf("dial push endpoint: %w", err))
		return fmt.Errorf("dial push endpoint: %w", err)
	}

	s.mu.Lock()
	// Stop may have raced the dial.
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		s.closeDone()
		return ErrStopped
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()

	// The join-room signal is literally an empty heartbeat frame, sent once
	// immediately on open, independent of the periodic schedule.
	if err := s.sendFrame(protocol.HeartbeatFrame()); err != nil {
		s.logger.Warn("failed to send join signal", "error", err)
	}

	s.wg.Add(2)
	go s.receiveLoop()
	go s.heartbeatLoop()

	go func() {
		s.wg.Wait()
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.closeDone()
	}()

	s.logger.Debug("session open", "unique_id", s.cfg.UniqueID)
	return nil
}

// Stop shuts the session down: the heartbeat task terminates, the socket is
// released, and no further events are delivered once Stop returns. Calling
// Stop again is a no-op.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		switch s.state {
		case StateIdle:
			s.state = StateClosed
			s.mu.Unlock()
			s.halt()
			s.closeDone()
			return
		case StateClosed:
			s.mu.Unlock()
			return
		default:
			s.state = StateClosing
		}
		conn := s.conn
		s.mu.Unlock()

		s.halt()
		if conn != nil {
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		}
	})

	<-s.done
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that terminated the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session has fully terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// fail records a pre-Open failure and marks the session Closed.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateClosed
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.halt()
	s.closeDone()
}

func (s *Session) halt() {
	s.haltOnce.Do(func() { close(s.stopCh) })
}

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// receiveLoop reads frames until the socket fails or the session stops.
// Frames are processed strictly in arrival order.
func (s *Session) receiveLoop() {
	defer s.wg.Done()
	defer s.halt()

	for {
		_, data, err := s.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-s.stopCh:
				// Expected close during shutdown.
			default:
				s.setErr(fmt.Errorf("read frame: %w", err))
				s.logger.Warn("connection lost", "error", err)
			}
			return
		}

		select {
		case <-s.stopCh:
			return
		default:
		}

		s.handleFrame(data, receivedAt)
	}
}

// handleFrame decodes one inbound frame. Codec failures drop the frame and
// keep the session alive.
func (s *Session) handleFrame(data []byte, receivedAt time.Time) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		s.logger.Warn("dropping undecodable frame", "error", err)
		return
	}
	if len(frame.Payload) == 0 {
		return
	}

	batch, err := protocol.DecodeBatch(frame.Payload)
	if err != nil {
		s.logger.Warn("dropping undecodable batch", "log_id", frame.LogID, "error", err)
		return
	}

	if batch.NeedAck {
		if err := s.sendFrame(protocol.AckFrame(frame.LogID, batch.AckContext)); err != nil {
			s.logger.Warn("failed to send ack", "log_id", frame.LogID, "error", err)
		}
	}

	for _, msg := range batch.Messages {
		ev := router.Route(msg)
		if re, ok := ev.(event.RouteError); ok {
			s.logger.Warn("message payload failed to parse",
				"method", re.MethodName,
				"reason", re.Reason,
			)
		}
		s.consumer.Consume(event.Record{
			Origin:     s.origin,
			Event:      ev,
			ReceivedAt: receivedAt,
		})
	}
}

// heartbeatLoop sends an empty heartbeat frame at the configured interval
// while the session is open. Send failures are logged, not fatal; a dead
// transport surfaces in the receive loop.
func (s *Session) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.sendFrame(protocol.HeartbeatFrame()); err != nil {
				s.logger.Warn("failed to send heartbeat", "error", err)
			}
		}
	}
}

// sendFrame writes an encoded envelope as a binary websocket message.
func (s *Session) sendFrame(f protocol.Frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeFrame(f))
}
