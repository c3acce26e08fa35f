// Package sink implements the Event Sink component: an optional regex
// filter over chat content and a broadcast hub fanning accepted events out
// to subscribers. Broadcasting is best-effort so a slow subscriber can never
// back-pressure protocol processing.
package sink

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/Qiujialin/DouyinDm/internal/event"
)

// DefaultSubscriberBuffer is the per-subscriber channel depth.
const DefaultSubscriberBuffer = 64

// Sink filters and broadcasts published events.
type Sink struct {
	logger *slog.Logger

	mu      sync.RWMutex
	filter  *regexp.Regexp
	pattern string
	subs    map[uuid.UUID]chan event.Record
	closed  bool
}

// New creates an empty sink with no filter and no subscribers.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		logger: logger,
		subs:   make(map[uuid.UUID]chan event.Record),
	}
}

// SetFilter compiles and installs a filter pattern. An empty pattern clears
// the filter. An invalid pattern is rejected here, before it can affect
// publishing; the previous filter stays in place.
func (s *Sink) SetFilter(pattern string) error {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compile filter pattern: %w", err)
		}
	}

	s.mu.Lock()
	s.filter = re
	s.pattern = pattern
	s.mu.Unlock()

	if pattern == "" {
		s.logger.Info("filter cleared")
	} else {
		s.logger.Info("filter set", "pattern", pattern)
	}
	return nil
}

// FilterPattern returns the currently installed pattern, or "".
func (s *Sink) FilterPattern() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pattern
}

// Accepts reports whether an event passes the current filter. Only chat
// events carry filterable text; every other kind bypasses the filter.
func (s *Sink) Accepts(ev event.Event) bool {
	chat, ok := ev.(event.Chat)
	if !ok {
		return true
	}

	s.mu.RLock()
	re := s.filter
	s.mu.RUnlock()

	return re == nil || re.MatchString(chat.Content)
}

// Publish broadcasts a record to all subscribers if it passes the filter.
// Sends never block; a subscriber whose channel is full misses the record.
// The sends happen under the read lock and channels are only closed under
// the write lock, so Publish can never race a close.
func (s *Sink) Publish(rec event.Record) {
	if !s.Accepts(rec.Event) {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
			s.logger.Debug("subscriber buffer full, dropping event",
				"room_id", rec.Origin.RoomID,
			)
		}
	}
}

// Subscribe registers a new subscriber and returns its id and channel. The
// channel is closed on Unsubscribe or Close.
func (s *Sink) Subscribe() (uuid.UUID, <-chan event.Record) {
	id := uuid.New()
	ch := make(chan event.Record, DefaultSubscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return id, ch
	}
	s.subs[id] = ch
	count := len(s.subs)
	s.mu.Unlock()

	s.logger.Debug("subscriber added", "id", id, "subscribers", count)
	return id, ch
}

// SubscriberCount reports the number of live subscribers.
func (s *Sink) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Unsubscribe removes a subscriber and closes its channel. The close
// happens under the write lock so no in-flight Publish can still hold a
// reference to the channel.
func (s *Sink) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	ch, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Debug("subscriber removed", "id", id)
	}
}

// Close drops all subscribers and closes their channels. Publish becomes a
// no-op afterwards.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[uuid.UUID]chan event.Record)
	s.mu.Unlock()
}
