package sink

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Qiujialin/DouyinDm/internal/event"
)

func chatRec(content string) event.Record {
	return event.Record{
		Origin:     event.Origin{RoomID: "1", Title: "room"},
		Event:      event.Chat{Username: "alice", Content: content},
		ReceivedAt: time.Now(),
	}
}

func TestSink_FilterChat(t *testing.T) {
	s := New(nil)
	if err := s.SetFilter("^hi"); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}

	_, ch := s.Subscribe()

	s.Publish(chatRec("hi there"))
	s.Publish(chatRec("bye"))

	select {
	case rec := <-ch:
		if rec.Event.(event.Chat).Content != "hi there" {
			t.Errorf("got %+v, want the matching chat", rec.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("matching event not delivered")
	}

	select {
	case rec := <-ch:
		t.Errorf("non-matching event delivered: %+v", rec.Event)
	default:
	}
}

func TestSink_NonChatBypassesFilter(t *testing.T) {
	s := New(nil)
	if err := s.SetFilter("^nothing-matches-this$"); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}

	_, ch := s.Subscribe()

	s.Publish(event.Record{Event: event.ViewerCount{TotalViewers: 42}})
	s.Publish(event.Record{Event: event.Gift{}})
	s.Publish(event.Record{Event: event.Unknown{MethodName: "WebcastX"}})

	for i := 0; i < 3; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("non-chat event %d filtered out", i)
		}
	}
}

func TestSink_InvalidPatternRejected(t *testing.T) {
	s := New(nil)
	if err := s.SetFilter("^ok"); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}

	if err := s.SetFilter("[unclosed"); err == nil {
		t.Fatal("expected error for invalid pattern")
	}

	// The previous filter stays installed.
	if got := s.FilterPattern(); got != "^ok" {
		t.Errorf("FilterPattern = %q, want %q", got, "^ok")
	}
}

func TestSink_ClearFilter(t *testing.T) {
	s := New(nil)
	if err := s.SetFilter("^hi"); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}
	if err := s.SetFilter(""); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if !s.Accepts(event.Chat{Content: "anything"}) {
		t.Error("cleared filter still rejecting")
	}
}

func TestSink_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := New(nil)
	_, ch := s.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultSubscriberBuffer*3; i++ {
			s.Publish(chatRec("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if got := len(ch); got != DefaultSubscriberBuffer {
		t.Errorf("buffered = %d, want %d (overflow dropped)", got, DefaultSubscriberBuffer)
	}
}

func TestSink_Unsubscribe(t *testing.T) {
	s := New(nil)
	id, ch := s.Subscribe()
	s.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("channel not closed after Unsubscribe")
	}

	// Publishing afterwards must not panic.
	s.Publish(chatRec("x"))
	s.Unsubscribe(id) // repeat is a no-op
}

func TestSink_PublishDuringUnsubscribe(t *testing.T) {
	s := New(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Publisher hammers the sink the way a session receive loop would.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.Publish(chatRec("x"))
			}
		}
	}()

	// Subscribers churn: each one joins, lets a few publishes land on its
	// channel, and leaves. A send racing the close panics the publisher.
	for i := 0; i < 2000; i++ {
		id, _ := s.Subscribe()
		s.Unsubscribe(id)
	}

	close(stop)
	wg.Wait()
}

func TestSink_PublishDuringClose(t *testing.T) {
	s := New(nil)
	for i := 0; i < 8; i++ {
		s.Subscribe()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			s.Publish(chatRec("x"))
		}
	}()

	s.Close()
	wg.Wait()
}

func TestSink_Close(t *testing.T) {
	s := New(nil)
	_, ch := s.Subscribe()
	s.Close()

	if _, ok := <-ch; ok {
		t.Error("channel not closed after Close")
	}
	s.Publish(chatRec("x")) // no-op, no panic
}

func TestConsole_RendersChatOnly(t *testing.T) {
	var buf strings.Builder
	c := NewConsole(&buf)

	c.Consume(event.Record{
		Origin:     event.Origin{Title: "morning show"},
		Event:      event.Chat{Username: "bob", Content: "hello"},
		ReceivedAt: time.Date(2025, 3, 1, 4, 0, 0, 0, time.UTC),
	})
	c.Consume(event.Record{Event: event.ViewerCount{TotalViewers: 9}})

	out := buf.String()
	if !strings.Contains(out, "bob") || !strings.Contains(out, "hello") {
		t.Errorf("output %q missing chat fields", out)
	}
	if !strings.Contains(out, "12:00:00") {
		t.Errorf("output %q missing Beijing-time timestamp", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("output %q, want exactly one line", out)
	}
}
