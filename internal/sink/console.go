package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"

	"github.com/Qiujialin/DouyinDm/internal/event"
)

// Console renders chat events as colored terminal lines, one per event.
// Non-chat events are ignored.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console renderer writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Consume renders one event. Implements session.EventConsumer, so a Console
// can also be wired directly into a standalone session.
func (c *Console) Consume(rec event.Record) {
	chat, ok := rec.Event.(event.Chat)
	if !ok {
		return
	}

	line := fmt.Sprintf("%s %s %s: %s\n",
		color.Gray.Sprintf("[%s]", rec.Timestamp()),
		color.Cyan.Sprintf("[%s]", rec.Origin.Title),
		color.Green.Sprint(chat.Username),
		chat.Content,
	)

	c.mu.Lock()
	fmt.Fprint(c.out, line)
	c.mu.Unlock()
}

// Pump consumes records from a subscription channel until it is closed.
func (c *Console) Pump(ch <-chan event.Record) {
	for rec := range ch {
		c.Consume(rec)
	}
}
