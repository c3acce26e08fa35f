// Package event defines the domain events produced by the message router
// and consumed by buffers, sinks, and the presentation layer.
package event

import "time"

// Event is the tagged union over recognized message methods. Concrete types
// are Chat, ViewerCount, Gift, Member, Like, Unknown, and RouteError.
type Event interface {
	// Method returns the wire method tag this event was decoded from.
	Method() string
}

// Chat is a chat (danmaku) message.
type Chat struct {
	Username string
	Content  string
}

func (Chat) Method() string { return "WebcastChatMessage" }

// ViewerCount reports the current total viewer count of a room.
type ViewerCount struct {
	TotalViewers uint64
}

func (ViewerCount) Method() string { return "WebcastRoomUserSeqMessage" }

// Gift is a gift message, carried opaque.
type Gift struct {
	Payload []byte
}

func (Gift) Method() string { return "WebcastGiftMessage" }

// Member is a user enter/leave message, carried opaque.
type Member struct {
	Payload []byte
}

func (Member) Method() string { return "WebcastMemberMessage" }

// Like is a like message, carried opaque.
type Like struct {
	Payload []byte
}

func (Like) Method() string { return "WebcastLikeMessage" }

// Unknown is produced for any unrecognized method tag. It never causes a
// decode failure.
type Unknown struct {
	MethodName string
}

func (u Unknown) Method() string { return u.MethodName }

// RouteError is produced when a recognized method's payload fails to parse.
// It surfaces the failure for observability without aborting the batch.
type RouteError struct {
	MethodName string
	Reason     string
}

func (e RouteError) Method() string { return e.MethodName }

// Origin identifies the room an event came from.
type Origin struct {
	RoomID string
	WebRID string
	Title  string
	Owner  string
}

// Record pairs an event with its origin and local receive time. Records are
// what buffers hold and what the sink broadcasts.
type Record struct {
	Origin     Origin
	Event      Event
	ReceivedAt time.Time
}

// Beijing is the timezone danmaku timestamps are rendered in.
var Beijing = time.FixedZone("CST", 8*60*60)

// Timestamp renders the receive time as a clock string in Beijing time.
func (r Record) Timestamp() string {
	return r.ReceivedAt.In(Beijing).Format("15:04:05")
}
