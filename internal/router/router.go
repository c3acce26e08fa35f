package router

import (
	"github.com/Qiujialin/DouyinDm/internal/event"
	"github.com/Qiujialin/DouyinDm/internal/protocol"
)

// Method tags recognized by the router. Extend this switch when adding
// message types.
const (
	methodChat        = "WebcastChatMessage"
	methodRoomUserSeq = "WebcastRoomUserSeqMessage"
	methodGift        = "WebcastGiftMessage"
	methodMember      = "WebcastMemberMessage"
	methodLike        = "WebcastLikeMessage"
)

// Route maps a batch message to a domain event. It never fails: unknown
// methods yield event.Unknown and payloads that do not parse yield
// event.RouteError.
func Route(msg protocol.Message) event.Event {
	switch msg.Method {
	case methodChat:
		chat, err := decodeChat(msg.Payload)
		if err != nil {
			return event.RouteError{MethodName: msg.Method, Reason: err.Error()}
		}
		return chat

	case methodRoomUserSeq:
		seq, err := decodeRoomUserSeq(msg.Payload)
		if err != nil {
			return event.RouteError{MethodName: msg.Method, Reason: err.Error()}
		}
		return seq

	case methodGift:
		return event.Gift{Payload: msg.Payload}

	case methodMember:
		return event.Member{Payload: msg.Payload}

	case methodLike:
		return event.Like{Payload: msg.Payload}

	default:
		return event.Unknown{MethodName: msg.Method}
	}
}
