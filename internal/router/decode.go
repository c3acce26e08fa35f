package router

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Qiujialin/DouyinDm/internal/event"
)

// WebcastChatMessage field numbers (user is a nested User message).
const (
	chatFieldUser    = 2
	chatFieldContent = 3
	userFieldNick    = 3
)

// WebcastRoomUserSeqMessage field number for the total viewer count.
const roomSeqFieldTotalUser = 7

func decodeChat(payload []byte) (event.Chat, error) {
	var chat event.Chat
	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return event.Chat{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == chatFieldUser && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return event.Chat{}, protowire.ParseError(m)
			}
			nick, err := decodeUserNick(v)
			if err != nil {
				return event.Chat{}, err
			}
			chat.Username = nick
			b = b[m:]

		case num == chatFieldContent && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return event.Chat{}, protowire.ParseError(m)
			}
			chat.Content = string(v)
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return event.Chat{}, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return chat, nil
}

func decodeUserNick(data []byte) (string, error) {
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", protowire.ParseError(n)
		}
		b = b[n:]

		if num == userFieldNick && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return "", protowire.ParseError(m)
			}
			return string(v), nil
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return "", protowire.ParseError(m)
		}
		b = b[m:]
	}
	return "", nil
}

func decodeRoomUserSeq(payload []byte) (event.ViewerCount, error) {
	var seq event.ViewerCount
	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return event.ViewerCount{}, protowire.ParseError(n)
		}
		b = b[n:]

		if num == roomSeqFieldTotalUser && typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return event.ViewerCount{}, protowire.ParseError(m)
			}
			seq.TotalViewers = v
			b = b[m:]
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return event.ViewerCount{}, protowire.ParseError(m)
		}
		b = b[m:]
	}
	return seq, nil
}
