// Package prototest builds server-side wire payloads for tests: gzip'd
// Response batches and the inner message payloads a real push server would
// send. Production code never encodes these, so the encoders live here.
package prototest

import (
	"bytes"
	"compress/gzip"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Qiujialin/DouyinDm/internal/protocol"
)

// EncodeBatch serializes and gzip-compresses a Response batch, producing the
// payload of a data envelope.
func EncodeBatch(b protocol.Batch) []byte {
	var raw []byte
	for _, msg := range b.Messages {
		var m []byte
		if msg.Method != "" {
			m = protowire.AppendTag(m, 1, protowire.BytesType)
			m = protowire.AppendString(m, msg.Method)
		}
		if len(msg.Payload) > 0 {
			m = protowire.AppendTag(m, 2, protowire.BytesType)
			m = protowire.AppendBytes(m, msg.Payload)
		}
		raw = protowire.AppendTag(raw, 1, protowire.BytesType)
		raw = protowire.AppendBytes(raw, m)
	}
	if len(b.AckContext) > 0 {
		raw = protowire.AppendTag(raw, 5, protowire.BytesType)
		raw = protowire.AppendBytes(raw, b.AckContext)
	}
	if b.NeedAck {
		raw = protowire.AppendTag(raw, 9, protowire.VarintType)
		raw = protowire.AppendVarint(raw, 1)
	}

	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	zw.Write(raw)
	zw.Close()
	return out.Bytes()
}

// EncodeChat builds a WebcastChatMessage payload with the given user
// nickname and content.
func EncodeChat(nickname, content string) []byte {
	var user []byte
	user = protowire.AppendTag(user, 3, protowire.BytesType)
	user = protowire.AppendString(user, nickname)

	var msg []byte
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendBytes(msg, user)
	msg = protowire.AppendTag(msg, 3, protowire.BytesType)
	msg = protowire.AppendString(msg, content)
	return msg
}

// EncodeRoomUserSeq builds a WebcastRoomUserSeqMessage payload carrying the
// total viewer count.
func EncodeRoomUserSeq(totalUser uint64) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, 7, protowire.VarintType)
	msg = protowire.AppendVarint(msg, totalUser)
	return msg
}
