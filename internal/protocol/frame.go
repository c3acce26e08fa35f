package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Payload type tags carried in the envelope. Inbound data envelopes from the
// server leave the tag empty; a non-empty payload is what marks them as data.
const (
	PayloadTypeHeartbeat = "hb"
	PayloadTypeAck       = "ack"
)

// PushFrame field numbers. The full schema has eight fields; only these
// three matter to the client, the rest are skipped on decode.
const (
	frameFieldLogID       = 2
	frameFieldPayloadType = 7
	frameFieldPayload     = 8
)

// Frame is the outermost wire envelope, used both inbound (server push) and
// outbound (heartbeat and ack frames).
type Frame struct {
	LogID       uint64
	PayloadType string
	Payload     []byte
}

// HeartbeatFrame returns the empty heartbeat envelope. The join-room signal
// sent on connection open is this exact frame as well.
func HeartbeatFrame() Frame {
	return Frame{PayloadType: PayloadTypeHeartbeat}
}

// AckFrame builds the acknowledgement envelope for a batch: the logId of the
// inbound envelope and the batch's ack context echoed verbatim.
func AckFrame(logID uint64, ackContext []byte) Frame {
	return Frame{
		LogID:       logID,
		PayloadType: PayloadTypeAck,
		Payload:     ackContext,
	}
}

// EncodeFrame serializes a frame to the protobuf wire format. Zero-valued
// fields are omitted, matching proto3 semantics.
func EncodeFrame(f Frame) []byte {
	var buf []byte
	if f.LogID != 0 {
		buf = protowire.AppendTag(buf, frameFieldLogID, protowire.VarintType)
		buf = protowire.AppendVarint(buf, f.LogID)
	}
	if f.PayloadType != "" {
		buf = protowire.AppendTag(buf, frameFieldPayloadType, protowire.BytesType)
		buf = protowire.AppendString(buf, f.PayloadType)
	}
	if len(f.Payload) > 0 {
		buf = protowire.AppendTag(buf, frameFieldPayload, protowire.BytesType)
		buf = protowire.AppendBytes(buf, f.Payload)
	}
	if buf == nil {
		buf = []byte{}
	}
	return buf
}

// DecodeFrame parses a frame from the protobuf wire format. Unknown fields
// are skipped.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Frame{}, &DecodeError{Stage: StageEnvelope, Err: protowire.ParseError(n)}
		}
		b = b[n:]

		switch {
		case num == frameFieldLogID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Frame{}, &DecodeError{Stage: StageEnvelope, Err: protowire.ParseError(m)}
			}
			f.LogID = v
			b = b[m:]

		case num == frameFieldPayloadType && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Frame{}, &DecodeError{Stage: StageEnvelope, Err: protowire.ParseError(m)}
			}
			f.PayloadType = string(v)
			b = b[m:]

		case num == frameFieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Frame{}, &DecodeError{Stage: StageEnvelope, Err: protowire.ParseError(m)}
			}
			f.Payload = append([]byte(nil), v...)
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Frame{}, &DecodeError{Stage: StageEnvelope, Err: protowire.ParseError(m)}
			}
			b = b[m:]
		}
	}
	return f, nil
}
