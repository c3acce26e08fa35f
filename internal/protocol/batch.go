package protocol

import (
	"bytes"
	"compress/gzip"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Response field numbers. The server sends more fields (cursor, fetch
// interval, push server hints); the client only needs these three.
const (
	batchFieldMessages   = 1
	batchFieldAckContext = 5
	batchFieldNeedAck    = 9
)

// Message field numbers.
const (
	messageFieldMethod  = 1
	messageFieldPayload = 2
)

// Batch is the decompressed Response container inside a data envelope.
type Batch struct {
	Messages   []Message
	AckContext []byte // opaque internalExt blob, echoed verbatim in the ack
	NeedAck    bool
}

// Message is one application message inside a batch. The payload encoding
// depends on the method and is interpreted by the router, not here.
type Message struct {
	Method  string
	Payload []byte
}

// DecodeBatch decompresses a data envelope's payload and decodes the inner
// batch. Message order is preserved.
func DecodeBatch(payload []byte) (Batch, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return Batch{}, &DecodeError{Stage: StageDecompress, Err: err}
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return Batch{}, &DecodeError{Stage: StageDecompress, Err: err}
	}
	if err := zr.Close(); err != nil {
		return Batch{}, &DecodeError{Stage: StageDecompress, Err: err}
	}
	return decodeResponse(raw)
}

func decodeResponse(data []byte) (Batch, error) {
	var batch Batch
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Batch{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(n)}
		}
		b = b[n:]

		switch {
		case num == batchFieldMessages && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Batch{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(m)}
			}
			msg, err := decodeMessage(v)
			if err != nil {
				return Batch{}, err
			}
			batch.Messages = append(batch.Messages, msg)
			b = b[m:]

		case num == batchFieldAckContext && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Batch{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(m)}
			}
			batch.AckContext = append([]byte(nil), v...)
			b = b[m:]

		case num == batchFieldNeedAck && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Batch{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(m)}
			}
			batch.NeedAck = v != 0
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Batch{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(m)}
			}
			b = b[m:]
		}
	}
	return batch, nil
}

func decodeMessage(data []byte) (Message, error) {
	var msg Message
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Message{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(n)}
		}
		b = b[n:]

		switch {
		case num == messageFieldMethod && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Message{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(m)}
			}
			msg.Method = string(v)
			b = b[m:]

		case num == messageFieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Message{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(m)}
			}
			msg.Payload = append([]byte(nil), v...)
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Message{}, &DecodeError{Stage: StageBatch, Err: protowire.ParseError(m)}
			}
			b = b[m:]
		}
	}
	return msg, nil
}
