package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Qiujialin/DouyinDm/internal/protocol"
	"github.com/Qiujialin/DouyinDm/internal/protocol/prototest"
)

func TestDecodeBatch(t *testing.T) {
	batch := protocol.Batch{
		Messages: []protocol.Message{
			{Method: "WebcastChatMessage", Payload: prototest.EncodeChat("alice", "hi")},
			{Method: "WebcastLikeMessage", Payload: []byte{0x08, 0x01}},
			{Method: "WebcastChatMessage", Payload: prototest.EncodeChat("bob", "bye")},
		},
		AckContext: []byte("ctx-1"),
		NeedAck:    true,
	}

	got, err := protocol.DecodeBatch(prototest.EncodeBatch(batch))
	if err != nil {
		t.Fatalf("DecodeBatch failed: %v", err)
	}

	if !got.NeedAck {
		t.Error("NeedAck = false, want true")
	}
	if !bytes.Equal(got.AckContext, []byte("ctx-1")) {
		t.Errorf("AckContext = %q, want %q", got.AckContext, "ctx-1")
	}
	if len(got.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3", len(got.Messages))
	}

	// Message order inside a batch must be preserved.
	wantMethods := []string{"WebcastChatMessage", "WebcastLikeMessage", "WebcastChatMessage"}
	for i, want := range wantMethods {
		if got.Messages[i].Method != want {
			t.Errorf("Messages[%d].Method = %q, want %q", i, got.Messages[i].Method, want)
		}
	}
	if !bytes.Equal(got.Messages[0].Payload, batch.Messages[0].Payload) {
		t.Error("Messages[0].Payload does not round-trip")
	}
}

func TestDecodeBatch_Empty(t *testing.T) {
	got, err := protocol.DecodeBatch(prototest.EncodeBatch(protocol.Batch{}))
	if err != nil {
		t.Fatalf("DecodeBatch failed: %v", err)
	}
	if got.NeedAck || len(got.Messages) != 0 || len(got.AckContext) != 0 {
		t.Errorf("got %+v, want zero batch", got)
	}
}

func TestDecodeBatch_CorruptGzip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"not gzip", []byte("plain text")},
		{"truncated stream", prototest.EncodeBatch(protocol.Batch{NeedAck: true})[:4]},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.DecodeBatch(tt.payload)
			if err == nil {
				t.Fatal("expected error for corrupt payload")
			}
			var decErr *protocol.DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("error type = %T, want *DecodeError", err)
			}
			if decErr.Stage != protocol.StageDecompress {
				t.Errorf("Stage = %q, want %q", decErr.Stage, protocol.StageDecompress)
			}
		})
	}
}
