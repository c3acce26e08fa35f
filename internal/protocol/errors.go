package protocol

import "fmt"

// Decode stages, used to report which layer of the codec rejected a frame.
const (
	StageEnvelope   = "envelope"
	StageDecompress = "decompress"
	StageBatch      = "batch"
)

// DecodeError reports a malformed envelope, corrupt compressed payload, or
// malformed inner batch. Callers drop the offending frame and continue; a
// DecodeError never terminates a session.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
