// Package protocol implements the Frame Codec component.
//
// The Frame Codec:
//   - Encodes/decodes the PushFrame envelope (logId, payloadType, payload)
//     using the protobuf wire format directly, without generated code
//   - Decompresses gzip data payloads and decodes the inner Response batch
//     (needAck flag, opaque ack context, ordered message list)
//   - Is pure and stateless; corrupt input yields a DecodeError tagged with
//     the stage that failed
package protocol
