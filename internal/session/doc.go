// Package session implements the Connection Session component.
//
// A Session owns one websocket connection for one room and drives the
// protocol state machine: obtain a signed URL, dial, send the join signal
// (an empty heartbeat frame), run the periodic heartbeat, decode inbound
// frames, acknowledge batches that ask for it, and dispatch decoded events
// to an injected consumer.
//
// Sessions never reconnect. A closed session is discarded and a new one is
// created by the registry when the room is started again.
package session
