// Package registry implements the Session Registry component.
//
// The registry owns the set of monitored rooms, creates and destroys one
// Connection Session per room, maintains the per-room and global bounded
// event buffers, and exposes each room's running state to the presentation
// layer. It holds the invariant that at most one live session exists per
// room id at any time.
//
// The registry never reconnects a closed session; a terminated room stays
// stopped until its caller starts it again.
package registry
