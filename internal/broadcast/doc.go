// Package broadcast fans reconciled score events out to live subscribers.
//
// The Hub keeps a per-channel list of connections. Broadcasts are marshalled
// once and handed to a Dispatcher, a fixed worker pool over a bounded queue,
// so the caller never waits on subscriber I/O. A connection whose Send fails
// is removed and closed without affecting the others. RunHeartbeat sends
// keep-alive frames on a fixed interval and prunes dead connections the same
// way.
package broadcast
