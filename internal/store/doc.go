// Package store persists small pieces of client state so they survive restarts of the jobsync process.
//
// # Backends
//
// A [Backend] is a flat key/value store that can report changes made by other writers:
//   - [RedisBackend] : shared instance; writes publish the key on jobsync:kv:events
//   - [SQLiteBackend] : kv_store table in the local database; changes found by polling a version column
//   - [MemoryBackend] : in-process, for tests and ephemeral sessions
//
// [Open] chooses one at startup by capability, so nothing above this package knows which is active.
//
// # Cells
//
// A [Cell] is a typed view of one key. It moves through
//
//	idle → pending → writing → cooldown → idle
//
// Set coalesces rapid changes into one write after [Options.Debounce]. For [Options.EchoWindow]
// after a write completes, change notifications are treated as echoes of that write and dropped.
// Outside that window a notification is applied only when its JSON differs from the current value.
package store
