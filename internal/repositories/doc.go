// Package repositories implements SQLite persistence for job history.
//
// Key Implementations:
//   - [JobRepository] : one row per backend job, upserted on every transition the poller applies
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
