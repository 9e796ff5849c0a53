// Package tasks drives backend sync jobs from start to finalization and keeps the session state
// consistent across restarts of the client.
//
// # Components
//
//  1. [Ledger] : user-visible operations ([models.Process]); at most one sync-family entry
//  2. [Poller] : owns the current job id, polls it and applies the transition table
//     - pending / in-progress: keep polling
//     - ready_to_finalize: seed the review lists, open the review overlay
//     - completed / error: settle the process, clear the current job id
//  3. [Reconciler] : the two directional review lists and the manual-search target;
//     [Reconciler.Suggest] searches every unresolved entry through a rate-limited worker pool
//  4. [Finalizer] : sends reviewed songs back and follows the job to a terminal state
//  5. [AutoDismiss] : closes the review overlay when there is nothing to review
//  6. [HealthMonitor] : periodic backend health check, informational only
//
// [Client] wires them to persisted [store.Cell] values and takes the poller lock.
//
// # Loops
//
// Every poll loop is a goroutine with its own cancel func and a generation number. Starting a loop
// cancels the previous one first, and a fetch that returns after its loop was superseded is dropped.
//
// # Notifications
//
// Status messages go through [Session.Notify]: the latest is kept as the status line and every one is
// sent on a buffered channel without blocking.
package tasks
