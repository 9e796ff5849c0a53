// Package models defines the domain entities shared by the jobsync client.
//
// The package contains three categories of types:
//
// 1. Backend resources: fetched and interpreted, never mutated locally
//   - [Job] : one backend-tracked sync job with a single authoritative [JobStatus]
//   - [JobResult] : the ordered [SongMatch] list produced by the matching step
//   - [Candidate] : a manual-search result
//
// 2. Client-local state: owned by exactly one component in the tasks package
//   - [SongMatch] and [Review] : mutated only by the reconciliation engine
//   - [Process] : display entries owned by the process ledger
//   - [Overlay] : the modal mode derived from job status transitions
//
// 3. Persistent history
//   - [JobRecord] : snapshot of an observed job stored by repositories.JobRepository
//
// Finalization is allowed only when [CanFinalize] holds for every list.
package models
