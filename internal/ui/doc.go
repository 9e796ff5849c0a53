// Package ui implements the interactive terminal client using bubbletea's Elm architecture.
//
// The screen follows the persisted overlay mode of the session:
//  1. processes : running operations with spinners and countdowns
//  2. finalizing : waiting for the backend to apply reviewed songs
//  3. songSyncStatus : the review lists, with [ReviewView], [SearchView] and [CandidateView] for manual search
//  4. none : idle, with the latest status message
//
// The [Model] subscribes to the session, ledger and reconciler; each change wakes a command that
// re-renders, so state driven by the poller in the background shows up without polling the model.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, s, f, q) with contextual help displayed via charmbracelet/bubbles/help.
// The finalize binding is disabled while any entry still needs a manual search.
package ui
