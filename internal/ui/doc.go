// Package ui implements the live batch progress view using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [RunningView] : Spinner, progress bar, in-flight tracks and the latest results
//  2. [ResultView] : Final counts and a browsable list of tracks that were not downloaded
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the DownloadEngine, which never blocks on a slow renderer.
//
// The first ctrl+c cancels the batch and waits for in-flight tracks to stop; a second one quits immediately.
package ui
