// Package tasks runs download batches against a destination folder with real-time progress reporting.
//
// # Batch Flow
//
// [DownloadEngine.Run] drives one batch:
//
//  1. Open the folder's sync state ([state.Store]) and apply any requested reset
//  2. Pick identifiers: explicit, stored sources from the last run, or the interactive prompt
//  3. Authenticate the metadata and streaming collaborators (failure aborts the batch)
//  4. [Resolver.Resolve] parses identifiers and expands playlists and albums into unique tracks
//  5. [Filter] skips tracks already present in the folder
//  6. [Throttler.Schedule] admits the rest into [Pipeline.Run], bounded-parallel or serial-paced
//  7. [Aggregator.Consume] tallies results and records completed tracks in history
//
// # Track Pipeline
//
// Each track moves through Fetching, Decoding, Transcoding, Tagging and Writing. A remote
// not-found answer ends in Unavailable; any other error ends in Failed with a [StageError]
// naming the state. Output is written to a temp file and renamed into place, so an interrupted
// batch never leaves a file that looks complete.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Track Caching
//
// The optional [TrackCacher] and [RunLog] interfaces persist resolved descriptors and batch
// totals (repositories.TrackRepository, repositories.RunRepository). Cache failures are logged
// and never disrupt a batch.
package tasks
