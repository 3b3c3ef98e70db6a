// Package models defines domain entities and persistence interfaces for the spotsync download engine.
//
// The package contains two categories of types:
//
// 1. Batch-scoped values: immutable inputs and outputs of one download invocation
//   - [Identifier] : Parsed track/playlist/album/episode reference (tagged by [Kind])
//   - [TrackDescriptor] : Resolved, deduplicated track identity with tag metadata
//   - [JobResult] : Outcome of one track pipeline run
//   - [ThrottlePolicy] : Concurrency/pacing policy for the batch
//   - [FormatConfig] : Target codec and encoder settings
//
// 2. Persistent Entities: catalog rows with full lifecycle management
//   - [PersistedTrack] : Cached track metadata keyed by remote ID
//   - [BatchRun] : One download invocation with totals and status
//
// Persistent entities implement the Model interface providing ID, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
