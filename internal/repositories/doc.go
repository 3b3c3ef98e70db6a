// Package repositories implements the SQLite catalog behind the download engine.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [TrackRepository] : Metadata cache keyed by Spotify ID
//   - [RunRepository] : Batch run log with status and per-outcome counts
//   - [TrackCacheAdapter] : Deduplicating cache used by the resolver
//
// The catalog is optional: the sync state file in each destination folder remains the
// authoritative record of what has been downloaded.
package repositories
