// Package state persists per-folder sync state: which tracks have been written, the last
// known container membership and the identifiers the folder was last synced from.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	// FileName is the state file written to every destination folder.
	FileName = ".spotsync.json"

	// TempPattern names state writes in progress.
	TempPattern = ".spotsync-*.json.tmp"

	schemaVersion = 1
)

var lockTimeout = 2 * time.Second

// ResetScope selects which parts of a [SyncRecord] a reset clears.
type ResetScope uint8

const (
	ResetHistory ResetScope = 1 << iota
	ResetMembership
	ResetSources

	ResetNone ResetScope = 0
	ResetAll             = ResetHistory | ResetMembership | ResetSources
)

// ParseResetScope maps a flag value to a scope. Accepts "history", "membership", "sources" and "all".
func ParseResetScope(s string) (ResetScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "history":
		return ResetHistory, nil
	case "membership":
		return ResetMembership, nil
	case "sources":
		return ResetSources, nil
	case "all", "":
		return ResetAll, nil
	default:
		return ResetNone, fmt.Errorf("%w: unknown reset scope %q", shared.ErrInvalidArgument, s)
	}
}

func (s ResetScope) String() string {
	if s == ResetNone {
		return "none"
	}
	if s == ResetAll {
		return "all"
	}
	var parts []string
	for _, p := range []struct {
		bit  ResetScope
		name string
	}{{ResetHistory, "history"}, {ResetMembership, "membership"}, {ResetSources, "sources"}} {
		if s&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "+")
}

// SyncRecord is the on-disk state of one destination folder.
//
// Unknown fields are ignored when loading so older builds can read newer files.
type SyncRecord struct {
	Version    int       `json:"version"`
	Sources    []string  `json:"sources,omitempty"`
	Membership []string  `json:"membership"`
	History    []string  `json:"history"`
	LastSync   time.Time `json:"last_sync,omitzero"`
}

// Store owns the [SyncRecord] of one folder for the lifetime of a batch.
//
// All methods are safe for concurrent use. Every mutation is written through before returning.
type Store struct {
	mu         sync.Mutex
	folder     string
	path       string
	lock       *FileLock
	sources    []string
	membership map[string]struct{}
	history    map[string]struct{}
	lastSync   time.Time
	recovered  error
	persist    func([]byte) error
}

// Open locks the folder's state file and loads it.
//
// A missing file yields an empty record. An unreadable or corrupt file also yields an empty
// record and is reported through [Store.Recovered].
func Open(folder string) (*Store, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", shared.ErrPersistence, folder, err)
	}

	path := filepath.Join(folder, FileName)
	s := &Store{
		folder:     folder,
		path:       path,
		lock:       NewFileLock(path),
		membership: make(map[string]struct{}),
		history:    make(map[string]struct{}),
	}
	s.persist = s.writeAtomic

	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, err
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.recovered = fmt.Errorf("%w: read %s: %v", shared.ErrPersistence, s.path, err)
		}
		return
	}

	var rec SyncRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.recovered = fmt.Errorf("%w: %s is corrupt, starting empty: %v", shared.ErrPersistence, s.path, err)
		return
	}

	s.sources = rec.Sources
	s.lastSync = rec.LastSync
	for _, id := range rec.Membership {
		s.membership[id] = struct{}{}
	}
	for _, id := range rec.History {
		s.history[id] = struct{}{}
	}
}

// Folder is the destination folder this store belongs to.
func (s *Store) Folder() string { return s.folder }

// Path is the state file path.
func (s *Store) Path() string { return s.path }

// Recovered returns the error that caused the store to start empty, or nil.
func (s *Store) Recovered() error { return s.recovered }

// Record returns a snapshot of the current state with sorted ID lists.
func (s *Store) Record() SyncRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() SyncRecord {
	return SyncRecord{
		Version:    schemaVersion,
		Sources:    slices.Clone(s.sources),
		Membership: sortedKeys(s.membership),
		History:    sortedKeys(s.history),
		LastSync:   s.lastSync,
	}
}

// Sources returns the identifiers the folder was last synced from.
func (s *Store) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sources)
}

// IsKnown reports whether trackID has been written to this folder before.
func (s *Store) IsKnown(trackID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.history[trackID]
	return ok
}

// Reset clears the parts of the record selected by scope and persists the result.
func (s *Store) Reset(scope ResetScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope&ResetHistory != 0 {
		clear(s.history)
	}
	if scope&ResetMembership != 0 {
		clear(s.membership)
	}
	if scope&ResetSources != 0 {
		s.sources = nil
	}
	return s.save()
}

// SetSources stores the raw identifiers used for this folder.
func (s *Store) SetSources(raws []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = slices.Clone(raws)
	return s.save()
}

// SetMembership replaces the membership snapshot and returns the IDs that dropped out, sorted.
func (s *Store) SetMembership(ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	var removed []string
	for id := range s.membership {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)

	s.membership = next
	return removed, s.save()
}

// RecordSuccess marks trackID as written and persists immediately.
//
// A failed write is retried once; a second failure returns [shared.ErrPersistence] with the ID
// still held in memory so a later write can flush it.
func (s *Store) RecordSuccess(trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[trackID] = struct{}{}
	s.lastSync = time.Now().UTC()

	if err := s.save(); err != nil {
		if err = s.save(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the folder lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}

// save must be called with mu held.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", shared.ErrPersistence, err)
	}
	if err := s.persist(data); err != nil {
		return fmt.Errorf("%w: write %s: %v", shared.ErrPersistence, s.path, err)
	}
	return nil
}

func (s *Store) writeAtomic(data []byte) error {
	w, err := NewAtomicWriter(s.path, TempPattern)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
