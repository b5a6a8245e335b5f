package astenv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"pyrite/internal/modtrack"
	"pyrite/internal/pysrc"
)

// Current schema version - increment when the snapshot format changes
const snapshotSchemaVersion uint16 = 1

// Indexer is the optional tracker capability saved state needs.
type Indexer interface {
	Index() *modtrack.Index
}

// snapshotEntry is one stored table value: an opaque payload keyed by
// table name and qualifier hash. The hash doubles as a corruption check
// on load.
type snapshotEntry struct {
	Table     string
	Hash      uint64
	Qualifier pysrc.Qualifier
	Payload   []byte
}

type snapshotFile struct {
	Schema  uint16
	Tracker *modtrack.Index
	Entries []snapshotEntry
}

// SaveSnapshot serializes every table entry and the tracker index to
// path, for cross-run reuse. Read history is not part of the saved state:
// a restored environment starts a fresh dependency generation. The write
// is atomic within the destination directory.
func (e *Environment) SaveSnapshot(path string) error {
	ix, ok := e.tracker.(Indexer)
	if !ok {
		return fmt.Errorf("save snapshot: tracker %T is not indexable", e.tracker)
	}
	snap := snapshotFile{Schema: snapshotSchemaVersion, Tracker: ix.Index()}

	var err error
	snap.Entries, err = appendEntries(snap.Entries, e.rawSources.Name(), e.rawSources.Range)
	if err == nil {
		snap.Entries, err = appendEntries(snap.Entries, e.rawExports.Name(), e.rawExports.Range)
	}
	if err == nil {
		snap.Entries, err = appendEntries(snap.Entries, e.sources.Name(), e.sources.Range)
	}
	if err == nil {
		snap.Entries, err = appendEntries(snap.Entries, e.exports.Name(), e.exports.Range)
	}
	if err == nil {
		snap.Entries, err = appendEntries(snap.Entries, e.modules.Name(), e.modules.Range)
	}
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	sort.Slice(snap.Entries, func(i, j int) bool {
		if snap.Entries[i].Table != snap.Entries[j].Table {
			return snap.Entries[i].Table < snap.Entries[j].Table
		}
		return snap.Entries[i].Qualifier < snap.Entries[j].Qualifier
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }() // no-op once the rename lands

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(&snap); err != nil {
		_ = f.Close()
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), path)
}

// appendEntries drains one table into the entry list via its Range.
func appendEntries[V any](entries []snapshotEntry, table string, rng func(func(pysrc.Qualifier, V) bool)) ([]snapshotEntry, error) {
	var err error
	rng(func(q pysrc.Qualifier, v V) bool {
		var payload []byte
		if payload, err = msgpack.Marshal(v); err != nil {
			err = fmt.Errorf("%s[%s]: %w", table, q, err)
			return false
		}
		entries = append(entries, snapshotEntry{
			Table:     table,
			Hash:      xxhash.Sum64String(string(q)),
			Qualifier: q,
			Payload:   payload,
		})
		return true
	})
	return entries, err
}

// LoadSnapshot rebuilds an environment from a file written by
// SaveSnapshot. The stored tracker index replaces opts.Tracker; grammar,
// scheduler, and the rest come from opts as usual.
func LoadSnapshot(path string, opts Options) (*Environment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	var snap snapshotFile
	if err := msgpack.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	if snap.Schema != snapshotSchemaVersion {
		return nil, fmt.Errorf("load snapshot %s: schema %d, want %d", path, snap.Schema, snapshotSchemaVersion)
	}
	if snap.Tracker == nil {
		return nil, fmt.Errorf("load snapshot %s: missing tracker index", path)
	}

	opts.Tracker = modtrack.FromIndex(snap.Tracker)
	env, err := New(opts)
	if err != nil {
		return nil, err
	}

	for _, ent := range snap.Entries {
		if ent.Hash != xxhash.Sum64String(string(ent.Qualifier)) {
			return nil, fmt.Errorf("load snapshot %s: key hash mismatch for %s in %s", path, ent.Qualifier, ent.Table)
		}
		switch ent.Table {
		case env.rawSources.Name():
			v, err := decodePayload[*pysrc.Source](ent.Payload)
			if err != nil {
				return nil, loadErr(path, ent, err)
			}
			env.rawSources.Add(ent.Qualifier, v)
		case env.rawExports.Name():
			v, err := decodePayload[[]string](ent.Payload)
			if err != nil {
				return nil, loadErr(path, ent, err)
			}
			env.rawExports.Add(ent.Qualifier, v)
		case env.sources.Name():
			v, err := decodePayload[*pysrc.Source](ent.Payload)
			if err != nil {
				return nil, loadErr(path, ent, err)
			}
			env.sources.Add(ent.Qualifier, v)
		case env.exports.Name():
			v, err := decodePayload[[]string](ent.Payload)
			if err != nil {
				return nil, loadErr(path, ent, err)
			}
			env.exports.Add(ent.Qualifier, v)
		case env.modules.Name():
			v, err := decodePayload[*pysrc.Module](ent.Payload)
			if err != nil {
				return nil, loadErr(path, ent, err)
			}
			env.modules.Add(ent.Qualifier, v)
		default:
			return nil, fmt.Errorf("load snapshot %s: unknown table %q", path, ent.Table)
		}
	}
	return env, nil
}

func decodePayload[V any](payload []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(payload, &v)
	return v, err
}

func loadErr(path string, ent snapshotEntry, err error) error {
	return fmt.Errorf("load snapshot %s: %s[%s]: %w", path, ent.Table, ent.Qualifier, err)
}
