/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: store.go
Description: Badger-backed persistence for coverage records. A fuzzing run saves its Record
under a name so a later model run can load it without re-fuzzing. Every record entry is one
key under record/<name>/entry/, written in first-observation order, next to a metadata key.
*/

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/coverage"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// ErrRecordNotFound is returned when no record is stored under a name
var ErrRecordNotFound = errors.New("record not found")

const keyPrefix = "record/"

// RecordMeta describes a stored record
type RecordMeta struct {
	Name      string    `json:"name"`
	Target    string    `json:"target"`
	SessionID string    `json:"session_id"`
	Cap       int       `json:"cap"`
	Entries   int       `json:"entries"`
	Inputs    int       `json:"inputs"`
	SavedAt   time.Time `json:"saved_at"`
}

// storedEvent keeps call context frames explicit so function names may contain any character
type storedEvent struct {
	Frames   []interfaces.Location `json:"frames,omitempty"`
	Location interfaces.Location   `json:"location"`
}

type storedEntry struct {
	Signature []storedEvent `json:"signature"`
	Inputs    []string      `json:"inputs"`
}

// RecordStore persists records in a badger database
type RecordStore struct {
	db     *badger.DB
	logger *logrus.Logger
}

// Open opens (or creates) a store in dir
func Open(dir string, logger *logrus.Logger) (*RecordStore, error) {
	return OpenWithOptions(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a store that lives only as long as the process
func OpenInMemory(logger *logrus.Logger) (*RecordStore, error) {
	return OpenWithOptions(badger.DefaultOptions("").WithInMemory(true), logger)
}

// OpenWithOptions opens a store with explicit badger options. Badger's own logging is
// disabled; store operations are logged through logger.
func OpenWithOptions(opts badger.Options, logger *logrus.Logger) (*RecordStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return &RecordStore{db: db, logger: logger}, nil
}

// Close closes the database
func (s *RecordStore) Close() error {
	return s.db.Close()
}

func metaKey(name string) []byte {
	return []byte(keyPrefix + name + "/meta")
}

func entryPrefix(name string) []byte {
	return []byte(keyPrefix + name + "/entry/")
}

func entryKey(name string, i int) []byte {
	return []byte(fmt.Sprintf("%s%s/entry/%08d", keyPrefix, name, i))
}

// Save replaces the record stored under meta.Name with record
func (s *RecordStore) Save(meta RecordMeta, record *core.Record) error {
	if meta.Name == "" || strings.Contains(meta.Name, "/") {
		return fmt.Errorf("invalid record name %q", meta.Name)
	}

	entries := record.Entries()
	meta.Cap = record.Cap()
	meta.Entries = len(entries)
	meta.Inputs = record.TotalInputs()
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now()
	}

	if err := s.db.DropPrefix([]byte(keyPrefix + meta.Name + "/")); err != nil {
		return fmt.Errorf("failed to clear record %s: %w", meta.Name, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, e := range entries {
		data, err := json.Marshal(encodeEntry(e))
		if err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", i, err)
		}
		if err := wb.Set(entryKey(meta.Name, i), data); err != nil {
			return fmt.Errorf("failed to write entry %d: %w", i, err)
		}
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode record metadata: %w", err)
	}
	if err := wb.Set(metaKey(meta.Name), metaData); err != nil {
		return fmt.Errorf("failed to write record metadata: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to save record %s: %w", meta.Name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"name":    meta.Name,
		"entries": meta.Entries,
		"inputs":  meta.Inputs,
	}).Info("Record saved")
	return nil
}

// Load rebuilds the record stored under name
func (s *RecordStore) Load(name string) (*core.Record, RecordMeta, error) {
	var meta RecordMeta
	var entries []core.RecordEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, name)
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("failed to decode record metadata: %w", err)
		}

		prefix := entryPrefix(name)
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
		defer it.Close()
		// keys are zero-padded, so iteration order is save order
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var se storedEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &se)
			}); err != nil {
				return fmt.Errorf("failed to decode entry %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, decodeEntry(se))
		}
		return nil
	})
	if err != nil {
		return nil, RecordMeta{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"name":    name,
		"entries": len(entries),
	}).Debug("Record loaded")
	return core.RecordFromEntries(meta.Cap, entries), meta, nil
}

// List returns the metadata of every stored record, sorted by name
func (s *RecordStore) List() ([]RecordMeta, error) {
	var metas []RecordMeta
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(keyPrefix)
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 10, Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !strings.HasSuffix(string(it.Item().Key()), "/meta") {
				continue
			}
			var meta RecordMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			metas = append(metas, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// Delete removes the record stored under name
func (s *RecordStore) Delete(name string) error {
	if err := s.db.DropPrefix([]byte(keyPrefix + name + "/")); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", name, err)
	}
	return nil
}

func encodeEntry(e core.RecordEntry) storedEntry {
	se := storedEntry{Signature: make([]storedEvent, len(e.Signature)), Inputs: e.Inputs}
	for i, ev := range e.Signature {
		se.Signature[i] = storedEvent{Frames: ev.Context.Frames(), Location: ev.Location}
	}
	return se
}

func decodeEntry(se storedEntry) core.RecordEntry {
	sig := make(coverage.Signature, len(se.Signature))
	for i, ev := range se.Signature {
		sig[i] = interfaces.TraceEvent{Context: interfaces.NewCallContext(ev.Frames...), Location: ev.Location}
	}
	return core.RecordEntry{Signature: sig, Inputs: se.Inputs}
}
