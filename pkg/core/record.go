/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: record.go
Description: Coverage record for the Akaylee Fuzzer. Maps every distinct ordered coverage
signature to a bounded, duplicate-free sample of the inputs that produced it. Entries keep
their first-observation order so that downstream model runs are reproducible.
*/

package core

import (
	"sync"

	"github.com/kleascm/akaylee-cfm/pkg/coverage"
)

// DefaultRecordCap is the number of inputs kept per signature
const DefaultRecordCap = 10

// RecordEntry is one signature together with its sampled inputs
type RecordEntry struct {
	Signature coverage.Signature `json:"signature" yaml:"signature"`
	Inputs    []string           `json:"inputs" yaml:"inputs"`
}

// Full reports whether the entry has reached cap
func (e *RecordEntry) Full(cap int) bool {
	return len(e.Inputs) >= cap
}

func (e *RecordEntry) has(input string) bool {
	for _, in := range e.Inputs {
		if in == input {
			return true
		}
	}
	return false
}

// Record maps coverage signatures to input samples
// Entries are frozen once they hold cap inputs; later inputs are dropped
type Record struct {
	cap     int
	entries []*RecordEntry
	index   map[string]*RecordEntry
	mu      sync.RWMutex
}

// NewRecord creates an empty record. cap <= 0 selects DefaultRecordCap.
func NewRecord(cap int) *Record {
	if cap <= 0 {
		cap = DefaultRecordCap
	}
	return &Record{cap: cap, index: make(map[string]*RecordEntry)}
}

// RecordFromEntries rebuilds a record from a snapshot, applying the cap and set semantics
func RecordFromEntries(cap int, entries []RecordEntry) *Record {
	r := NewRecord(cap)
	for _, e := range entries {
		r.ensure(e.Signature)
		for _, in := range e.Inputs {
			r.Observe(e.Signature, in)
		}
	}
	return r
}

// Cap returns the per-signature sample cap
func (r *Record) Cap() int {
	return r.cap
}

// Observe records input under sig. The entry is created on first observation; the input
// is added only while the entry has room and is not already present.
// Returns true if the input was stored.
func (r *Record) Observe(sig coverage.Signature, input string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.ensureLocked(sig)
	if entry.Full(r.cap) || entry.has(input) {
		return false
	}
	entry.Inputs = append(entry.Inputs, input)
	return true
}

func (r *Record) ensure(sig coverage.Signature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(sig)
}

func (r *Record) ensureLocked(sig coverage.Signature) *RecordEntry {
	key := sig.Key()
	entry, ok := r.index[key]
	if !ok {
		entry = &RecordEntry{Signature: append(coverage.Signature(nil), sig...)}
		r.index[key] = entry
		r.entries = append(r.entries, entry)
	}
	return entry
}

// Inputs returns the inputs recorded for sig
func (r *Record) Inputs(sig coverage.Signature) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.index[sig.Key()]
	if !ok {
		return nil
	}
	return append([]string(nil), entry.Inputs...)
}

// Entries returns a deep copy of all entries in first-observation order
func (r *Record) Entries() []RecordEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RecordEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = RecordEntry{
			Signature: append(coverage.Signature(nil), e.Signature...),
			Inputs:    append([]string(nil), e.Inputs...),
		}
	}
	return out
}

// Len returns the number of distinct signatures
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// TotalInputs returns the number of stored inputs across all signatures
func (r *Record) TotalInputs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, e := range r.entries {
		total += len(e.Inputs)
	}
	return total
}
