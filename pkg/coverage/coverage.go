/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: coverage.go
Description: Coverage signatures for the Akaylee Fuzzer. A signature is the de-duplicated,
first-occurrence-ordered sequence of trace events of one execution; two executions with the
same signature are coverage-equivalent. Signatures are hashed for fast identity checks.
*/

package coverage

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
)

// Signature is the ordered coverage signature of one execution
type Signature []interfaces.TraceEvent

// SignatureOf removes later repeats from trace, keeping first occurrences in order
func SignatureOf(trace []interfaces.TraceEvent) Signature {
	seen := make(map[interfaces.TraceEvent]struct{}, len(trace))
	sig := make(Signature, 0, len(trace))
	for _, ev := range trace {
		if _, ok := seen[ev]; ok {
			continue
		}
		seen[ev] = struct{}{}
		sig = append(sig, ev)
	}
	return sig
}

// Key returns a stable hash identifying the signature
func (s Signature) Key() string {
	h := sha256.New()
	for _, ev := range s {
		h.Write([]byte(ev.Context.String()))
		h.Write([]byte{0})
		h.Write([]byte(ev.Location.Function))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(ev.Location.Line)))
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Locations projects the signature onto bare locations, de-duplicated in first-occurrence order
func (s Signature) Locations() []interfaces.Location {
	seen := make(map[interfaces.Location]struct{}, len(s))
	locs := make([]interfaces.Location, 0, len(s))
	for _, ev := range s {
		if _, ok := seen[ev.Location]; ok {
			continue
		}
		seen[ev.Location] = struct{}{}
		locs = append(locs, ev.Location)
	}
	return locs
}

// Contains reports whether ev occurs in the signature
func (s Signature) Contains(ev interfaces.TraceEvent) bool {
	for _, e := range s {
		if e == ev {
			return true
		}
	}
	return false
}

// Followers maps each label in labels that occurs in the signature to the set of events
// directly following its occurrences. A label occurring last has an empty follower set.
func (s Signature) Followers(labels map[interfaces.TraceEvent]struct{}) map[interfaces.TraceEvent]map[interfaces.TraceEvent]struct{} {
	out := make(map[interfaces.TraceEvent]map[interfaces.TraceEvent]struct{})
	for i, ev := range s {
		if _, ok := labels[ev]; !ok {
			continue
		}
		set, ok := out[ev]
		if !ok {
			set = make(map[interfaces.TraceEvent]struct{})
			out[ev] = set
		}
		if i+1 < len(s) {
			set[s[i+1]] = struct{}{}
		}
	}
	return out
}

// Events returns the distinct events covered by the signature
func (s Signature) Events() map[interfaces.TraceEvent]struct{} {
	set := make(map[interfaces.TraceEvent]struct{}, len(s))
	for _, ev := range s {
		set[ev] = struct{}{}
	}
	return set
}
