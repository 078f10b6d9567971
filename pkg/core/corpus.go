/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: corpus.go
Description: Seed population for the Akaylee Fuzzer. The population grows monotonically: seeds
are appended whenever a run reveals a new coverage signature and are never removed. Provides
thread-safe access so reporters and sessions can inspect it while fuzzing runs.
*/

package core

import (
	"math/rand"
	"sync"
)

// Population manages the seeds available to the power schedule
type Population struct {
	seeds []*Seed
	byID  map[string]*Seed
	mu    sync.RWMutex
}

// NewPopulation creates a population holding the given seeds
func NewPopulation(seeds ...*Seed) *Population {
	p := &Population{byID: make(map[string]*Seed)}
	for _, s := range seeds {
		p.Add(s)
	}
	return p
}

// Add appends a seed. Adding a seed whose ID is already present is a no-op.
func (p *Population) Add(seed *Seed) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[seed.ID]; exists {
		return
	}
	p.seeds = append(p.seeds, seed)
	p.byID[seed.ID] = seed
}

// Get retrieves a seed by ID
// Returns nil if the seed doesn't exist
func (p *Population) Get(id string) *Seed {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byID[id]
}

// Seeds returns the seeds in insertion order. The slice is a copy; the seeds are shared.
func (p *Population) Seeds() []*Seed {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Seed, len(p.seeds))
	copy(out, p.seeds)
	return out
}

// Size returns the current number of seeds
func (p *Population) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.seeds)
}

// Choose samples a seed through the schedule while holding the population lock,
// since schedules rewrite seed energies
func (p *Population) Choose(rng *rand.Rand, schedule PowerSchedule) (*Seed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return schedule.Choose(rng, p.seeds)
}

// GetStats returns population statistics
func (p *Population) GetStats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make(map[string]interface{})
	stats["size"] = len(p.seeds)

	totalEnergy := 0.0
	withCoverage := 0
	for _, s := range p.seeds {
		totalEnergy += s.Energy
		if s.Coverage != nil {
			withCoverage++
		}
	}
	stats["total_energy"] = totalEnergy
	stats["with_coverage"] = withCoverage
	return stats
}
