/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scheduler.go
Description: Power schedules for seed selection in the Akaylee Fuzzer. A schedule assigns every
seed an energy and samples seeds with probability proportional to their normalized energy.
*/

package core

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// PowerSchedule defines the interface for pluggable seed selection.
// Allows the mutation fuzzer to weight population members differently.
type PowerSchedule interface {
	// AssignEnergy sets the energy of every seed in the population.
	AssignEnergy(population []*Seed)
	// Choose samples one seed proportionally to its normalized energy.
	Choose(rng *rand.Rand, population []*Seed) (*Seed, error)
}

// UniformSchedule gives every seed the same energy.
type UniformSchedule struct{}

// NewUniformSchedule creates a new UniformSchedule instance.
func NewUniformSchedule() *UniformSchedule {
	return &UniformSchedule{}
}

// AssignEnergy sets every energy to 1.
func (s *UniformSchedule) AssignEnergy(population []*Seed) {
	for _, seed := range population {
		seed.Energy = 1
	}
}

// Choose assigns energies and samples one seed.
func (s *UniformSchedule) Choose(rng *rand.Rand, population []*Seed) (*Seed, error) {
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}
	s.AssignEnergy(population)
	return chooseByEnergy(rng, population), nil
}

// NormalizedEnergy returns energy/sum(energy) per seed. A population whose energies sum to
// zero is treated as uniform.
func NormalizedEnergy(population []*Seed) []float64 {
	weights := make([]float64, len(population))
	for i, seed := range population {
		if seed.Energy > 0 {
			weights[i] = seed.Energy
		}
	}
	total := floats.Sum(weights)
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}
	floats.Scale(1/total, weights)
	return weights
}

// chooseByEnergy draws once from the cumulative normalized energy
func chooseByEnergy(rng *rand.Rand, population []*Seed) *Seed {
	weights := NormalizedEnergy(population)
	cumulative := floats.CumSum(make([]float64, len(weights)), weights)
	r := rng.Float64()
	for i, c := range cumulative {
		if r < c {
			return population[i]
		}
	}
	return population[len(population)-1]
}
