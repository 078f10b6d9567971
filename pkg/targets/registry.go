/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: registry.go
Description: Registry of the built-in example targets with their default seed inputs.
*/

package targets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kleascm/akaylee-cfm/pkg/execution"
)

// ErrUnknownTarget is returned for names that are not registered
var ErrUnknownTarget = errors.New("unknown target")

// Spec describes a built-in target
type Spec struct {
	Name        string
	Description string
	Function    execution.TargetFunction
	Seeds       []string
}

// Target wraps the function as an in-process target
func (s Spec) Target(maxSteps int) *execution.FunctionTarget {
	return execution.NewFunctionTarget(s.Name, s.Function, maxSteps)
}

var registry = map[string]Spec{
	"triangle": {
		Name:        "triangle",
		Description: "classifies three digit sides as equilateral, isosceles, scalene or not a triangle",
		Function:    Triangle,
		Seeds:       []string{"123", "112", "111", "121", "211"},
	},
	"triangle3": {
		Name:        "triangle3",
		Description: "one-hot prefix selects one of three embedded triangles",
		Function:    Triangle3,
		Seeds:       []string{"100123456789", "010111222333", "001123121111"},
	},
	"count": {
		Name:        "count",
		Description: "recursively counts lowercase letters of inputs up to ten characters",
		Function:    Count,
		Seeds:       []string{"hello 456"},
	},
	"length3": {
		Name:        "length3",
		Description: "branches on inputs of exactly three characters",
		Function:    LengthThree,
		Seeds:       []string{"a", "abc", "ab"},
	},
	"same2": {
		Name:        "same2",
		Description: "branches on equality of the first two characters",
		Function:    SameTwo,
		Seeds:       []string{"aa", "ab", "bb", "ba"},
	},
	"magic": {
		Name:        "magic",
		Description: "panics on a magic input",
		Function:    Magic,
		Seeds:       []string{"ABCD", "good"},
	},
}

// Lookup returns the target registered under name
func Lookup(name string) (Spec, error) {
	spec, ok := registry[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	spec.Seeds = append([]string(nil), spec.Seeds...)
	return spec, nil
}

// Names returns the registered target names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
