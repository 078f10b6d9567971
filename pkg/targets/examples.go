/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: examples.go
Description: Instrumented example targets for the Akaylee Fuzzer. Small string functions with
nested calls and data-dependent branches, reporting every executed line to a trace recorder.
*/

package targets

import (
	"fmt"
	"strconv"

	"github.com/kleascm/akaylee-cfm/pkg/trace"
)

// Triangle classifications
const (
	Fail        = -1
	NotTriangle = 0
	Scalene     = 1
	Isosceles   = 2
	Equilateral = 3
)

// digit parses one decimal digit, failing like an integer conversion would
func digit(r rune) (int, error) {
	v, err := strconv.Atoi(string(r))
	if err != nil {
		return 0, fmt.Errorf("invalid side %q: %w", r, err)
	}
	return v, nil
}

// classify returns the triangle kind of a three digit string
func classify(tr *trace.Recorder, s []rune) (int, error) {
	defer tr.Enter("triangle")()

	tr.Line(1)
	if len(s) != 3 {
		tr.Line(2)
		return NotTriangle, nil
	}
	tr.Line(3)
	a, err := digit(s[0])
	if err != nil {
		return Fail, err
	}
	tr.Line(4)
	b, err := digit(s[1])
	if err != nil {
		return Fail, err
	}
	tr.Line(5)
	c, err := digit(s[2])
	if err != nil {
		return Fail, err
	}

	tr.Line(6)
	if a == b {
		tr.Line(7)
		if b == c {
			tr.Line(8)
			return Equilateral, nil
		}
		tr.Line(9)
		return Isosceles, nil
	}
	tr.Line(10)
	if b == c {
		tr.Line(11)
		return Isosceles, nil
	}
	tr.Line(12)
	if a == c {
		tr.Line(13)
		return Isosceles, nil
	}
	tr.Line(14)
	return Scalene, nil
}

// Triangle classifies a triangle given as three digits
func Triangle(tr *trace.Recorder, input string) error {
	_, err := classify(tr, []rune(input))
	return err
}

// Triangle3 selects one of three embedded triangles by a one-hot digit prefix.
// The selected triangle occupies positions 3-5, 6-8 or 9-11.
func Triangle3(tr *trace.Recorder, input string) error {
	defer tr.Enter("triangle3")()
	s := []rune(input)

	tr.Line(1)
	if len(s) != 12 {
		tr.Line(2)
		return nil
	}
	for i, lo := range []int{3, 6, 9} {
		tr.Line(3 + 2*i)
		sel, err := digit(s[i])
		if err != nil {
			return err
		}
		if sel == 1 {
			tr.Line(4 + 2*i)
			_, err := classify(tr, s[lo:lo+3])
			return err
		}
	}
	tr.Line(9)
	return nil
}

// Count returns the number of lowercase letters of strings up to ten characters
func Count(tr *trace.Recorder, input string) error {
	count(tr, []rune(input))
	return nil
}

func count(tr *trace.Recorder, s []rune) int {
	defer tr.Enter("count")()

	tr.Line(1)
	if len(s) > 10 {
		tr.Line(2)
		return -1
	}
	tr.Line(3)
	if len(s) < 1 {
		tr.Line(4)
		return 0
	}
	tr.Line(5)
	prev := count(tr, s[1:])
	tr.Line(6)
	if 'a' <= s[0] && s[0] <= 'z' {
		tr.Line(7)
		return prev + 1
	}
	tr.Line(8)
	return prev
}

// LengthThree branches on whether the input has exactly three characters
func LengthThree(tr *trace.Recorder, input string) error {
	defer tr.Enter("length3")()

	tr.Line(1)
	if len([]rune(input)) == 3 {
		tr.Line(2)
		return nil
	}
	tr.Line(3)
	return nil
}

// SameTwo branches on whether the first two characters are equal
func SameTwo(tr *trace.Recorder, input string) error {
	defer tr.Enter("same2")()
	s := []rune(input)

	tr.Line(1)
	if len(s) < 2 {
		tr.Line(2)
		return nil
	}
	tr.Line(3)
	if s[0] == s[1] {
		tr.Line(4)
		return nil
	}
	tr.Line(5)
	return nil
}

// Magic panics on one magic input and reports two prefix paths
func Magic(tr *trace.Recorder, input string) error {
	defer tr.Enter("magic")()
	data := []byte(input)

	tr.Line(1)
	if len(data) < 4 {
		tr.Line(2)
		return nil
	}
	tr.Line(3)
	if input == "CRSH" {
		panic("magic input detected")
	}
	tr.Line(4)
	if data[0] == 'A' && data[1] == 'B' && data[2] == 'C' {
		tr.Line(5)
	}
	tr.Line(6)
	return nil
}
