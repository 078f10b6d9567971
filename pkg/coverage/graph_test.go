/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: graph_test.go
Description: Tests for the coverage prefix tree. Covers path folding, branch detection,
label listing and the connectivity check.
*/

package coverage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGraphAccept tests that shared prefixes are folded into one path
func TestGraphAccept(t *testing.T) {
	g := NewGraph[string]()
	g.Accept([]string{"a", "b", "c"})
	g.Accept([]string{"a", "b", "d"})
	g.Accept([]string{"a", "b", "c"})

	// ENTRY, a, b, c, d
	assert.Equal(t, 5, g.Len())
	require.NoError(t, g.Validate())

	a, ok := g.Root().Child("a")
	require.True(t, ok)
	b, ok := a.Child("b")
	require.True(t, ok)
	assert.Equal(t, 2, b.NumChildren())
	assert.Equal(t, "c", b.Children()[0].Label())
	assert.Equal(t, "d", b.Children()[1].Label())

	assert.True(t, g.Root().IsEntry())
	assert.Equal(t, "<ENTRY>", g.Root().String())
	assert.Equal(t, "<b>", b.String())
}

// TestGraphBranches tests that only nodes with several children are branches
func TestGraphBranches(t *testing.T) {
	g := NewGraph[string]()
	g.Accept([]string{"a", "b", "c"})
	g.Accept([]string{"a", "b", "d", "e"})
	g.Accept([]string{"a", "b", "d", "f"})
	g.Accept([]string{"a", "x"})

	var labels []string
	for _, n := range g.Branches() {
		labels = append(labels, n.Label())
	}
	// breadth-first order
	assert.Equal(t, []string{"a", "b", "d"}, labels)
}

// TestGraphSamePrefixDifferentParents tests that a label may occur under several parents
func TestGraphSamePrefixDifferentParents(t *testing.T) {
	g := NewGraph[string]()
	g.Accept([]string{"a", "x", "c"})
	g.Accept([]string{"a", "y", "c"})

	// c occurs twice as a node but once as a label
	assert.Equal(t, 6, g.Len())
	assert.Equal(t, []string{"a", "x", "y", "c"}, g.Labels())
}

// TestGraphDisconnected tests that unreachable stored nodes are reported
func TestGraphDisconnected(t *testing.T) {
	g := NewGraph[string]()
	g.Accept([]string{"a"})
	g.nodes = append(g.nodes, newNode("orphan"))

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDisconnected))
}

// TestEdgeString tests the edge display form
func TestEdgeString(t *testing.T) {
	e := Edge[string]{Src: "f:1", Dest: "f:2"}
	assert.Equal(t, "E<f:1 -> f:2>", e.String())
}
