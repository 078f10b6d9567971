/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: graph.go
Description: Coverage graph construction. Folds observed paths into a prefix tree rooted at a
synthetic ENTRY node; nodes with more than one child are branch points. The same generic tree
serves the plain location graph and the calling-context graph.
*/

package coverage

import (
	"errors"
	"fmt"
)

// ErrDisconnected reports stored nodes that cannot be reached from ENTRY
var ErrDisconnected = errors.New("coverage graph is disconnected")

// EntryLabel is the display label of the synthetic root
const EntryLabel = "ENTRY"

// Node is a labelled tree node with ordered children unique by label
type Node[L comparable] struct {
	label    L
	entry    bool
	children []*Node[L]
	index    map[L]*Node[L]
}

func newNode[L comparable](label L) *Node[L] {
	return &Node[L]{label: label, index: make(map[L]*Node[L])}
}

// Label returns the node label (the zero value for ENTRY)
func (n *Node[L]) Label() L { return n.label }

// IsEntry reports whether n is the synthetic root
func (n *Node[L]) IsEntry() bool { return n.entry }

// Children returns the children in insertion order
func (n *Node[L]) Children() []*Node[L] {
	out := make([]*Node[L], len(n.children))
	copy(out, n.children)
	return out
}

// NumChildren returns the number of children
func (n *Node[L]) NumChildren() int { return len(n.children) }

// Child returns the child with the given label
func (n *Node[L]) Child(label L) (*Node[L], bool) {
	c, ok := n.index[label]
	return c, ok
}

// String renders the node as <label>
func (n *Node[L]) String() string {
	if n.entry {
		return "<" + EntryLabel + ">"
	}
	return fmt.Sprintf("<%v>", n.label)
}

func (n *Node[L]) addChild(child *Node[L]) {
	n.children = append(n.children, child)
	n.index[child.label] = child
}

// Edge identifies a parent-child pair by label
type Edge[L comparable] struct {
	Src  L
	Dest L
}

// String renders the edge as E<src -> dest>
func (e Edge[L]) String() string {
	return fmt.Sprintf("E<%v -> %v>", e.Src, e.Dest)
}

// Graph is a prefix tree of observed paths
type Graph[L comparable] struct {
	root  *Node[L]
	nodes []*Node[L]
}

// NewGraph creates a graph holding only the ENTRY node
func NewGraph[L comparable]() *Graph[L] {
	var zero L
	root := newNode(zero)
	root.entry = true
	return &Graph[L]{root: root, nodes: []*Node[L]{root}}
}

// Root returns the ENTRY node
func (g *Graph[L]) Root() *Node[L] { return g.root }

// Nodes returns every stored node in creation order, ENTRY first
func (g *Graph[L]) Nodes() []*Node[L] {
	out := make([]*Node[L], len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of stored nodes including ENTRY
func (g *Graph[L]) Len() int { return len(g.nodes) }

// Accept folds path into the tree, descending into existing children and creating missing ones
func (g *Graph[L]) Accept(path []L) {
	curr := g.root
	for _, label := range path {
		next, ok := curr.Child(label)
		if !ok {
			next = newNode(label)
			curr.addChild(next)
			g.nodes = append(g.nodes, next)
		}
		curr = next
	}
}

// Walk visits nodes breadth-first from ENTRY
func (g *Graph[L]) Walk(visit func(n *Node[L])) {
	queue := []*Node[L]{g.root}
	seen := map[*Node[L]]bool{g.root: true}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		visit(curr)
		for _, child := range curr.children {
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}
}

// Validate checks that every stored node is reachable from ENTRY
func (g *Graph[L]) Validate() error {
	reached := 0
	g.Walk(func(*Node[L]) { reached++ })
	if reached != len(g.nodes) {
		return fmt.Errorf("%w: %d of %d nodes reachable from %s", ErrDisconnected, reached, len(g.nodes), EntryLabel)
	}
	return nil
}

// Branches returns the nodes with more than one child, breadth-first
func (g *Graph[L]) Branches() []*Node[L] {
	var branches []*Node[L]
	g.Walk(func(n *Node[L]) {
		if n.NumChildren() > 1 {
			branches = append(branches, n)
		}
	})
	return branches
}

// Labels returns the distinct non-entry labels in breadth-first order
func (g *Graph[L]) Labels() []L {
	var labels []L
	seen := make(map[L]bool)
	g.Walk(func(n *Node[L]) {
		if n.entry || seen[n.label] {
			return
		}
		seen[n.label] = true
		labels = append(labels, n.label)
	})
	return labels
}
