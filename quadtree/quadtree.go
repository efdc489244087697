// Package quadtree implements the bulk-insertion point-region quad tree
// behind the label collision detector and the persisted spatial index.
//
// Quadrants deliberately overlap: with the default ratio of 0.55 each half
// covers 55% of the parent extent, so the left/right (and bottom/top) halves
// share the central 10%.  An item straddling a midline can therefore still
// descend instead of stalling high in the tree.  The tree supports no
// deletion or rebalancing; Clear re-creates the root.
//
// Nodes live in an append-only arena and refer to each other by index, so
// arena growth never invalidates a reference held as an index.  A Tree is not
// safe for concurrent mutation; FindNear and ForEach may run concurrently
// with each other but not with Insert or Clear.
package quadtree

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/carto/geo"
)

const (
	// DefaultMaxDepth bounds descent from the root.
	DefaultMaxDepth = 8
	// DefaultRatio is the overlapping-quadrant ratio.  Values above 0.5
	// make sibling quadrants overlap.  Persisted indexes bake this into
	// their node extents, so changing it invalidates existing files.
	DefaultRatio = 0.55
)

// Opts configures tree construction.  Zero values select the defaults.
type Opts struct {
	// MaxDepth is the maximum number of descents below the root.
	MaxDepth int
	// Ratio is the fraction of the parent extent covered by each half.
	// Must be in (0, 1].
	Ratio float64
}

// node is one arena entry.  children holds arena indices; 0 means absent
// (node 0 is the root and is never anyone's child).  Quadrant order is
// 0 bottom-left, 1 bottom-right, 2 top-left, 3 top-right.
type node[V any] struct {
	children [4]int32
	extent   geo.BBox
	items    []V
}

func (n *node[V]) countChildren() int {
	total := 0
	for _, nj := range n.children {
		if nj != 0 {
			total++
		}
	}
	return total
}

// Tree is a quad tree over values of type V.  The root extent is fixed at
// construction; items whose boxes do not intersect it are silently dropped.
type Tree[V any] struct {
	maxDepth int
	ratio    float64
	extent   geo.BBox
	nodes    []node[V]
}

// New returns a tree over extent with default depth and ratio.
func New[V any](extent geo.BBox) *Tree[V] {
	t, err := NewWithOpts[V](extent, Opts{})
	if err != nil {
		panic(err) // default opts are always valid
	}
	return t
}

// NewWithOpts returns a tree over extent with the given options.
func NewWithOpts[V any](extent geo.BBox, opts Opts) (*Tree[V], error) {
	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	ratio := opts.Ratio
	if ratio == 0 {
		ratio = DefaultRatio
	}
	if maxDepth < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("quadtree: negative max depth %d", opts.MaxDepth))
	}
	if ratio <= 0 || ratio > 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("quadtree: ratio %v outside (0, 1]", opts.Ratio))
	}
	t := &Tree[V]{
		maxDepth: maxDepth,
		ratio:    ratio,
		extent:   extent,
		nodes:    make([]node[V], 0, 4*maxDepth), // capacity hint, not a bound
	}
	t.nodes = append(t.nodes, node[V]{extent: extent})
	return t, nil
}

// Extent returns the root extent.
func (t *Tree[V]) Extent() geo.BBox { return t.extent }

// Insert stores v at the deepest node whose candidate quadrant fully contains
// box, or wherever the depth budget runs out.  A box that does not intersect
// the tree extent is dropped.
func (t *Tree[V]) Insert(box geo.BBox, v V) {
	if !t.extent.Intersects(box) {
		return
	}
	ni := t.where(box, t.extent, t.maxDepth, 0)
	t.nodes[ni].items = append(t.nodes[ni].items, v)
}

// where finds the arena index of the node box belongs to, allocating missing
// nodes along the way.
func (t *Tree[V]) where(box, ext geo.BBox, height int, ni int32) int32 {
	if height > 0 {
		height--
		x0, x3 := ext.MinX, ext.MaxX
		x2 := x0 + (x3-x0)*t.ratio
		x1 := x3 - (x3-x0)*t.ratio
		y0, y3 := ext.MinY, ext.MaxY
		y2 := y0 + (y3-y0)*t.ratio
		y1 := y3 - (y3-y0)*t.ratio

		if box.MaxY <= y2 { // box fully within the bottom half
			if box.MaxX <= x2 { // bottom-left quadrant
				return t.descend(box, geo.BBox{MinX: x0, MinY: y0, MaxX: x2, MaxY: y2}, height, ni, 0)
			}
			if x1 <= box.MinX { // bottom-right quadrant
				return t.descend(box, geo.BBox{MinX: x1, MinY: y0, MaxX: x3, MaxY: y2}, height, ni, 1)
			}
		}
		if y1 <= box.MinY { // box fully within the top half
			if box.MaxX <= x2 { // top-left quadrant
				return t.descend(box, geo.BBox{MinX: x0, MinY: y1, MaxX: x2, MaxY: y3}, height, ni, 2)
			}
			if x1 <= box.MinX { // top-right quadrant
				return t.descend(box, geo.BBox{MinX: x1, MinY: y1, MaxX: x3, MaxY: y3}, height, ni, 3)
			}
		}
	}
	return ni
}

func (t *Tree[V]) descend(box, ext geo.BBox, height int, ni int32, q int) int32 {
	nj := t.nodes[ni].children[q]
	if nj == 0 {
		nj = int32(len(t.nodes))
		t.nodes = append(t.nodes, node[V]{extent: ext}) // may move all nodes
		t.nodes[ni].children[q] = nj
	}
	return t.where(box, ext, height, nj)
}

// FindNear walks the quadrants overlapping box and reports whether any
// visited item satisfies pred.  The walk short-circuits at the first hit.  A
// box outside the tree extent visits nothing.  Callers needing cancellation
// embed it in pred (returning true aborts; capture a flag in the closure to
// tell abort from hit).
func (t *Tree[V]) FindNear(box geo.BBox, pred func(v V) bool) bool {
	if !t.extent.Intersects(box) {
		return false
	}
	return t.findNear(box, pred, 0)
}

func (t *Tree[V]) findNear(box geo.BBox, pred func(v V) bool, ni int32) bool {
	n := &t.nodes[ni]
	for _, item := range n.items {
		if pred(item) {
			return true
		}
	}
	// One half-plane pair per quadrant suffices: the other two edges of the
	// child extent are shared with this node, which box already overlaps.
	if nj := n.children[0]; nj != 0 {
		c := t.nodes[nj].extent
		if box.MinX <= c.MaxX && box.MinY <= c.MaxY && t.findNear(box, pred, nj) {
			return true
		}
	}
	if nj := n.children[1]; nj != 0 {
		c := t.nodes[nj].extent
		if box.MaxX >= c.MinX && box.MinY <= c.MaxY && t.findNear(box, pred, nj) {
			return true
		}
	}
	if nj := n.children[2]; nj != 0 {
		c := t.nodes[nj].extent
		if box.MinX <= c.MaxX && box.MaxY >= c.MinY && t.findNear(box, pred, nj) {
			return true
		}
	}
	if nj := n.children[3]; nj != 0 {
		c := t.nodes[nj].extent
		if box.MaxX >= c.MinX && box.MaxY >= c.MinY && t.findNear(box, pred, nj) {
			return true
		}
	}
	return false
}

// ForEach visits every item in arena order.  Within a node, items appear in
// insertion order; across nodes, in first-descent order.
func (t *Tree[V]) ForEach(fn func(v V)) {
	for i := range t.nodes {
		for _, item := range t.nodes[i].items {
			fn(item)
		}
	}
}

// Clear drops all nodes and items and re-creates the root.  The extent is
// preserved.
func (t *Tree[V]) Clear() {
	t.nodes = t.nodes[:0]
	t.nodes = append(t.nodes, node[V]{extent: t.extent})
}

// CountItems returns the number of stored items.
func (t *Tree[V]) CountItems() int {
	total := 0
	for i := range t.nodes {
		total += len(t.nodes[i].items)
	}
	return total
}

// CountNodes returns the number of non-transparent nodes, which equals the
// number of records Write emits.
func (t *Tree[V]) CountNodes() int {
	total := 0
	for i := range t.nodes {
		n := &t.nodes[i]
		if !(n.countChildren() == 1 && len(n.items) == 0) {
			total++
		}
	}
	return total
}
