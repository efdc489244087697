// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package collision decides whether a candidate label placement collides
// with labels already placed, so labels don't appear within a given distance
// of each other.  It is a thin policy layer over the quad tree: a margin
// inflates the candidate box before intersection testing, and a repeat
// distance keeps labels with identical text apart even when their boxes are
// clear of each other.
package collision

import (
	farm "github.com/dgryski/go-farm"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/carto/geo"
	"github.com/grailbio/carto/quadtree"
)

// Label is one placed label: its bounding box and its text.  Text may be
// empty.  The hash is a farm hash of Text, compared before the string itself
// so repeat-distance walks reject mismatched labels without a string
// comparison.
type Label struct {
	Box  geo.BBox
	Text string
	hash uint64
}

func textHash(text string) uint64 {
	return farm.Hash64(gunsafe.StringToBytes(text))
}

// Detector answers placement queries over a fixed extent.  It is not safe
// for concurrent mutation.
type Detector struct {
	tree *quadtree.Tree[Label]
}

// New returns a detector over extent.
func New(extent geo.BBox) *Detector {
	return &Detector{tree: quadtree.New[Label](extent)}
}

// Insert records a placed label with empty text.  Labels are never
// deduplicated.
func (d *Detector) Insert(box geo.BBox) {
	d.InsertLabel(box, "")
}

// InsertLabel records a placed label with its text.
func (d *Detector) InsertLabel(box geo.BBox, text string) {
	d.tree.Insert(box, Label{Box: box, Text: text, hash: textHash(text)})
}

// HasPlacement reports whether box, inflated by margin on all sides, is
// clear of every recorded label.
func (d *Detector) HasPlacement(box geo.BBox, margin float64) bool {
	marginBox := box.Expand(margin)
	return !d.tree.FindNear(marginBox, func(l Label) bool {
		return l.Box.Intersects(marginBox)
	})
}

// HasPlacementRepeat is HasPlacement with a repeat-distance policy: a
// recorded label with the same text blocks placement anywhere within
// repeatDistance of box, even outside the margin.  When repeatDistance does
// not exceed margin the margin check already dominates and the repeat
// machinery is skipped.
func (d *Detector) HasPlacementRepeat(box geo.BBox, margin float64, text string, repeatDistance float64) bool {
	if repeatDistance <= margin {
		return d.HasPlacement(box, margin)
	}
	marginBox := box.Expand(margin)
	repeatBox := box.Expand(repeatDistance)
	h := textHash(text)
	// The walk is filtered by the larger repeat box.  Testing it first means
	// the common miss costs one intersection test instead of two.
	return !d.tree.FindNear(repeatBox, func(l Label) bool {
		if !l.Box.Intersects(repeatBox) {
			return false
		}
		if l.Box.Intersects(marginBox) {
			return true
		}
		return l.hash == h && l.Text == text
	})
}

// Clear removes every recorded label.  The extent is preserved.
func (d *Detector) Clear() {
	d.tree.Clear()
}

// Extent returns the detector's extent.
func (d *Detector) Extent() geo.BBox {
	return d.tree.Extent()
}

// ForEach visits every recorded label.
func (d *Detector) ForEach(fn func(l Label)) {
	d.tree.ForEach(fn)
}
