// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package spatialindex reads serialized quad-tree index files without
// reconstructing the tree in memory.  A query walks the record stream in
// pre-order, skipping every sub-tree whose extent fails the caller's filter
// using the offset field embedded in each record.
//
// The reader is stateless apart from the caller's stream cursor; the stream
// must support forward seeks (io.ReadSeeker).
package spatialindex

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/carto/encoding/fixed"
	"github.com/grailbio/carto/geo"
	"github.com/grailbio/carto/quadtree"
)

// Filter prunes the walk: a node record whose extent fails Pass is skipped
// along with its entire sub-tree.
type Filter interface {
	Pass(ext geo.BBox) bool
}

// InBox is the canonical filter: it passes node extents intersecting Box.
type InBox struct {
	Box geo.BBox
}

// FilterInBox returns an InBox filter over box.
func FilterInBox(box geo.BBox) InBox { return InBox{Box: box} }

// Pass implements Filter.
func (f InBox) Pass(ext geo.BBox) bool { return ext.Intersects(f.Box) }

// CheckHeader seeks to the start of r and reports whether it begins with the
// index magic.
func CheckHeader(r io.ReadSeeker) bool {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false
	}
	var header [quadtree.HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return false
	}
	return bytes.Equal(header[:len(quadtree.Magic)], []byte(quadtree.Magic))
}

// Index reads values of type V from a serialized index.  The encoding's
// width must match the one the index was written with; the format itself
// does not record it.
type Index[V any] struct {
	enc fixed.Encoding[V]
}

// New returns an Index reading values via enc.  It fails with an
// errors.Invalid error when enc does not define a fixed positive width.
func New[V any](enc fixed.Encoding[V]) (*Index[V], error) {
	if err := fixed.Validate[V](enc); err != nil {
		return nil, err
	}
	return &Index[V]{enc: enc}, nil
}

// BoundingBox validates the header and returns the extent of the root
// record.
func (ix *Index[V]) BoundingBox(r io.ReadSeeker) (geo.BBox, error) {
	if !CheckHeader(r) {
		return geo.BBox{}, errors.E(errors.Invalid, "spatialindex: bad magic in index header")
	}
	if _, err := r.Seek(4, io.SeekCurrent); err != nil { // skip the root's offset field
		return geo.BBox{}, errors.E(err, "spatialindex: seek to root extent")
	}
	var buf [geo.NumBytes]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return geo.BBox{}, errors.E(err, "spatialindex: read root extent")
	}
	return geo.GetBBox(buf[:]), nil
}

// Query validates the header and returns every value whose owning node
// passes filter, in pre-order; within a node, in insertion order.
func (ix *Index[V]) Query(filter Filter, r io.ReadSeeker) ([]V, error) {
	if !CheckHeader(r) {
		return nil, errors.E(errors.Invalid, "spatialindex: bad magic in index header")
	}
	var results []V
	if err := ix.queryNode(filter, r, &results, -1); err != nil {
		return nil, err
	}
	return results, nil
}

// QueryFirstN is Query capped at n values.  The result is a prefix of what
// Query would return under the same filter.
func (ix *Index[V]) QueryFirstN(filter Filter, r io.ReadSeeker, n int) ([]V, error) {
	if !CheckHeader(r) {
		return nil, errors.E(errors.Invalid, "spatialindex: bad magic in index header")
	}
	if n < 0 {
		n = 0
	}
	var results []V
	if err := ix.queryNode(filter, r, &results, n); err != nil {
		return nil, err
	}
	return results, nil
}

// queryNode consumes one node record.  limit < 0 means unbounded.  Once the
// limit is reached the walk returns at each recursion entry without
// repositioning the cursor; within a node all num_shapes items are consumed
// even when only some fit the budget, so the cursor lands on the
// num_children field regardless.
func (ix *Index[V]) queryNode(filter Filter, r io.ReadSeeker, results *[]V, limit int) error {
	if limit >= 0 && len(*results) >= limit {
		return nil
	}
	var hdr [4 + geo.NumBytes + 4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errors.E(err, "spatialindex: read node record")
	}
	offset := binary.LittleEndian.Uint32(hdr[0:4])
	nodeExt := geo.GetBBox(hdr[4 : 4+geo.NumBytes])
	numShapes := binary.LittleEndian.Uint32(hdr[36:40])
	sz := ix.enc.Size()

	if !filter.Pass(nodeExt) {
		// Skip the items, the num_children field, and every descendant
		// record in one seek.
		skip := int64(offset) + int64(numShapes)*int64(sz) + 4
		if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
			return errors.E(err, "spatialindex: skip filtered sub-tree")
		}
		return nil
	}

	if numShapes > 0 {
		buf := make([]byte, int(numShapes)*sz)
		if _, err := io.ReadFull(r, buf); err != nil {
			return errors.E(err, "spatialindex: read node items")
		}
		for i := 0; i < int(numShapes); i++ {
			if limit < 0 || len(*results) < limit {
				*results = append(*results, ix.enc.Get(buf[i*sz:(i+1)*sz]))
			}
		}
	}

	var cbuf [4]byte
	if _, err := io.ReadFull(r, cbuf[:]); err != nil {
		return errors.E(err, "spatialindex: read child count")
	}
	numChildren := binary.LittleEndian.Uint32(cbuf[:])
	for j := uint32(0); j < numChildren; j++ {
		if err := ix.queryNode(filter, r, results, limit); err != nil {
			return err
		}
	}
	return nil
}
