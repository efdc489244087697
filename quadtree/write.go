package quadtree

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/carto/encoding/fixed"
	"github.com/grailbio/carto/geo"
)

// HeaderSize is the length of the index file header: the magic string padded
// with zero bytes.
const HeaderSize = 16

// Magic is the first 12 bytes of every index file.
const Magic = "mapnik-index"

// nodeFixedBytes is the per-record overhead around the item payload: the
// offset, extent, num_shapes and num_children fields.
const nodeFixedBytes = 4 + geo.NumBytes + 4 + 4

// Write serializes the tree to w in the spatial index format:
//
//	header[16]             "mapnik-index" zero-padded
//	per record, pre-order:
//	  uint32  offset       sub-tree byte length following num_children
//	  bbox    extent       32 bytes
//	  uint32  num_shapes
//	  V[num_shapes]        enc.Size() bytes each
//	  uint32  num_children
//
// A node with exactly one child and no items of its own is transparent: its
// record is skipped and its single child takes its place, compressing
// spine-like chains.  The offset field lets a reader skip a whole sub-tree
// whose extent fails a filter.
//
// Write does not mutate the tree; it may be called repeatedly and the tree
// remains usable.  All integers are little-endian.
func (t *Tree[V]) Write(w io.Writer, enc fixed.Encoding[V]) error {
	if err := fixed.Validate[V](enc); err != nil {
		return err
	}
	var header [HeaderSize]byte
	copy(header[:], Magic)
	if _, err := w.Write(header[:]); err != nil {
		return errors.E(err, "quadtree: write index header")
	}
	ofs := make([]uint32, len(t.nodes))
	t.calcOffsets(ofs, 0, enc.Size())
	var scratch []byte
	return t.writeNode(w, ofs, 0, enc, &scratch)
}

// calcOffsets computes serialized sub-tree sizes.  For a transparent node the
// stored value is 0 (a sentinel; it is never written); for every other node
// it is one plus the sub-tree size, so that a leaf (offset field 0) remains
// distinguishable from the sentinel.  Per-child item accounting resolves
// transparent chains to the opaque descendant actually emitted, so the
// offset field always equals the true byte length of the flattened sub-tree.
func (t *Tree[V]) calcOffsets(ofs []uint32, ni int32, itemSize int) uint32 {
	n := &t.nodes[ni]
	var numChildren, numSubItems, offset uint32
	for _, nj := range n.children {
		if nj == 0 {
			continue
		}
		numChildren++
		numSubItems += uint32(len(t.nodes[t.opaque(nj)].items))
		offset += t.calcOffsets(ofs, nj, itemSize)
	}
	if numChildren == 1 && len(n.items) == 0 {
		ofs[ni] = 0 // transparent node
		return offset
	}
	offset += numChildren * nodeFixedBytes
	offset += numSubItems * uint32(itemSize)
	ofs[ni] = 1 + offset
	return offset
}

// opaque follows a transparent chain down to the node whose record is
// actually emitted in its place.  Every chain terminates: a transparent node
// has exactly one child.
func (t *Tree[V]) opaque(ni int32) int32 {
	for {
		n := &t.nodes[ni]
		if len(n.items) != 0 || n.countChildren() != 1 {
			return ni
		}
		for _, nj := range n.children {
			if nj != 0 {
				ni = nj
				break
			}
		}
	}
}

func (t *Tree[V]) writeNode(w io.Writer, ofs []uint32, ni int32, enc fixed.Encoding[V], scratch *[]byte) error {
	n := &t.nodes[ni]
	if off := ofs[ni]; off != 0 {
		sz := enc.Size()
		need := nodeFixedBytes + len(n.items)*sz
		if cap(*scratch) < need {
			*scratch = make([]byte, need)
		}
		buf := (*scratch)[:need]
		binary.LittleEndian.PutUint32(buf[0:4], off-1)
		geo.PutBBox(buf[4:4+geo.NumBytes], n.extent)
		binary.LittleEndian.PutUint32(buf[36:40], uint32(len(n.items)))
		p := 40
		for _, item := range n.items {
			enc.Put(buf[p:p+sz], item)
			p += sz
		}
		// Transparent children are flattened, but each chain contributes
		// exactly one record, so the raw child count is also the emitted
		// record count.
		binary.LittleEndian.PutUint32(buf[p:p+4], uint32(n.countChildren()))
		if _, err := w.Write(buf); err != nil {
			return errors.E(err, "quadtree: write index node")
		}
	}
	for _, nj := range n.children {
		if nj == 0 {
			continue
		}
		if err := t.writeNode(w, ofs, nj, enc, scratch); err != nil {
			return err
		}
	}
	return nil
}
