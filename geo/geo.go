// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package geo provides the axis-aligned bounding box shared by the in-memory
// quad tree and the persisted spatial index.  Coordinates are caller-supplied;
// this package performs no projection.
package geo

import (
	"encoding/binary"
	"math"
)

// NumBytes is the size of the on-disk BBox image: four little-endian IEEE-754
// doubles in (MinX, MinY, MaxX, MaxY) order.
const NumBytes = 32

// BBox is an axis-aligned rectangle.  A valid box satisfies MinX <= MaxX and
// MinY <= MaxY.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Valid reports whether the box edges are ordered.
func (b BBox) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Intersects reports whether b and o overlap.  Intervals are closed, so boxes
// that merely touch along an edge or corner intersect.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Contains reports whether o lies entirely within b (edges included).
func (b BBox) Contains(o BBox) bool {
	return b.MinX <= o.MinX && o.MaxX <= b.MaxX &&
		b.MinY <= o.MinY && o.MaxY <= b.MaxY
}

// Expand returns b inflated by margin on all four sides.  A non-positive
// margin returns b unchanged; it does not contract the box.
func (b BBox) Expand(margin float64) BBox {
	if margin <= 0 {
		return b
	}
	return BBox{
		MinX: b.MinX - margin,
		MinY: b.MinY - margin,
		MaxX: b.MaxX + margin,
		MaxY: b.MaxY + margin,
	}
}

// Width returns the x extent of the box.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the y extent of the box.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Span returns the smallest box covering both b and o.
func (b BBox) Span(o BBox) BBox {
	return BBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// PutBBox writes the 32-byte image of b at dst[0:NumBytes].
func PutBBox(dst []byte, b BBox) {
	binary.LittleEndian.PutUint64(dst[0:8], math.Float64bits(b.MinX))
	binary.LittleEndian.PutUint64(dst[8:16], math.Float64bits(b.MinY))
	binary.LittleEndian.PutUint64(dst[16:24], math.Float64bits(b.MaxX))
	binary.LittleEndian.PutUint64(dst[24:32], math.Float64bits(b.MaxY))
}

// GetBBox reads the 32-byte image at src[0:NumBytes].
func GetBBox(src []byte) BBox {
	return BBox{
		MinX: math.Float64frombits(binary.LittleEndian.Uint64(src[0:8])),
		MinY: math.Float64frombits(binary.LittleEndian.Uint64(src[8:16])),
		MaxX: math.Float64frombits(binary.LittleEndian.Uint64(src[16:24])),
		MaxY: math.Float64frombits(binary.LittleEndian.Uint64(src[24:32])),
	}
}
