// Package fixed defines the byte-layout contract for values persisted in a
// spatial index file.  A value type is persisted as a fixed-width byte image;
// the reader reconstructs values by consuming exactly Size() bytes per item.
// Variable-length representations cannot satisfy this contract and are
// rejected up front by Validate.
package fixed

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
)

// Encoding converts values of type V to and from their fixed-width byte
// image.  Size must be a positive constant for a given encoding; Put writes
// exactly Size bytes at dst[0:Size] and Get reads exactly Size bytes from
// src[0:Size].  Integers are little-endian.
type Encoding[V any] interface {
	Size() int
	Put(dst []byte, v V)
	Get(src []byte) V
}

// Validate checks that enc defines a usable fixed layout.  It returns an
// errors.Invalid error otherwise.  Both the index serializer and the stream
// reader call this before touching any bytes.
func Validate[V any](enc Encoding[V]) error {
	if enc == nil {
		return errors.E(errors.Invalid, "fixed: nil encoding")
	}
	if enc.Size() <= 0 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("fixed: encoding %T reports non-positive width %d", enc, enc.Size()))
	}
	return nil
}

// Int32 encodes an int32 as 4 little-endian bytes.
type Int32 struct{}

func (Int32) Size() int { return 4 }

func (Int32) Put(dst []byte, v int32) {
	binary.LittleEndian.PutUint32(dst, uint32(v))
}

func (Int32) Get(src []byte) int32 {
	return int32(binary.LittleEndian.Uint32(src))
}

// Int64 encodes an int64 as 8 little-endian bytes.
type Int64 struct{}

func (Int64) Size() int { return 8 }

func (Int64) Put(dst []byte, v int64) {
	binary.LittleEndian.PutUint64(dst, uint64(v))
}

func (Int64) Get(src []byte) int64 {
	return int64(binary.LittleEndian.Uint64(src))
}

// Float64 encodes a float64 as its IEEE-754 bits, little-endian.
type Float64 struct{}

func (Float64) Size() int { return 8 }

func (Float64) Put(dst []byte, v float64) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
}

func (Float64) Get(src []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src))
}

// Feature identifies one indexed feature: a caller-assigned ID plus the byte
// span of the source record it was derived from, so a consumer can seek
// straight to the record after a spatial query.
type Feature struct {
	ID     int64
	Offset int64
	Len    int32
}

// FeatureEncoding is the 20-byte image of a Feature.
type FeatureEncoding struct{}

func (FeatureEncoding) Size() int { return 20 }

func (FeatureEncoding) Put(dst []byte, v Feature) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(v.ID))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(v.Offset))
	binary.LittleEndian.PutUint32(dst[16:20], uint32(v.Len))
}

func (FeatureEncoding) Get(src []byte) Feature {
	return Feature{
		ID:     int64(binary.LittleEndian.Uint64(src[0:8])),
		Offset: int64(binary.LittleEndian.Uint64(src[8:16])),
		Len:    int32(binary.LittleEndian.Uint32(src[16:20])),
	}
}
