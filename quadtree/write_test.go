package quadtree_test

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/grailbio/carto/encoding/fixed"
	"github.com/grailbio/carto/geo"
	"github.com/grailbio/carto/quadtree"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCorpus(t *testing.T) {
	tree := newTestTree(t)
	var out bytes.Buffer
	require.NoError(t, tree.Write(&out, fixed.Int32{}))

	expect.EQ(t, out.Len(), 252)
	expect.EQ(t, out.Bytes()[0], byte('m'))
	assert.Equal(t, []byte(quadtree.Magic), out.Bytes()[:len(quadtree.Magic)])
	assert.Equal(t, []byte{0, 0, 0, 0}, out.Bytes()[12:16])

	// Writing is a pure read of tree state.
	var again bytes.Buffer
	require.NoError(t, tree.Write(&again, fixed.Int32{}))
	assert.Equal(t, out.Bytes(), again.Bytes())
	expect.EQ(t, tree.CountItems(), 4)
}

func TestWriteRecordCountMatchesCountNodes(t *testing.T) {
	tree := newTestTree(t)
	var out bytes.Buffer
	require.NoError(t, tree.Write(&out, fixed.Int32{}))
	records, items := verifyStream(t, out.Bytes(), 4)
	expect.EQ(t, records, tree.CountNodes())
	expect.EQ(t, items, tree.CountItems())
}

func TestWriteBadEncoding(t *testing.T) {
	tree := newTestTree(t)
	var out bytes.Buffer
	assert.Error(t, tree.Write(&out, zeroWidth{}))
	assert.Error(t, tree.Write(&out, nil))
}

// TestWriteTransparentChainAccounting exercises the case where an opaque
// node's direct child is transparent and the record emitted in its place
// carries items: the parent's offset field must cover those item bytes.
func TestWriteTransparentChainAccounting(t *testing.T) {
	tree := quadtree.New[int32](box(0, 0, 100, 100))
	// Lodges at the root: it straddles every level-1 midline.
	tree.Insert(box(40, 40, 60, 60), 1)
	// Descends the bottom-left spine until it no longer fits a single
	// quadrant (six levels down), leaving a chain of transparent nodes above
	// it.
	tree.Insert(box(1, 1, 2, 2), 2)

	expect.EQ(t, tree.CountNodes(), 2)
	var out bytes.Buffer
	require.NoError(t, tree.Write(&out, fixed.Int32{}))
	// Header + two records, one item each.
	expect.EQ(t, out.Len(), 16+2*44+2*4)
	verifyStream(t, out.Bytes(), 4)
}

func TestWriteRandomOffsetsConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		tree := quadtree.New[int32](box(0, 0, 1000, 1000))
		n := rng.Intn(200)
		for i := 0; i < n; i++ {
			minx := rng.Float64() * 1000
			miny := rng.Float64() * 1000
			tree.Insert(box(minx, miny, minx+rng.Float64()*30, miny+rng.Float64()*30), int32(i))
		}
		var out bytes.Buffer
		require.NoError(t, tree.Write(&out, fixed.Int32{}))
		records, items := verifyStream(t, out.Bytes(), 4)
		expect.EQ(t, records, tree.CountNodes())
		expect.EQ(t, items, tree.CountItems())
	}
}

// verifyStream independently re-walks a serialized index and checks that
// every record's offset field equals the byte length of the descendant
// records that follow its num_children field, and that the stream has no
// trailing bytes.  It returns the record and item counts.
func verifyStream(t *testing.T, data []byte, itemSize int) (records, items int) {
	require.True(t, len(data) >= 16)
	var walk func(pos int) int
	walk = func(pos int) int {
		offset := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		ext := geo.GetBBox(data[pos+4 : pos+4+geo.NumBytes])
		assert.True(t, ext.Valid())
		numShapes := int(binary.LittleEndian.Uint32(data[pos+36 : pos+40]))
		p := pos + 40 + numShapes*itemSize
		numChildren := int(binary.LittleEndian.Uint32(data[p : p+4]))
		p += 4
		childStart := p
		for j := 0; j < numChildren; j++ {
			p = walk(p)
		}
		assert.Equal(t, offset, p-childStart, "record at %d", pos)
		records++
		items += numShapes
		return p
	}
	end := walk(16)
	assert.Equal(t, len(data), end)
	return records, items
}

// zeroWidth is an Encoding with no fixed width; the serializer must refuse it.
type zeroWidth struct{}

func (zeroWidth) Size() int               { return 0 }
func (zeroWidth) Put(dst []byte, v int32) {}
func (zeroWidth) Get(src []byte) int32    { return 0 }
