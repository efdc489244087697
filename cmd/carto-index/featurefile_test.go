package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/grailbio/carto/encoding/fixed"
	"github.com/grailbio/carto/geo"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeatures(t *testing.T) {
	in := strings.NewReader(`
# comment line
10 10 20 20 1
30 30 40 40 2 1024 512

30.5 10 40 20 3
`)
	feats, extent, err := parseFeatures(in)
	require.NoError(t, err)
	require.Len(t, feats, 3)
	expect.EQ(t, extent, geo.BBox{MinX: 10, MinY: 10, MaxX: 40, MaxY: 40})
	expect.EQ(t, feats[0].val, fixed.Feature{ID: 1})
	expect.EQ(t, feats[1].val, fixed.Feature{ID: 2, Offset: 1024, Len: 512})
	expect.EQ(t, feats[1].box, geo.BBox{MinX: 30, MinY: 30, MaxX: 40, MaxY: 40})
	expect.EQ(t, feats[2].box.MinX, 30.5)
}

func TestParseFeaturesErrors(t *testing.T) {
	for _, bad := range []string{
		"10 10 20 20",            // too few columns
		"10 10 20 20 1 1024",     // six columns
		"x 10 20 20 1",           // bad coordinate
		"10 10 20 20 notanumber", // bad id
		"20 10 10 20 1",          // crossed edges
		"",                       // no features at all
		"# only comments\n\n",
	} {
		_, _, err := parseFeatures(strings.NewReader(bad))
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseBox(t *testing.T) {
	b, err := parseBox("1,2,3.5,4")
	require.NoError(t, err)
	expect.EQ(t, b, geo.BBox{MinX: 1, MinY: 2, MaxX: 3.5, MaxY: 4})

	_, err = parseBox("1,2,3")
	assert.Error(t, err)
	_, err = parseBox("3,2,1,4")
	assert.Error(t, err)
	_, err = parseBox("a,2,3,4")
	assert.Error(t, err)
}

func TestCompressIndexRoundTrip(t *testing.T) {
	raw := []byte("mapnik-index\x00\x00\x00\x00 pretend record stream")

	data, err := compressIndex(raw, "none")
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	data, err = compressIndex(raw, "gzip")
	require.NoError(t, err)
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	back, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, raw, back)

	data, err = compressIndex(raw, "snappy")
	require.NoError(t, err)
	back, err = snappy.Decode(nil, data)
	require.NoError(t, err)
	assert.Equal(t, raw, back)
}

func TestOutputPath(t *testing.T) {
	newFlags := func(compress, out string) buildFlags {
		return buildFlags{compress: &compress, out: &out}
	}
	expect.EQ(t, outputPath("a.tsv", newFlags("none", "")), "a.tsv.index")
	expect.EQ(t, outputPath("a.tsv", newFlags("gzip", "")), "a.tsv.index.gz")
	expect.EQ(t, outputPath("a.tsv", newFlags("snappy", "")), "a.tsv.index.sz")
	expect.EQ(t, outputPath("a.tsv", newFlags("gzip", "custom.out")), "custom.out")
}
