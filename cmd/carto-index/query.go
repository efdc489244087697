package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/carto/encoding/fixed"
	"github.com/grailbio/carto/encoding/spatialindex"
	"github.com/grailbio/carto/geo"
	"github.com/klauspost/compress/gzip"
	"v.io/x/lib/cmdline"
)

func newCmdQuery() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "query",
		Short:    "List features whose index node overlaps a box",
		ArgsName: "path",
	}
	boxFlag := cmd.Flags.String("box", "", "Query box as minx,miny,maxx,maxy. Defaults to the index's own extent")
	firstN := cmd.Flags.Int("first-n", 0, "Stop after this many results; 0 means unlimited")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("query takes one index path, but got %v", argv)
		}
		return runQuery(argv[0], *boxFlag, *firstN)
	})
	return cmd
}

func newCmdBBox() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "bbox",
		Short:    "Print the extent stored in an index file",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("bbox takes one index path, but got %v", argv)
		}
		r, err := openIndex(argv[0])
		if err != nil {
			return err
		}
		ix, err := spatialindex.New[fixed.Feature](fixed.FeatureEncoding{})
		if err != nil {
			return err
		}
		box, err := ix.BoundingBox(r)
		if err != nil {
			return err
		}
		fmt.Printf("%g %g %g %g\n", box.MinX, box.MinY, box.MaxX, box.MaxY)
		return nil
	})
	return cmd
}

func runQuery(path, boxArg string, firstN int) error {
	r, err := openIndex(path)
	if err != nil {
		return err
	}
	ix, err := spatialindex.New[fixed.Feature](fixed.FeatureEncoding{})
	if err != nil {
		return err
	}
	var box geo.BBox
	if boxArg == "" {
		if box, err = ix.BoundingBox(r); err != nil {
			return err
		}
	} else if box, err = parseBox(boxArg); err != nil {
		return err
	}

	filter := spatialindex.FilterInBox(box)
	var results []fixed.Feature
	if firstN > 0 {
		results, err = ix.QueryFirstN(filter, r, firstN)
	} else {
		results, err = ix.Query(filter, r)
	}
	if err != nil {
		return err
	}

	w := tsv.NewWriter(os.Stdout)
	w.WriteString("ID\tOFFSET\tLEN")
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, f := range results {
		w.WriteString(strconv.FormatInt(f.ID, 10))
		w.WriteString(strconv.FormatInt(f.Offset, 10))
		w.WriteString(strconv.FormatInt(int64(f.Len), 10))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

func parseBox(arg string) (geo.BBox, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 4 {
		return geo.BBox{}, fmt.Errorf("-box wants minx,miny,maxx,maxy, got %q", arg)
	}
	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.BBox{}, fmt.Errorf("-box coordinate %q: %v", p, err)
		}
		coords[i] = v
	}
	box := geo.BBox{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}
	if !box.Valid() {
		return geo.BBox{}, fmt.Errorf("-box %q has crossed edges", arg)
	}
	return box, nil
}

// openIndex loads an index file fully into memory, decompressing by suffix,
// and returns a seekable cursor over the raw record stream.
func openIndex(path string) (*bytes.Reader, error) {
	ctx := vcontext.Background()
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close(ctx) // nolint: errcheck
	data, err := io.ReadAll(f.Reader(ctx))
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if data, err = io.ReadAll(gz); err != nil {
			return nil, err
		}
		if err := gz.Close(); err != nil {
			return nil, err
		}
	case strings.HasSuffix(path, ".sz"):
		if data, err = snappy.Decode(nil, data); err != nil {
			return nil, err
		}
	}
	return bytes.NewReader(data), nil
}
