package main

import (
	"bytes"
	"fmt"

	"github.com/golang/snappy"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/carto/encoding/fixed"
	"github.com/grailbio/carto/quadtree"
	"github.com/klauspost/compress/gzip"
	"v.io/x/lib/cmdline"
)

type buildFlags struct {
	maxDepth *int
	ratio    *float64
	compress *string
	out      *string
}

func newCmdBuild() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "build",
		Short:    "Build spatial index files from feature files",
		ArgsName: "path...",
	}
	flags := buildFlags{
		maxDepth: cmd.Flags.Int("max-depth", quadtree.DefaultMaxDepth, "Maximum quad-tree depth"),
		ratio:    cmd.Flags.Float64("ratio", quadtree.DefaultRatio, "Overlapping-quadrant ratio, in (0,1]. Readers of the index don't depend on it, but items straddling quadrant midlines stall high in the tree when it is <= 0.5"),
		compress: cmd.Flags.String("compress", "none", "Compression for the output file: none, gzip, or snappy"),
		out:      cmd.Flags.String("o", "", "Output path. Valid only with a single input; default is <input>.index plus a compression suffix"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("build takes at least one feature file")
		}
		if *flags.out != "" && len(argv) != 1 {
			return fmt.Errorf("-o requires exactly one input, got %d", len(argv))
		}
		switch *flags.compress {
		case "none", "gzip", "snappy":
		default:
			return fmt.Errorf("unknown -compress value %q", *flags.compress)
		}
		return traverse.Each(len(argv), func(i int) error {
			return buildOne(argv[i], flags)
		})
	})
	return cmd
}

func outputPath(inPath string, flags buildFlags) string {
	if *flags.out != "" {
		return *flags.out
	}
	path := inPath + ".index"
	switch *flags.compress {
	case "gzip":
		path += ".gz"
	case "snappy":
		path += ".sz"
	}
	return path
}

func buildOne(inPath string, flags buildFlags) (err error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, inPath)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := in.Close(ctx); err == nil {
			err = err2
		}
	}()
	feats, extent, err := parseFeatures(in.Reader(ctx))
	if err != nil {
		return fmt.Errorf("%s: %v", inPath, err)
	}

	tree, err := quadtree.NewWithOpts[fixed.Feature](extent, quadtree.Opts{
		MaxDepth: *flags.maxDepth,
		Ratio:    *flags.ratio,
	})
	if err != nil {
		return err
	}
	for _, f := range feats {
		tree.Insert(f.box, f.val)
	}

	var raw bytes.Buffer
	if err := tree.Write(&raw, fixed.FeatureEncoding{}); err != nil {
		return err
	}
	data, err := compressIndex(raw.Bytes(), *flags.compress)
	if err != nil {
		return err
	}

	outPath := outputPath(inPath, flags)
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return err
	}
	if _, err := out.Writer(ctx).Write(data); err != nil {
		out.Close(ctx) // nolint: errcheck
		return err
	}
	if err := out.Close(ctx); err != nil {
		return err
	}
	log.Printf("%s: indexed %d features in %d nodes, %d bytes -> %s",
		inPath, tree.CountItems(), tree.CountNodes(), len(data), outPath)
	return nil
}

func compressIndex(raw []byte, compress string) ([]byte, error) {
	switch compress {
	case "gzip":
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(raw); err != nil {
			return nil, err
		}
		if err := gz.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "snappy":
		return snappy.Encode(nil, raw), nil
	default:
		return raw, nil
	}
}
