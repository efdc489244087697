package main

import (
	"fmt"
	"os"
	"strconv"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/tsv"
	"v.io/x/lib/cmdline"
)

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name: "checksum",
		Short: `Compute a checksum of index files.
The sum is a seahash over the uncompressed record stream, so it is stable
across the -compress settings the index was stored with`,
		ArgsName: "path...",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("checksum takes at least one index path")
		}
		w := tsv.NewWriter(os.Stdout)
		w.WriteString("PATH\tBYTES\tSUM")
		if err := w.EndLine(); err != nil {
			return err
		}
		for _, path := range argv {
			r, err := openIndex(path)
			if err != nil {
				return err
			}
			h := seahash.New()
			n, err := r.WriteTo(h)
			if err != nil {
				return err
			}
			w.WriteString(path)
			w.WriteString(strconv.FormatInt(n, 10))
			w.WriteString(strconv.FormatUint(h.Sum64(), 16))
			if err := w.EndLine(); err != nil {
				return err
			}
		}
		return w.Flush()
	})
	return cmd
}
