package main

// See doc.go for documentation.

import (
	"log"

	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

func main() {
	shutdown := grail.Init()
	defer shutdown()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "carto-index",
			Short:    "Build and query quad-tree spatial index files",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdBuild(),
				newCmdQuery(),
				newCmdBBox(),
				newCmdChecksum(),
			},
		})
}
