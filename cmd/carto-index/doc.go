// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
carto-index builds and queries quad-tree spatial index files.

Build an index from a feature file, one feature per line, whitespace
separated, '#' starting a comment:

	minx miny maxx maxy id [offset len]

	carto-index build features.tsv
	carto-index build -compress gzip -o features.index.gz features.tsv

The optional offset and len columns record the byte span of the source
record the feature was derived from, so a consumer of query results can seek
straight to it.  Multiple inputs are indexed in parallel, each to
<input>.index.

Query an index for every feature whose node overlaps a box:

	carto-index query -box 10,10,200,200 features.tsv.index
	carto-index bbox features.tsv.index
	carto-index checksum features.tsv.index

Compressed index files (".gz" gzip, ".sz" snappy) are decompressed into
memory before querying; the record walk needs a seekable cursor.
*/
package main
