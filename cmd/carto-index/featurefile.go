package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/carto/encoding/fixed"
	"github.com/grailbio/carto/geo"
	"github.com/pkg/errors"
)

// feature is one input row: a bounding box plus the identity of the source
// record it came from.
type feature struct {
	box geo.BBox
	val fixed.Feature
}

// parseFeatures reads the feature format described in doc.go.  It returns
// the features and the union of their boxes.
func parseFeatures(r io.Reader) ([]feature, geo.BBox, error) {
	var (
		feats  []feature
		extent geo.BBox
	)
	scanner := bufio.NewScanner(r)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 && len(fields) != 7 {
			return nil, geo.BBox{}, errors.Errorf("line %d: want 5 or 7 columns, got %d", lineno, len(fields))
		}
		var coords [4]float64
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, geo.BBox{}, errors.Wrapf(err, "line %d: column %d", lineno, i+1)
			}
			coords[i] = v
		}
		box := geo.BBox{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}
		if !box.Valid() {
			return nil, geo.BBox{}, errors.Errorf("line %d: box %v has crossed edges", lineno, box)
		}
		id, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, geo.BBox{}, errors.Wrapf(err, "line %d: feature id", lineno)
		}
		val := fixed.Feature{ID: id}
		if len(fields) == 7 {
			if val.Offset, err = strconv.ParseInt(fields[5], 10, 64); err != nil {
				return nil, geo.BBox{}, errors.Wrapf(err, "line %d: feature offset", lineno)
			}
			length, err := strconv.ParseInt(fields[6], 10, 32)
			if err != nil {
				return nil, geo.BBox{}, errors.Wrapf(err, "line %d: feature length", lineno)
			}
			val.Len = int32(length)
		}
		if len(feats) == 0 {
			extent = box
		} else {
			extent = extent.Span(box)
		}
		feats = append(feats, feature{box: box, val: val})
	}
	if err := scanner.Err(); err != nil {
		return nil, geo.BBox{}, errors.Wrap(err, "reading feature file")
	}
	if len(feats) == 0 {
		return nil, geo.BBox{}, errors.New("feature file contains no features")
	}
	return feats, extent, nil
}
