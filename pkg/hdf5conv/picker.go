// Package hdf5conv converts HDF5 files holding a 3D or 4D scan into
// gzip-compressed NIfTI.
//
// The dataset to convert is chosen by name: every numeric dataset of rank
// 3 or 4 is scored, and the best scoring one wins.
package hdf5conv

import (
	"sort"
	"strings"

	"augplayground/internal/apperror"
)

// DatasetInfo describes one dataset found while walking a file
type DatasetInfo struct {
	// Name is the dataset path without the leading slash, e.g. "scans/image"
	Name string

	// Shape is the dataset extent in storage (row-major) order
	Shape []int

	// Numeric is true for integer and floating point datasets
	Numeric bool
}

// Candidate reports whether a dataset can be converted at all
func (d DatasetInfo) Candidate() bool {
	return d.Numeric && (len(d.Shape) == 3 || len(d.Shape) == 4)
}

// Score rates a dataset name: +3 when it mentions "image", +2 when it
// mentions "volume" or "data". Matching is case-insensitive.
func Score(name string) int {
	lower := strings.ToLower(name)
	score := 0
	if strings.Contains(lower, "image") {
		score += 3
	}
	if strings.Contains(lower, "volume") || strings.Contains(lower, "data") {
		score += 2
	}
	return score
}

// Pick returns the highest scoring candidate, breaking ties by the
// lexicographically smallest name
func Pick(datasets []DatasetInfo) (DatasetInfo, error) {
	var candidates []DatasetInfo
	for _, d := range datasets {
		if d.Candidate() {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return DatasetInfo{}, apperror.InvalidInput("No 3D or 4D numeric dataset found in HDF5 file.")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := Score(candidates[i].Name), Score(candidates[j].Name)
		if si != sj {
			return si > sj
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], nil
}
