// Package augment implements the random spatial and intensity
// augmentations applied by the preview pipeline.
//
// Every transform draws its randomness from the *rand.Rand it is handed,
// never from package-level state, so a pipeline seeded with a given value
// always produces the same output. Transforms preserve the volume shape.
package augment

import (
	"math"

	"golang.org/x/exp/rand"

	"augplayground/internal/models"
)

// Transform is one augmentation step
type Transform interface {
	// Name is the canonical transform name, e.g. "RandomAffine"
	Name() string

	// Apply returns the augmented volume. Implementations may modify vol
	// in place and return it.
	Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error)
}

// Range is a closed interval a parameter is sampled from uniformly
type Range struct {
	Lo, Hi float64
}

// Fixed returns a degenerate range that always samples v
func Fixed(v float64) Range {
	return Range{Lo: v, Hi: v}
}

// Symmetric returns (-d, d)
func Symmetric(d float64) Range {
	d = math.Abs(d)
	return Range{Lo: -d, Hi: d}
}

// Sample draws a value in [Lo, Hi)
func (r Range) Sample(rng *rand.Rand) float64 {
	if r.Hi <= r.Lo {
		return r.Lo
	}
	return r.Lo + rng.Float64()*(r.Hi-r.Lo)
}

// IntRange is a closed integer interval
type IntRange struct {
	Lo, Hi int
}

// Sample draws an integer in [Lo, Hi]
func (r IntRange) Sample(rng *rand.Rand) int {
	if r.Hi <= r.Lo {
		return r.Lo
	}
	return r.Lo + rng.Intn(r.Hi-r.Lo+1)
}

// minValue returns the smallest finite voxel, used as the padding value
// for samples that fall outside the volume
func minValue(vol *models.Volume) float64 {
	lo := math.Inf(1)
	for _, v := range vol.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v < lo {
			lo = v
		}
	}
	if math.IsInf(lo, 1) {
		return 0
	}
	return lo
}
