package augment

import (
	"math"

	"augplayground/internal/models"
)

const edgeTolerance = 1e-6

// sampleTrilinear interpolates vol at a fractional voxel position. Points
// outside the volume return pad.
func sampleTrilinear(vol *models.Volume, x, y, z, pad float64) float64 {
	w, h, d := float64(vol.Width-1), float64(vol.Height-1), float64(vol.Depth-1)
	if x < -edgeTolerance || y < -edgeTolerance || z < -edgeTolerance ||
		x > w+edgeTolerance || y > h+edgeTolerance || z > d+edgeTolerance {
		return pad
	}
	return sampleClamped(vol, x, y, z)
}

// sampleClamped interpolates vol, clamping the position into the volume
func sampleClamped(vol *models.Volume, x, y, z float64) float64 {
	x0, x1, fx := cell(x, vol.Width)
	y0, y1, fy := cell(y, vol.Height)
	z0, z1, fz := cell(z, vol.Depth)

	c00 := lerp(vol.At(x0, y0, z0), vol.At(x1, y0, z0), fx)
	c10 := lerp(vol.At(x0, y1, z0), vol.At(x1, y1, z0), fx)
	c01 := lerp(vol.At(x0, y0, z1), vol.At(x1, y0, z1), fx)
	c11 := lerp(vol.At(x0, y1, z1), vol.At(x1, y1, z1), fx)

	c0 := lerp(c00, c10, fy)
	c1 := lerp(c01, c11, fy)
	return lerp(c0, c1, fz)
}

// cell returns the two neighbouring indices around p and the fractional
// weight of the upper one
func cell(p float64, n int) (int, int, float64) {
	if n == 1 {
		return 0, 0, 0
	}
	if p <= 0 {
		return 0, 0, 0
	}
	top := float64(n - 1)
	if p >= top {
		return n - 1, n - 1, 0
	}
	lo := int(math.Floor(p))
	return lo, lo + 1, p - float64(lo)
}

func lerp(a, b, t float64) float64 {
	if t == 0 {
		return a
	}
	return a + (b-a)*t
}

// resampleLine linearly resamples src onto n evenly spaced points spanning
// the same extent
func resampleLine(src []float64, n int) []float64 {
	out := make([]float64, n)
	m := len(src)
	if m == 1 || n == 1 {
		for i := range out {
			out[i] = src[m/2]
		}
		return out
	}
	scale := float64(m-1) / float64(n-1)
	for i := range out {
		p := float64(i) * scale
		lo := int(math.Floor(p))
		if lo >= m-1 {
			out[i] = src[m-1]
			continue
		}
		out[i] = lerp(src[lo], src[lo+1], p-float64(lo))
	}
	return out
}

// axisLine gathers the voxels along one axis through the fixed
// coordinates of the other two
func axisLine(vol *models.Volume, axis, a, b int, buf []float64) []float64 {
	n := vol.Shape()[axis]
	buf = buf[:0]
	for i := 0; i < n; i++ {
		buf = append(buf, vol.Data[lineIndex(vol, axis, a, b, i)])
	}
	return buf
}

// lineIndex maps (a, b) plus the position i along axis to a flat offset.
// a and b are the remaining axes in increasing order.
func lineIndex(vol *models.Volume, axis, a, b, i int) int {
	switch axis {
	case 0:
		return vol.Index(i, a, b)
	case 1:
		return vol.Index(a, i, b)
	default:
		return vol.Index(a, b, i)
	}
}

// otherAxes returns the sizes of the two axes orthogonal to axis
func otherAxes(vol *models.Volume, axis int) (int, int) {
	s := vol.Shape()
	switch axis {
	case 0:
		return s[1], s[2]
	case 1:
		return s[0], s[2]
	default:
		return s[0], s[1]
	}
}
