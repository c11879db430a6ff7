package augment

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"augplayground/internal/models"
)

// Flip mirrors the volume along each listed axis with probability P
type Flip struct {
	Axes []int
	P    float64
}

func (f *Flip) Name() string { return "RandomFlip" }

func (f *Flip) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	for _, axis := range f.Axes {
		if axis < 0 || axis > 2 {
			return nil, fmt.Errorf("flip axis %d out of range", axis)
		}
		if rng.Float64() < f.P {
			flipAxis(vol, axis)
		}
	}
	return vol, nil
}

func flipAxis(vol *models.Volume, axis int) {
	na, nb := otherAxes(vol, axis)
	n := vol.Shape()[axis]
	for b := 0; b < nb; b++ {
		for a := 0; a < na; a++ {
			for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
				p, q := lineIndex(vol, axis, a, b, i), lineIndex(vol, axis, a, b, j)
				vol.Data[p], vol.Data[q] = vol.Data[q], vol.Data[p]
			}
		}
	}
}

// Affine applies a random scale, rotation (degrees) and translation
// (voxels) about the volume centre
type Affine struct {
	Scales      [3]Range
	Degrees     [3]Range
	Translation [3]Range
}

func (a *Affine) Name() string { return "RandomAffine" }

func (a *Affine) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	var scales, angles, shift [3]float64
	for i := 0; i < 3; i++ {
		scales[i] = a.Scales[i].Sample(rng)
		angles[i] = a.Degrees[i].Sample(rng) * math.Pi / 180
		shift[i] = a.Translation[i].Sample(rng)
	}
	for i, s := range scales {
		if s <= 0 {
			return nil, fmt.Errorf("affine scale %f on axis %d must be positive", s, i)
		}
	}

	var m mat.Dense
	m.Mul(rotationMatrix(angles), mat.NewDiagDense(3, scales[:]))
	return warpAffine(vol, &m, shift, minValue(vol))
}

// rotationMatrix composes rotations about x, then y, then z
func rotationMatrix(angles [3]float64) *mat.Dense {
	cx, sx := math.Cos(angles[0]), math.Sin(angles[0])
	cy, sy := math.Cos(angles[1]), math.Sin(angles[1])
	cz, sz := math.Cos(angles[2]), math.Sin(angles[2])

	rx := mat.NewDense(3, 3, []float64{1, 0, 0, 0, cx, -sx, 0, sx, cx})
	ry := mat.NewDense(3, 3, []float64{cy, 0, sy, 0, 1, 0, -sy, 0, cy})
	rz := mat.NewDense(3, 3, []float64{cz, -sz, 0, sz, cz, 0, 0, 0, 1})

	var zy, r mat.Dense
	zy.Mul(rz, ry)
	r.Mul(&zy, rx)
	return &r
}

// warpAffine resamples vol so that output = m*(input - c) + c + shift
func warpAffine(vol *models.Volume, m *mat.Dense, shift [3]float64, pad float64) (*models.Volume, error) {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("affine matrix not invertible: %w", err)
	}
	var k [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			k[3*i+j] = inv.At(i, j)
		}
	}

	cx := float64(vol.Width-1) / 2
	cy := float64(vol.Height-1) / 2
	cz := float64(vol.Depth-1) / 2

	out := models.NewVolume(vol.Width, vol.Height, vol.Depth)
	out.Affine = vol.Affine
	for z := 0; z < vol.Depth; z++ {
		dz := float64(z) - cz - shift[2]
		for y := 0; y < vol.Height; y++ {
			dy := float64(y) - cy - shift[1]
			for x := 0; x < vol.Width; x++ {
				dx := float64(x) - cx - shift[0]
				sx := k[0]*dx + k[1]*dy + k[2]*dz + cx
				sy := k[3]*dx + k[4]*dy + k[5]*dz + cy
				sz := k[6]*dx + k[7]*dy + k[8]*dz + cz
				out.Set(x, y, z, sampleTrilinear(vol, sx, sy, sz, pad))
			}
		}
	}
	return out, nil
}

// ElasticDeformation warps the volume with a smooth random displacement
// field interpolated from a coarse grid of control points
type ElasticDeformation struct {
	NumControlPoints [3]int
	MaxDisplacement  [3]float64
}

func (e *ElasticDeformation) Name() string { return "RandomElasticDeformation" }

func (e *ElasticDeformation) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	n := e.NumControlPoints
	for i, c := range n {
		if c < 4 {
			return nil, fmt.Errorf("elastic control points on axis %d must be at least 4, got %d", i, c)
		}
	}

	// one coarse grid per displacement component; the outermost control
	// points stay put so the volume border does not tear
	var field [3]*models.Volume
	for comp := 0; comp < 3; comp++ {
		g := models.NewVolume(n[0], n[1], n[2])
		for k := 1; k < n[2]-1; k++ {
			for j := 1; j < n[1]-1; j++ {
				for i := 1; i < n[0]-1; i++ {
					g.Set(i, j, k, Symmetric(e.MaxDisplacement[comp]).Sample(rng))
				}
			}
		}
		field[comp] = g
	}

	scale := func(size, controls int) float64 {
		if size <= 1 {
			return 0
		}
		return float64(controls-1) / float64(size-1)
	}
	fx, fy, fz := scale(vol.Width, n[0]), scale(vol.Height, n[1]), scale(vol.Depth, n[2])
	pad := minValue(vol)

	out := models.NewVolume(vol.Width, vol.Height, vol.Depth)
	out.Affine = vol.Affine
	for z := 0; z < vol.Depth; z++ {
		gz := float64(z) * fz
		for y := 0; y < vol.Height; y++ {
			gy := float64(y) * fy
			for x := 0; x < vol.Width; x++ {
				gx := float64(x) * fx
				sx := float64(x) + sampleClamped(field[0], gx, gy, gz)
				sy := float64(y) + sampleClamped(field[1], gx, gy, gz)
				sz := float64(z) + sampleClamped(field[2], gx, gy, gz)
				out.Set(x, y, z, sampleTrilinear(vol, sx, sy, sz, pad))
			}
		}
	}
	return out, nil
}

// Anisotropy simulates a low-resolution acquisition along one randomly
// chosen axis by downsampling and resampling back
type Anisotropy struct {
	Axes         []int
	Downsampling Range
}

func (a *Anisotropy) Name() string { return "RandomAnisotropy" }

func (a *Anisotropy) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	if len(a.Axes) == 0 {
		return vol, nil
	}
	axis := a.Axes[rng.Intn(len(a.Axes))]
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("anisotropy axis %d out of range", axis)
	}
	factor := a.Downsampling.Sample(rng)
	if factor < 1 {
		return nil, fmt.Errorf("downsampling factor %f must be at least 1", factor)
	}

	n := vol.Shape()[axis]
	m := int(math.Round(float64(n) / factor))
	if m < 1 {
		m = 1
	}
	if m >= n {
		return vol, nil
	}

	na, nb := otherAxes(vol, axis)
	line := make([]float64, 0, n)
	low := make([]float64, m)
	for b := 0; b < nb; b++ {
		for aa := 0; aa < na; aa++ {
			line = axisLine(vol, axis, aa, b, line)
			// nearest-neighbour decimation keeps the acquisition blocky
			for j := 0; j < m; j++ {
				src := n / 2
				if m > 1 {
					src = int(math.Round(float64(j) * float64(n-1) / float64(m-1)))
				}
				low[j] = line[src]
			}
			for i, v := range resampleLine(low, n) {
				vol.Data[lineIndex(vol, axis, aa, b, i)] = v
			}
		}
	}
	return vol, nil
}

// maxSwapDraws bounds the redraws of the second patch of a pair
const maxSwapDraws = 64

// Swap exchanges random pairs of non-overlapping cubic patches
type Swap struct {
	PatchSize     [3]int
	NumIterations int
}

func (s *Swap) Name() string { return "RandomSwap" }

func (s *Swap) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	shape := vol.Shape()
	var p [3]int
	for i := 0; i < 3; i++ {
		if s.PatchSize[i] <= 0 {
			return nil, fmt.Errorf("patch size on axis %d must be positive", i)
		}
		p[i] = s.PatchSize[i]
		if p[i] > shape[i] {
			p[i] = shape[i]
		}
	}

	// two disjoint patches need room for both along at least one axis
	room := false
	for i := 0; i < 3; i++ {
		room = room || shape[i] >= 2*p[i]
	}
	if !room {
		return vol, nil
	}

	corner := func() [3]int {
		var c [3]int
		for i := 0; i < 3; i++ {
			c[i] = rng.Intn(shape[i] - p[i] + 1)
		}
		return c
	}
	overlap := func(a, b [3]int) bool {
		for i := 0; i < 3; i++ {
			if a[i]+p[i] <= b[i] || b[i]+p[i] <= a[i] {
				return false
			}
		}
		return true
	}

	for it := 0; it < s.NumIterations; it++ {
		a, b := corner(), corner()
		for tries := 1; overlap(a, b) && tries < maxSwapDraws; tries++ {
			b = corner()
		}
		if overlap(a, b) {
			continue
		}
		for z := 0; z < p[2]; z++ {
			for y := 0; y < p[1]; y++ {
				for x := 0; x < p[0]; x++ {
					i := vol.Index(a[0]+x, a[1]+y, a[2]+z)
					j := vol.Index(b[0]+x, b[1]+y, b[2]+z)
					vol.Data[i], vol.Data[j] = vol.Data[j], vol.Data[i]
				}
			}
		}
	}
	return vol, nil
}
