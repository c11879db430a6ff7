package augment

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/dsp/fourier"

	"augplayground/internal/models"
)

// spectrum is the 3D Fourier transform of a volume, stored in the same
// x-fastest layout
type spectrum struct {
	shape [3]int
	data  []complex128
}

// fft3 computes the forward 3D FFT as three passes of 1D transforms, one
// per axis
func fft3(vol *models.Volume) *spectrum {
	s := &spectrum{shape: vol.Shape(), data: make([]complex128, len(vol.Data))}
	for i, v := range vol.Data {
		s.data[i] = complex(v, 0)
	}
	for axis := 0; axis < 3; axis++ {
		s.transformAxis(axis, false)
	}
	return s
}

// inverse returns the magnitude of the inverse 3D FFT as a new volume
func (s *spectrum) inverse(like *models.Volume) *models.Volume {
	for axis := 0; axis < 3; axis++ {
		s.transformAxis(axis, true)
	}
	out := models.NewVolume(s.shape[0], s.shape[1], s.shape[2])
	out.Affine = like.Affine
	for i, c := range s.data {
		out.Data[i] = cmplx.Abs(c)
	}
	return out
}

func (s *spectrum) index(x, y, z int) int {
	return x + s.shape[0]*(y+s.shape[1]*z)
}

// transformAxis runs a 1D FFT along every line parallel to axis. The
// inverse is normalized by the line length.
func (s *spectrum) transformAxis(axis int, inverse bool) {
	n := s.shape[axis]
	if n == 1 {
		return
	}
	fft := fourier.NewCmplxFFT(n)
	line := make([]complex128, n)
	out := make([]complex128, n)

	var na, nb int
	switch axis {
	case 0:
		na, nb = s.shape[1], s.shape[2]
	case 1:
		na, nb = s.shape[0], s.shape[2]
	default:
		na, nb = s.shape[0], s.shape[1]
	}
	at := func(a, b, i int) int {
		switch axis {
		case 0:
			return s.index(i, a, b)
		case 1:
			return s.index(a, i, b)
		default:
			return s.index(a, b, i)
		}
	}

	norm := complex(1/float64(n), 0)
	for b := 0; b < nb; b++ {
		for a := 0; a < na; a++ {
			for i := 0; i < n; i++ {
				line[i] = s.data[at(a, b, i)]
			}
			if inverse {
				fft.Sequence(out, line)
				for i := range out {
					out[i] *= norm
				}
			} else {
				fft.Coefficients(out, line)
			}
			for i := 0; i < n; i++ {
				s.data[at(a, b, i)] = out[i]
			}
		}
	}
}

// unshift maps a centred (fftshift-ed) position back to the raw FFT index
func unshift(pos, n int) int {
	return (pos + n - n/2) % n
}

// planeIndices returns every flat index whose coordinate along axis equals
// raw
func (s *spectrum) planeIndices(axis, raw int) []int {
	var out []int
	for z := 0; z < s.shape[2]; z++ {
		for y := 0; y < s.shape[1]; y++ {
			for x := 0; x < s.shape[0]; x++ {
				c := [3]int{x, y, z}
				if c[axis] == raw {
					out = append(out, s.index(x, y, z))
				}
			}
		}
	}
	return out
}

// Motion simulates patient movement during acquisition by filling
// consecutive k-space segments from rigidly moved copies of the volume
type Motion struct {
	Degrees       Range
	Translation   Range
	NumTransforms int
}

func (m *Motion) Name() string { return "RandomMotion" }

func (m *Motion) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	if m.NumTransforms < 1 {
		return nil, fmt.Errorf("motion needs at least one transform, got %d", m.NumTransforms)
	}

	// segment boundaries along the last axis, in centred k-space order
	times := make([]float64, m.NumTransforms)
	for i := range times {
		times[i] = rng.Float64()
	}
	sort.Float64s(times)

	pad := minValue(vol)
	spectra := []*spectrum{fft3(vol)}
	for i := 0; i < m.NumTransforms; i++ {
		var angles, shift [3]float64
		for a := 0; a < 3; a++ {
			angles[a] = m.Degrees.Sample(rng) * math.Pi / 180
			shift[a] = m.Translation.Sample(rng)
		}
		moved, err := warpAffine(vol, rotationMatrix(angles), shift, pad)
		if err != nil {
			return nil, err
		}
		spectra = append(spectra, fft3(moved))
	}

	axis := 2
	n := vol.Shape()[axis]
	mixed := spectra[0]
	segment := 0
	for pos := 0; pos < n; pos++ {
		for segment < len(times) && float64(pos) >= times[segment]*float64(n) {
			segment++
		}
		if segment == 0 {
			continue
		}
		for _, idx := range mixed.planeIndices(axis, unshift(pos, n)) {
			mixed.data[idx] = spectra[segment].data[idx]
		}
	}
	return mixed.inverse(vol), nil
}

// Ghosting attenuates every n-th k-space plane along a random axis,
// producing shifted ghost copies of the anatomy
type Ghosting struct {
	NumGhosts IntRange
	Axes      []int
	Intensity Range
	Restore   float64
}

func (g *Ghosting) Name() string { return "RandomGhosting" }

func (g *Ghosting) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	ghosts := g.NumGhosts.Sample(rng)
	axes := g.Axes
	if len(axes) == 0 {
		axes = []int{0, 1, 2}
	}
	axis := axes[rng.Intn(len(axes))]
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("ghosting axis %d out of range", axis)
	}
	intensity := g.Intensity.Sample(rng)
	if ghosts <= 0 || intensity == 0 {
		return vol, nil
	}

	s := fft3(vol)
	n := s.shape[axis]
	mid := n / 2
	keep := int(g.Restore * float64(n) / 2)
	factor := complex(1-intensity, 0)
	for pos := 0; pos < n; pos += ghosts {
		if pos >= mid-keep && pos <= mid+keep {
			continue
		}
		for _, idx := range s.planeIndices(axis, unshift(pos, n)) {
			s.data[idx] *= factor
		}
	}
	return s.inverse(vol), nil
}

// Spike adds bright points to k-space, producing stripe artifacts
type Spike struct {
	NumSpikes IntRange
	Intensity Range
}

func (sp *Spike) Name() string { return "RandomSpike" }

func (sp *Spike) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	count := sp.NumSpikes.Sample(rng)
	if count <= 0 {
		return vol, nil
	}
	intensity := sp.Intensity.Sample(rng)

	s := fft3(vol)
	peak := 0.0
	for _, c := range s.data {
		peak = math.Max(peak, cmplx.Abs(c))
	}

	// spike positions are fractions of each axis, all drawn before any
	// is placed
	positions := make([][3]float64, count)
	for i := range positions {
		for a := 0; a < 3; a++ {
			positions[i][a] = rng.Float64()
		}
	}
	for _, frac := range positions {
		var c [3]int
		for a := 0; a < 3; a++ {
			n := s.shape[a]
			pos := int(frac[a] * float64(n))
			if pos >= n {
				pos = n - 1
			}
			c[a] = unshift(pos, n)
		}
		s.data[s.index(c[0], c[1], c[2])] += complex(intensity*peak, 0)
	}
	return s.inverse(vol), nil
}
