package augment

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"augplayground/internal/models"
)

// Noise adds Gaussian noise whose mean and standard deviation are drawn
// from Mean and Std
type Noise struct {
	Mean Range
	Std  Range
}

func (n *Noise) Name() string { return "RandomNoise" }

func (n *Noise) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	mean := n.Mean.Sample(rng)
	std := n.Std.Sample(rng)
	if std < 0 {
		return nil, fmt.Errorf("noise std %f must be non-negative", std)
	}
	if std == 0 {
		for i := range vol.Data {
			vol.Data[i] += mean
		}
		return vol, nil
	}
	dist := distuv.Normal{Mu: mean, Sigma: std, Src: rng}
	for i := range vol.Data {
		vol.Data[i] += dist.Rand()
	}
	return vol, nil
}

// Gamma raises intensities to exp(logGamma), preserving sign
type Gamma struct {
	LogGamma Range
}

func (g *Gamma) Name() string { return "RandomGamma" }

func (g *Gamma) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	exponent := math.Exp(g.LogGamma.Sample(rng))
	for i, v := range vol.Data {
		if v < 0 {
			vol.Data[i] = -math.Pow(-v, exponent)
		} else {
			vol.Data[i] = math.Pow(v, exponent)
		}
	}
	return vol, nil
}

// BiasField multiplies the volume by a smooth field, the exponential of a
// random polynomial of the given order over normalized coordinates
type BiasField struct {
	Coefficients Range
	Order        int
}

func (b *BiasField) Name() string { return "RandomBiasField" }

func (b *BiasField) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	if b.Order < 0 {
		return nil, fmt.Errorf("bias field order %d must be non-negative", b.Order)
	}

	type term struct {
		i, j, k int
		c       float64
	}
	var terms []term
	for i := 0; i <= b.Order; i++ {
		for j := 0; j <= b.Order-i; j++ {
			for k := 0; k <= b.Order-i-j; k++ {
				terms = append(terms, term{i, j, k, b.Coefficients.Sample(rng)})
			}
		}
	}

	norm := func(p, n int) float64 {
		if n <= 1 {
			return 0
		}
		return 2*float64(p)/float64(n-1) - 1
	}

	for z := 0; z < vol.Depth; z++ {
		cz := norm(z, vol.Depth)
		for y := 0; y < vol.Height; y++ {
			cy := norm(y, vol.Height)
			for x := 0; x < vol.Width; x++ {
				cx := norm(x, vol.Width)
				sum := 0.0
				for _, t := range terms {
					sum += t.c * ipow(cx, t.i) * ipow(cy, t.j) * ipow(cz, t.k)
				}
				idx := vol.Index(x, y, z)
				vol.Data[idx] *= math.Exp(sum)
			}
		}
	}
	return vol, nil
}

func ipow(v float64, n int) float64 {
	r := 1.0
	for ; n > 0; n-- {
		r *= v
	}
	return r
}

// Blur smooths the volume with a separable Gaussian kernel whose standard
// deviation per axis is drawn from Std. Edges are replicated.
type Blur struct {
	Std [3]Range
}

func (b *Blur) Name() string { return "RandomBlur" }

func (b *Blur) Apply(vol *models.Volume, rng *rand.Rand) (*models.Volume, error) {
	for axis := 0; axis < 3; axis++ {
		sigma := b.Std[axis].Sample(rng)
		if sigma < 0 {
			return nil, fmt.Errorf("blur std %f on axis %d must be non-negative", sigma, axis)
		}
		if sigma == 0 || vol.Shape()[axis] == 1 {
			continue
		}
		convolveAxis(vol, axis, gaussianKernel(sigma))
	}
	return vol, nil
}

// gaussianKernel returns a normalized kernel of radius ceil(3*sigma)
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func convolveAxis(vol *models.Volume, axis int, kernel []float64) {
	n := vol.Shape()[axis]
	radius := len(kernel) / 2
	na, nb := otherAxes(vol, axis)
	line := make([]float64, 0, n)
	for bb := 0; bb < nb; bb++ {
		for a := 0; a < na; a++ {
			line = axisLine(vol, axis, a, bb, line)
			for i := 0; i < n; i++ {
				sum := 0.0
				for k, w := range kernel {
					j := i + k - radius
					if j < 0 {
						j = 0
					} else if j >= n {
						j = n - 1
					}
					sum += w * line[j]
				}
				vol.Data[lineIndex(vol, axis, a, bb, i)] = sum
			}
		}
	}
}
