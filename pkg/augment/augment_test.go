package augment

import (
	"math"
	"sort"
	"testing"

	"golang.org/x/exp/rand"

	"augplayground/internal/models"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func ramp(w, h, d int) *models.Volume {
	vol := models.NewVolume(w, h, d)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				vol.Set(x, y, z, float64(1+x+3*y+5*z))
			}
		}
	}
	return vol
}

func constant(n int, v float64) *models.Volume {
	vol := models.NewVolume(n, n, n)
	for i := range vol.Data {
		vol.Data[i] = v
	}
	return vol
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// TestTransformsPreserveShapeAndDeterminism runs every transform twice with
// the same seed on a non-cubic volume
func TestTransformsPreserveShapeAndDeterminism(t *testing.T) {
	transforms := []Transform{
		&Flip{Axes: []int{0, 1, 2}, P: 0.5},
		&Affine{Scales: [3]Range{{0.9, 1.1}, {0.9, 1.1}, {0.9, 1.1}}, Degrees: [3]Range{Symmetric(10), Symmetric(10), Symmetric(10)}, Translation: [3]Range{Symmetric(2), Symmetric(2), Symmetric(2)}},
		&ElasticDeformation{NumControlPoints: [3]int{5, 5, 5}, MaxDisplacement: [3]float64{1, 1, 1}},
		&Anisotropy{Axes: []int{0, 2}, Downsampling: Range{1.5, 3}},
		&Motion{Degrees: Symmetric(5), Translation: Symmetric(1), NumTransforms: 2},
		&Ghosting{NumGhosts: IntRange{1, 4}, Axes: []int{0, 1, 2}, Intensity: Range{0.2, 0.8}, Restore: 0.02},
		&Spike{NumSpikes: IntRange{1, 2}, Intensity: Symmetric(1)},
		&Swap{PatchSize: [3]int{2, 2, 2}, NumIterations: 10},
		&Noise{Mean: Fixed(0), Std: Range{0, 0.5}},
		&Gamma{LogGamma: Symmetric(0.3)},
		&BiasField{Coefficients: Symmetric(0.5), Order: 3},
		&Blur{Std: [3]Range{{0, 1}, {0, 1}, {0, 1}}},
	}

	for _, tr := range transforms {
		a, err := tr.Apply(ramp(7, 6, 5), newRNG(11))
		if err != nil {
			t.Fatalf("%s failed: %v", tr.Name(), err)
		}
		b, err := tr.Apply(ramp(7, 6, 5), newRNG(11))
		if err != nil {
			t.Fatalf("%s failed: %v", tr.Name(), err)
		}
		if a.Shape() != [3]int{7, 6, 5} {
			t.Errorf("%s: Expected shape [7 6 5], got %v", tr.Name(), a.Shape())
		}
		for i := range a.Data {
			if a.Data[i] != b.Data[i] {
				t.Errorf("%s: Expected identical output for identical seeds at voxel %d", tr.Name(), i)
				break
			}
		}
	}
}

func TestFlipCertain(t *testing.T) {
	vol := ramp(4, 3, 2)
	out, err := (&Flip{Axes: []int{0}, P: 1}).Apply(vol.Clone(), newRNG(1))
	if err != nil {
		t.Fatalf("Flip failed: %v", err)
	}
	for x := 0; x < 4; x++ {
		if out.At(x, 1, 1) != vol.At(3-x, 1, 1) {
			t.Errorf("Expected mirrored value at x=%d", x)
		}
	}

	if _, err := (&Flip{Axes: []int{3}, P: 1}).Apply(vol, newRNG(1)); err == nil {
		t.Error("Expected error for axis 3, got nil")
	}
}

func TestAffineIdentity(t *testing.T) {
	vol := ramp(5, 5, 5)
	a := &Affine{
		Scales:      [3]Range{Fixed(1), Fixed(1), Fixed(1)},
		Degrees:     [3]Range{Fixed(0), Fixed(0), Fixed(0)},
		Translation: [3]Range{Fixed(0), Fixed(0), Fixed(0)},
	}
	out, err := a.Apply(vol, newRNG(1))
	if err != nil {
		t.Fatalf("Affine failed: %v", err)
	}
	for i := range vol.Data {
		if !almostEqual(out.Data[i], vol.Data[i], 1e-9) {
			t.Fatalf("Expected identity affine to keep voxel %d at %f, got %f", i, vol.Data[i], out.Data[i])
		}
	}
}

func TestAffineTranslationPadsWithMinimum(t *testing.T) {
	vol := ramp(5, 5, 5)
	a := &Affine{
		Scales:      [3]Range{Fixed(1), Fixed(1), Fixed(1)},
		Degrees:     [3]Range{Fixed(0), Fixed(0), Fixed(0)},
		Translation: [3]Range{Fixed(2), Fixed(0), Fixed(0)},
	}
	out, err := a.Apply(vol, newRNG(1))
	if err != nil {
		t.Fatalf("Affine failed: %v", err)
	}
	if out.At(0, 2, 2) != 1 {
		t.Errorf("Expected padding value 1, got %f", out.At(0, 2, 2))
	}
	if out.At(3, 2, 2) != vol.At(1, 2, 2) {
		t.Errorf("Expected shifted value %f, got %f", vol.At(1, 2, 2), out.At(3, 2, 2))
	}
}

func TestSpectrumRoundTrip(t *testing.T) {
	vol := ramp(4, 5, 3)
	out := fft3(vol).inverse(vol)
	for i := range vol.Data {
		if !almostEqual(out.Data[i], vol.Data[i], 1e-9) {
			t.Fatalf("Expected voxel %d to survive FFT round trip: %f vs %f", i, vol.Data[i], out.Data[i])
		}
	}
}

func TestMotionWithoutMovementIsIdentity(t *testing.T) {
	vol := ramp(6, 6, 6)
	m := &Motion{Degrees: Fixed(0), Translation: Fixed(0), NumTransforms: 2}
	out, err := m.Apply(vol, newRNG(3))
	if err != nil {
		t.Fatalf("Motion failed: %v", err)
	}
	for i := range vol.Data {
		if !almostEqual(out.Data[i], vol.Data[i], 1e-6) {
			t.Fatalf("Expected unchanged voxel %d, got %f want %f", i, out.Data[i], vol.Data[i])
		}
	}

	if _, err := (&Motion{NumTransforms: 0}).Apply(vol, newRNG(3)); err == nil {
		t.Error("Expected error for zero transforms, got nil")
	}
}

func TestGhostingZeroIntensityIsNoop(t *testing.T) {
	vol := ramp(6, 6, 6)
	before := vol.Clone()
	out, err := (&Ghosting{NumGhosts: IntRange{2, 2}, Intensity: Fixed(0)}).Apply(vol, newRNG(1))
	if err != nil {
		t.Fatalf("Ghosting failed: %v", err)
	}
	for i := range before.Data {
		if out.Data[i] != before.Data[i] {
			t.Fatalf("Expected noop at voxel %d", i)
		}
	}
}

func TestSwapPreservesValues(t *testing.T) {
	vol := ramp(6, 6, 6)
	before := append([]float64(nil), vol.Data...)
	out, err := (&Swap{PatchSize: [3]int{2, 3, 2}, NumIterations: 20}).Apply(vol, newRNG(9))
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	after := append([]float64(nil), out.Data...)
	sort.Float64s(before)
	sort.Float64s(after)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("Expected swap to permute voxels, multiset differs at %d", i)
		}
	}
}

// TestSwapExchangesWholePatches labels every voxel with its own index and
// checks one iteration moves two 2x2x2 blocks by opposite offsets
func TestSwapExchangesWholePatches(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		vol := models.NewVolume(6, 6, 6)
		origin := make(map[float64][3]int)
		for z := 0; z < 6; z++ {
			for y := 0; y < 6; y++ {
				for x := 0; x < 6; x++ {
					v := float64(vol.Index(x, y, z))
					vol.Set(x, y, z, v)
					origin[v] = [3]int{x, y, z}
				}
			}
		}

		out, err := (&Swap{PatchSize: [3]int{2, 2, 2}, NumIterations: 1}).Apply(vol, newRNG(seed))
		if err != nil {
			t.Fatalf("Swap failed: %v", err)
		}

		offsets := make(map[[3]int]int)
		for z := 0; z < 6; z++ {
			for y := 0; y < 6; y++ {
				for x := 0; x < 6; x++ {
					from := origin[out.At(x, y, z)]
					if d := [3]int{from[0] - x, from[1] - y, from[2] - z}; d != [3]int{} {
						offsets[d]++
					}
				}
			}
		}
		if len(offsets) != 2 {
			t.Fatalf("seed %d: Expected two patch offsets, got %v", seed, offsets)
		}
		for d, n := range offsets {
			if n != 8 {
				t.Errorf("seed %d: Expected 8 voxels moved by %v, got %d", seed, d, n)
			}
			if offsets[[3]int{-d[0], -d[1], -d[2]}] != 8 {
				t.Errorf("seed %d: Expected offset %v to be mirrored", seed, d)
			}
		}
	}
}

func TestSwapWithoutRoomIsNoop(t *testing.T) {
	vol := ramp(3, 3, 3)
	before := append([]float64(nil), vol.Data...)
	out, err := (&Swap{PatchSize: [3]int{2, 2, 2}, NumIterations: 10}).Apply(vol, newRNG(3))
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	for i := range before {
		if out.Data[i] != before[i] {
			t.Fatalf("Expected voxel %d untouched, got %f", i, out.Data[i])
		}
	}
}

// TestSpikeZeroIntensityIsIdentity places spikes of zero height, which
// must leave the volume unchanged
func TestSpikeZeroIntensityIsIdentity(t *testing.T) {
	vol := ramp(6, 5, 4)
	before := vol.Clone()
	out, err := (&Spike{NumSpikes: IntRange{3, 3}, Intensity: Fixed(0)}).Apply(vol, newRNG(2))
	if err != nil {
		t.Fatalf("Spike failed: %v", err)
	}
	for i := range before.Data {
		if !almostEqual(out.Data[i], before.Data[i], 1e-9) {
			t.Fatalf("Expected voxel %d at %f, got %f", i, before.Data[i], out.Data[i])
		}
	}

	out, err = (&Spike{NumSpikes: IntRange{1, 1}, Intensity: Fixed(1)}).Apply(before.Clone(), newRNG(2))
	if err != nil {
		t.Fatalf("Spike failed: %v", err)
	}
	changed := false
	for i := range before.Data {
		changed = changed || !almostEqual(out.Data[i], before.Data[i], 1e-9)
	}
	if !changed {
		t.Error("Expected a unit spike to alter the volume")
	}
}

func TestNoiseStatistics(t *testing.T) {
	vol := constant(20, 0)
	out, err := (&Noise{Mean: Fixed(1), Std: Fixed(0.5)}).Apply(vol, newRNG(5))
	if err != nil {
		t.Fatalf("Noise failed: %v", err)
	}
	sum, sq := 0.0, 0.0
	for _, v := range out.Data {
		sum += v
		sq += v * v
	}
	n := float64(len(out.Data))
	mean := sum / n
	std := math.Sqrt(sq/n - mean*mean)
	if !almostEqual(mean, 1, 0.05) {
		t.Errorf("Expected mean near 1, got %f", mean)
	}
	if !almostEqual(std, 0.5, 0.05) {
		t.Errorf("Expected std near 0.5, got %f", std)
	}
}

func TestGammaPreservesSign(t *testing.T) {
	vol := models.NewVolume(2, 1, 1)
	vol.Data[0], vol.Data[1] = 4, -4
	out, err := (&Gamma{LogGamma: Fixed(math.Log(0.5))}).Apply(vol, newRNG(1))
	if err != nil {
		t.Fatalf("Gamma failed: %v", err)
	}
	if !almostEqual(out.Data[0], 2, 1e-12) || !almostEqual(out.Data[1], -2, 1e-12) {
		t.Errorf("Expected [2 -2], got %v", out.Data)
	}
}

func TestBiasFieldOrderZeroIsUniform(t *testing.T) {
	vol := constant(4, 2)
	out, err := (&BiasField{Coefficients: Fixed(0.25), Order: 0}).Apply(vol, newRNG(1))
	if err != nil {
		t.Fatalf("BiasField failed: %v", err)
	}
	expected := 2 * math.Exp(0.25)
	for i, v := range out.Data {
		if !almostEqual(v, expected, 1e-12) {
			t.Fatalf("Expected %f at voxel %d, got %f", expected, i, v)
		}
	}
}

func TestBlurKeepsConstantVolume(t *testing.T) {
	out, err := (&Blur{Std: [3]Range{Fixed(1), Fixed(2), Fixed(0.5)}}).Apply(constant(6, 3), newRNG(1))
	if err != nil {
		t.Fatalf("Blur failed: %v", err)
	}
	for i, v := range out.Data {
		if !almostEqual(v, 3, 1e-9) {
			t.Fatalf("Expected 3 at voxel %d, got %f", i, v)
		}
	}

	k := gaussianKernel(1)
	if len(k) != 7 {
		t.Errorf("Expected kernel of 7 taps, got %d", len(k))
	}
}

func TestElasticRejectsSmallGrid(t *testing.T) {
	e := &ElasticDeformation{NumControlPoints: [3]int{3, 7, 7}}
	if _, err := e.Apply(ramp(5, 5, 5), newRNG(1)); err == nil {
		t.Error("Expected error for 3 control points, got nil")
	}
}

func TestRangeSample(t *testing.T) {
	rng := newRNG(2)
	r := Range{Lo: -1, Hi: 3}
	for i := 0; i < 1000; i++ {
		v := r.Sample(rng)
		if v < -1 || v >= 3 {
			t.Fatalf("Sample %f outside [-1, 3)", v)
		}
	}
	ir := IntRange{Lo: 2, Hi: 4}
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		seen[ir.Sample(rng)] = true
	}
	if len(seen) != 3 {
		t.Errorf("Expected all of 2..4 to be drawn, got %v", seen)
	}
	if Fixed(5).Sample(rng) != 5 {
		t.Error("Expected fixed range to return its value")
	}
}
