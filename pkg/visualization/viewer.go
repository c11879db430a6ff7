package visualization

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"augplayground/internal/apperror"
	"augplayground/internal/models"
)

// Axis selects the anatomical plane a slice is cut along
type Axis int

const (
	// Sagittal cuts along array axis 0
	Sagittal Axis = iota
	// Coronal cuts along array axis 1
	Coronal
	// Axial cuts along array axis 2
	Axial
)

func (a Axis) String() string {
	switch a {
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	case Axial:
		return "axial"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis matches an axis name case-insensitively. An empty name means
// axial.
func ParseAxis(name string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sagittal":
		return Sagittal, nil
	case "coronal":
		return Coronal, nil
	case "axial", "":
		return Axial, nil
	}
	return 0, apperror.InvalidInput("Invalid axis %q: must be sagittal, coronal or axial.", name)
}

// Plane is a 2D slice stored row-major: the value at (row, col) lives at
// row*Cols + col
type Plane struct {
	Rows, Cols int
	Data       []float64
}

func newPlane(rows, cols int) Plane {
	return Plane{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at (row, col)
func (p Plane) At(row, col int) float64 {
	return p.Data[row*p.Cols+col]
}

func (p Plane) set(row, col int, v float64) {
	p.Data[row*p.Cols+col] = v
}

// Rot90 rotates the plane counter-clockwise k quarter turns. Negative k
// rotates clockwise.
func (p Plane) Rot90(k int) Plane {
	k = ((k % 4) + 4) % 4
	out := p
	for ; k > 0; k-- {
		out = out.rotateOnce()
	}
	return out
}

// rotateOnce turns the plane a quarter counter-clockwise:
// out[i][j] = in[j][cols-1-i]
func (p Plane) rotateOnce() Plane {
	out := newPlane(p.Cols, p.Rows)
	for i := 0; i < out.Rows; i++ {
		for j := 0; j < out.Cols; j++ {
			out.set(i, j, p.At(j, p.Cols-1-i))
		}
	}
	return out
}

// FlipLR mirrors the columns
func (p Plane) FlipLR() Plane {
	out := newPlane(p.Rows, p.Cols)
	for i := 0; i < p.Rows; i++ {
		for j := 0; j < p.Cols; j++ {
			out.set(i, j, p.At(i, p.Cols-1-j))
		}
	}
	return out
}

// Orient applies the fixed display correction for an axis: axial rotates
// 270 degrees, coronal 90 degrees, sagittal mirrors then rotates 270
// degrees
func Orient(p Plane, axis Axis) Plane {
	switch axis {
	case Axial:
		return p.Rot90(3)
	case Coronal:
		return p.Rot90(1)
	case Sagittal:
		return p.FlipLR().Rot90(-1)
	}
	return p
}

// Viewer cuts, orients and renders slices of a volume
type Viewer struct {
	// volume is the data being viewed
	volume *models.Volume

	// lo and hi bound the finite intensities of the whole volume; the
	// window is valid only when hi > lo
	lo, hi float64
}

// NewViewer creates a viewer and computes its intensity window
func NewViewer(vol *models.Volume) *Viewer {
	lo, hi := finiteRange(vol.Data)
	return &Viewer{volume: vol, lo: lo, hi: hi}
}

// Window returns the finite min and max the viewer scales by
func (v *Viewer) Window() (float64, float64) {
	return v.lo, v.hi
}

// clampIndex pins index into [0, n-1]
func clampIndex(index, n int) int {
	if index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}

// ExtractSlice cuts the plane at index along axis, clamping index into the
// axis bounds. The sagittal plane is (y, z), coronal (x, z) and axial
// (x, y), rows first.
func (v *Viewer) ExtractSlice(axis Axis, index int) (Plane, error) {
	vol := v.volume
	var p Plane
	switch axis {
	case Sagittal:
		x := clampIndex(index, vol.Width)
		p = newPlane(vol.Height, vol.Depth)
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				p.set(y, z, vol.At(x, y, z))
			}
		}
	case Coronal:
		y := clampIndex(index, vol.Height)
		p = newPlane(vol.Width, vol.Depth)
		for x := 0; x < vol.Width; x++ {
			for z := 0; z < vol.Depth; z++ {
				p.set(x, z, vol.At(x, y, z))
			}
		}
	case Axial:
		z := clampIndex(index, vol.Depth)
		p = newPlane(vol.Width, vol.Height)
		for x := 0; x < vol.Width; x++ {
			for y := 0; y < vol.Height; y++ {
				p.set(x, y, vol.At(x, y, z))
			}
		}
	default:
		return Plane{}, apperror.InvalidInput("Invalid axis %d.", int(axis))
	}
	return p, nil
}

// Render extracts, orients and normalizes a slice into an 8-bit image
func (v *Viewer) Render(axis Axis, index int) (*image.Gray, error) {
	p, err := v.ExtractSlice(axis, index)
	if err != nil {
		return nil, err
	}
	p = Orient(p, axis)

	img := image.NewGray(image.Rect(0, 0, p.Cols, p.Rows))
	copy(img.Pix, normalizeWindow(p.Data, v.lo, v.hi))
	return img, nil
}

// RenderPNG renders a slice and encodes it as a single-channel PNG
func (v *Viewer) RenderPNG(axis Axis, index int) ([]byte, error) {
	img, err := v.Render(axis, index)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode slice: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveSliceSequence renders every slice along axis into outputDir as
// slice_<axis>_NNN.png, with up to workers renders in flight
func (v *Viewer) SaveSliceSequence(ctx context.Context, axis Axis, outputDir string, workers int) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}
	if axis < Sagittal || axis > Axial {
		return 0, apperror.InvalidInput("Invalid axis %d.", int(axis))
	}
	count := v.volume.Shape()[axis]
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for pos := 0; pos < count; pos++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := v.RenderPNG(axis, pos)
			if err != nil {
				return err
			}
			filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
			if err := os.WriteFile(filename, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", filename, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}

// NormalizeToUint8 rescales values linearly from their finite min/max to
// [0, 255]. With no finite values, or max <= min, the result is all zeros.
// Non-finite inputs map to the clamped ends of the range (NaN to 0).
func NormalizeToUint8(values []float64) []uint8 {
	lo, hi := finiteRange(values)
	return normalizeWindow(values, lo, hi)
}

func normalizeWindow(values []float64, lo, hi float64) []uint8 {
	out := make([]uint8, len(values))
	if !(hi > lo) {
		return out
	}
	span := hi - lo
	for i, v := range values {
		s := (v - lo) / span
		switch {
		case math.IsNaN(s) || s <= 0:
			continue
		case s >= 1:
			out[i] = 255
		default:
			out[i] = uint8(s * 255)
		}
	}
	return out
}

// finiteRange returns the min and max of the finite values. Without any
// it returns (0, 0).
func finiteRange(values []float64) (float64, float64) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0
	}
	return floats.Min(finite), floats.Max(finite)
}
