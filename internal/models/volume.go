package models

import (
	"fmt"
)

// Volume represents a single-channel 3D scan held in memory
type Volume struct {
	// Data is the 3D volume data as a 1D array with x varying fastest,
	// i.e. the voxel (x, y, z) lives at x + X*(y + Y*z)
	Data []float64

	// Width is the size of array axis 0 (sagittal direction) in voxels
	Width int

	// Height is the size of array axis 1 (coronal direction) in voxels
	Height int

	// Depth is the size of array axis 2 (axial direction) in voxels
	Depth int

	// Affine maps voxel indices to world coordinates (row-major 4x4)
	Affine [16]float64
}

// IdentityAffine returns the 4x4 identity matrix in row-major order
func IdentityAffine() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// NewVolume allocates a zero-filled volume with an identity affine
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
		Affine: IdentityAffine(),
	}
}

// Shape returns the (X, Y, Z) dimensions
func (v *Volume) Shape() [3]int {
	return [3]int{v.Width, v.Height, v.Depth}
}

// Len returns the number of voxels
func (v *Volume) Len() int {
	return v.Width * v.Height * v.Depth
}

// Index returns the flat offset of voxel (x, y, z)
func (v *Volume) Index(x, y, z int) int {
	return x + v.Width*(y+v.Height*z)
}

// At returns the voxel value at (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a voxel value at (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	out := &Volume{
		Data:   make([]float64, len(v.Data)),
		Width:  v.Width,
		Height: v.Height,
		Depth:  v.Depth,
		Affine: v.Affine,
	}
	copy(out.Data, v.Data)
	return out
}

// Validate checks that the data length matches the declared shape
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid volume shape %v", v.Shape())
	}
	if len(v.Data) != v.Len() {
		return fmt.Errorf("volume data has %d values, shape %v needs %d", len(v.Data), v.Shape(), v.Len())
	}
	return nil
}
