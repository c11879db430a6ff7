package models

import (
	"augplayground/internal/apperror"
)

// MaxChannelAxisSize is the largest axis size treated as a channel axis
// when reducing 4D data to 3D.
const MaxChannelAxisSize = 5

// Order describes how an N-dimensional array is laid out in memory
type Order int

const (
	// RowMajor is C order: the last axis varies fastest (HDF5, numpy)
	RowMajor Order = iota

	// ColumnMajor is Fortran order: the first axis varies fastest (NIfTI)
	ColumnMajor
)

// Array is an N-dimensional numeric array as produced by a file reader,
// before it is accepted as a Volume
type Array struct {
	Shape []int
	Data  []float64
	Order Order
}

// Rank returns the number of dimensions
func (a Array) Rank() int {
	return len(a.Shape)
}

// strides returns per-axis element strides for the array's order
func (a Array) strides() []int {
	n := len(a.Shape)
	s := make([]int, n)
	if n == 0 {
		return s
	}
	if a.Order == ColumnMajor {
		s[0] = 1
		for i := 1; i < n; i++ {
			s[i] = s[i-1] * a.Shape[i-1]
		}
		return s
	}
	s[n-1] = 1
	for i := n - 2; i >= 0; i-- {
		s[i] = s[i+1] * a.Shape[i+1]
	}
	return s
}

// ChannelAxis returns the axis a 4D array is reduced along: the smallest
// axis, first one on ties. ok is false when that axis is too large to be
// a channel axis.
func (a Array) ChannelAxis() (axis int, ok bool) {
	axis = 0
	for i, n := range a.Shape {
		if n < a.Shape[axis] {
			axis = i
		}
	}
	return axis, a.Shape[axis] <= MaxChannelAxisSize
}

// SelectIndex drops one axis by taking the given index along it
func (a Array) SelectIndex(axis, index int) Array {
	inStrides := a.strides()
	outShape := make([]int, 0, len(a.Shape)-1)
	outAxes := make([]int, 0, len(a.Shape)-1)
	for i, n := range a.Shape {
		if i == axis {
			continue
		}
		outShape = append(outShape, n)
		outAxes = append(outAxes, i)
	}
	out := Array{Shape: outShape, Order: a.Order}
	outStrides := out.strides()

	total := 1
	for _, n := range outShape {
		total *= n
	}
	out.Data = make([]float64, total)

	base := index * inStrides[axis]
	for flat := 0; flat < total; flat++ {
		src := base
		for k, ax := range outAxes {
			coord := (flat / outStrides[k]) % outShape[k]
			src += coord * inStrides[ax]
		}
		out.Data[flat] = a.Data[src]
	}
	return out
}

// ReduceTo3D returns the array unchanged when it is 3D, selects channel 0
// along the channel axis when it is 4D, and rejects anything else
func (a Array) ReduceTo3D() (Array, error) {
	switch a.Rank() {
	case 3:
		return a, nil
	case 4:
		axis, ok := a.ChannelAxis()
		if !ok {
			return Array{}, apperror.InvalidInput("Expected a 3D volume; no channel axis of size <= %d in shape %v.", MaxChannelAxisSize, a.Shape)
		}
		return a.SelectIndex(axis, 0), nil
	default:
		return Array{}, apperror.InvalidInput("Expected a 3D volume, got %d dimensions.", a.Rank())
	}
}

// ToVolume converts a 3D array into a Volume with an identity affine
func (a Array) ToVolume() (*Volume, error) {
	if a.Rank() != 3 {
		return nil, apperror.InvalidInput("Expected a 3D volume, got %d dimensions.", a.Rank())
	}
	vol := NewVolume(a.Shape[0], a.Shape[1], a.Shape[2])
	if len(a.Data) != vol.Len() {
		return nil, apperror.InvalidInput("Array has %d values, shape %v needs %d.", len(a.Data), a.Shape, vol.Len())
	}

	if a.Order == ColumnMajor {
		copy(vol.Data, a.Data)
		return vol, nil
	}

	nx, ny, nz := a.Shape[0], a.Shape[1], a.Shape[2]
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			row := (x*ny + y) * nz
			for z := 0; z < nz; z++ {
				vol.Set(x, y, z, a.Data[row+z])
			}
		}
	}
	return vol, nil
}
