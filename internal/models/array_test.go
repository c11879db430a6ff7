package models

import (
	"testing"

	"augplayground/internal/apperror"
)

// TestReduceChannelFirst reduces a (3,10,10,10) row-major array, the layout
// an HDF5 "image" dataset with a leading channel axis has
func TestReduceChannelFirst(t *testing.T) {
	shape := []int{3, 10, 10, 10}
	data := make([]float64, 3*1000)
	for c := 0; c < 3; c++ {
		for i := 0; i < 1000; i++ {
			data[c*1000+i] = float64(c*10000 + i)
		}
	}
	arr := Array{Shape: shape, Data: data, Order: RowMajor}

	reduced, err := arr.ReduceTo3D()
	if err != nil {
		t.Fatalf("ReduceTo3D failed: %v", err)
	}
	if len(reduced.Shape) != 3 || reduced.Shape[0] != 10 || reduced.Shape[1] != 10 || reduced.Shape[2] != 10 {
		t.Fatalf("Expected shape [10 10 10], got %v", reduced.Shape)
	}
	for i, v := range reduced.Data {
		if v != float64(i) {
			t.Fatalf("Expected channel 0 value %d at %d, got %f", i, i, v)
		}
	}

	vol, err := reduced.ToVolume()
	if err != nil {
		t.Fatalf("ToVolume failed: %v", err)
	}
	// row-major [x][y][z] -> x*100 + y*10 + z
	if got := vol.At(2, 3, 4); got != 234 {
		t.Errorf("Expected voxel (2,3,4)=234, got %f", got)
	}
}

// TestReduceChannelLast covers the NIfTI layout (X,Y,Z,T) with T=2
func TestReduceChannelLast(t *testing.T) {
	shape := []int{4, 3, 2, 2}
	data := make([]float64, 4*3*2*2)
	for i := range data {
		data[i] = float64(i)
	}
	arr := Array{Shape: shape, Data: data, Order: ColumnMajor}

	reduced, err := arr.ReduceTo3D()
	if err != nil {
		t.Fatalf("ReduceTo3D failed: %v", err)
	}
	// ties between axes 2 and 3: the first smallest axis wins
	if reduced.Shape[0] != 4 || reduced.Shape[1] != 3 || reduced.Shape[2] != 2 {
		t.Fatalf("Expected shape [4 3 2], got %v", reduced.Shape)
	}
	// column-major: index 0 along axis 2 keeps offsets x + 4*y + 24*t
	if reduced.Data[5] != 5 {
		t.Errorf("Expected value 5 at offset 5, got %f", reduced.Data[5])
	}
	if reduced.Data[12] != 24 {
		t.Errorf("Expected value 24 at offset 12, got %f", reduced.Data[12])
	}
}

func TestReduceRejects(t *testing.T) {
	cases := []Array{
		{Shape: []int{10, 10}, Data: make([]float64, 100)},
		{Shape: []int{6, 10, 10, 10}, Data: make([]float64, 6000)},
		{Shape: []int{2, 2, 2, 2, 2}, Data: make([]float64, 32)},
	}
	for _, arr := range cases {
		if _, err := arr.ReduceTo3D(); !apperror.IsKind(err, apperror.KindInvalidInput) {
			t.Errorf("Expected invalid input for shape %v, got %v", arr.Shape, err)
		}
	}
}

func TestVolumeClone(t *testing.T) {
	vol := NewVolume(2, 2, 2)
	vol.Set(1, 1, 1, 7)
	clone := vol.Clone()
	clone.Set(1, 1, 1, 9)
	if vol.At(1, 1, 1) != 7 {
		t.Errorf("Expected original voxel to stay 7, got %f", vol.At(1, 1, 1))
	}
	if err := clone.Validate(); err != nil {
		t.Errorf("Expected clone to validate, got %v", err)
	}
}
