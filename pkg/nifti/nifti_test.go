package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"augplayground/internal/models"
)

func testVolume() *models.Volume {
	vol := models.NewVolume(4, 3, 2)
	for z := 0; z < 2; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 4; x++ {
				vol.Set(x, y, z, float64(x+10*y+100*z)+0.5)
			}
		}
	}
	vol.Affine[3] = -12.5
	return vol
}

// TestEncodeDecodeGzip writes a volume as .nii.gz and reads it back from
// memory
func TestEncodeDecodeGzip(t *testing.T) {
	vol := testVolume()

	data, err := MarshalGzip(vol)
	if err != nil {
		t.Fatalf("MarshalGzip failed: %v", err)
	}
	if !IsGzip(data) {
		t.Fatalf("Expected gzip magic at start of output")
	}

	img, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}

	shape := img.Array.Shape
	if len(shape) != 3 || shape[0] != 4 || shape[1] != 3 || shape[2] != 2 {
		t.Fatalf("Expected shape [4 3 2], got %v", shape)
	}
	got, err := img.Array.ToVolume()
	if err != nil {
		t.Fatalf("ToVolume failed: %v", err)
	}
	for i := range vol.Data {
		if got.Data[i] != vol.Data[i] {
			t.Fatalf("Voxel %d mismatch: expected %f, got %f", i, vol.Data[i], got.Data[i])
		}
	}
	if img.Affine[3] != -12.5 {
		t.Errorf("Expected x offset -12.5 in affine, got %f", img.Affine[3])
	}
}

func TestReadFileUncompressed(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testVolume()); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "plain.nii")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	img, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if img.Header.Datatype != DTFloat32 {
		t.Errorf("Expected float32 datatype, got %d", img.Header.Datatype)
	}
}

// TestDecodeScaledInt16 builds a big-endian int16 header by hand to cover
// byte order detection and scl_slope/scl_inter
func TestDecodeScaledInt16(t *testing.T) {
	be := binary.BigEndian
	raw := make([]byte, defaultVoxOffset)
	be.PutUint32(raw[0:], headerSize)
	dims := []int16{3, 2, 2, 1, 1, 1, 1, 1}
	for i, d := range dims {
		be.PutUint16(raw[40+2*i:], uint16(d))
	}
	be.PutUint16(raw[70:], uint16(DTInt16))
	be.PutUint16(raw[72:], 16)
	be.PutUint32(raw[108:], math.Float32bits(defaultVoxOffset))
	be.PutUint32(raw[112:], math.Float32bits(2))
	be.PutUint32(raw[116:], math.Float32bits(-1))
	copy(raw[344:], "n+1\x00")

	for _, v := range []int16{0, 1, -3, 100} {
		b := make([]byte, 2)
		be.PutUint16(b, uint16(v))
		raw = append(raw, b...)
	}

	img, err := DecodeBytes(raw)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	expected := []float64{-1, 1, -7, 199}
	for i, v := range expected {
		if img.Array.Data[i] != v {
			t.Errorf("Expected value %f at %d, got %f", v, i, img.Array.Data[i])
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeBytes(bytes.Repeat([]byte{0x42}, 400))
	if !errors.Is(err, ErrNotNIfTI) {
		t.Errorf("Expected ErrNotNIfTI, got %v", err)
	}

	_, err = DecodeBytes([]byte{0x1f, 0x8b, 0x00})
	if err == nil {
		t.Error("Expected error for truncated gzip, got nil")
	}
}

// TestDecodeTruncatedHugeHeader declares a 1 GiB float64 image in a
// 352-byte file; decoding must fail without reserving the declared size
func TestDecodeTruncatedHugeHeader(t *testing.T) {
	le := binary.LittleEndian
	raw := make([]byte, defaultVoxOffset)
	le.PutUint32(raw[0:], headerSize)
	dims := []int16{3, 1024, 1024, 128, 1, 1, 1, 1}
	for i, d := range dims {
		le.PutUint16(raw[40+2*i:], uint16(d))
	}
	le.PutUint16(raw[70:], uint16(DTFloat64))
	le.PutUint16(raw[72:], 64)
	le.PutUint32(raw[108:], math.Float32bits(defaultVoxOffset))
	copy(raw[344:], "n+1\x00")

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := DecodeBytes(raw)
	runtime.ReadMemStats(&after)

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected ErrUnexpectedEOF, got %v", err)
	}
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 16<<20 {
		t.Errorf("Expected under 16 MiB allocated, got %d bytes", grown)
	}
}
