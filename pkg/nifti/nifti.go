// Package nifti reads and writes single-file NIfTI-1 images (.nii and
// .nii.gz).
//
// Only the subset needed to move scalar volumes in and out of the
// playground is supported: the 348-byte header, the common numeric
// datatypes, intensity scaling and the sform/qform affine. Header/image
// pairs (.hdr/.img) and NIfTI-2 are rejected.
package nifti

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"augplayground/internal/models"
)

const (
	headerSize = 348

	// defaultVoxOffset leaves room for the 4-byte extension flag
	defaultVoxOffset = 352

	// maxVoxels guards against headers claiming absurd sizes
	maxVoxels = 1 << 30
)

// NIfTI-1 datatype codes
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
	DTInt64   int16 = 1024
	DTUint64  int16 = 1280
)

var (
	// ErrNotNIfTI is returned when the header size or magic does not match
	ErrNotNIfTI = errors.New("not a NIfTI-1 file")

	// ErrUnsupported is returned for valid files this package cannot decode
	ErrUnsupported = errors.New("unsupported NIfTI-1 feature")
)

// Header holds the fields of a NIfTI-1 header this package uses
type Header struct {
	ByteOrder binary.ByteOrder
	Dim       [8]int16
	Datatype  int16
	Bitpix    int16
	Pixdim    [8]float32
	VoxOffset float32
	SclSlope  float32
	SclInter  float32
	QformCode int16
	SformCode int16
	Quatern   [3]float32
	QOffset   [3]float32
	SRowX     [4]float32
	SRowY     [4]float32
	SRowZ     [4]float32
	Magic     [4]byte
}

// Image is a decoded NIfTI file
type Image struct {
	Header Header
	Array  models.Array
	Affine [16]float64
}

// Shape returns the dimensions declared by dim[1..dim[0]]
func (h *Header) Shape() []int {
	n := int(h.Dim[0])
	shape := make([]int, n)
	for i := 0; i < n; i++ {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// IsGzip reports whether data starts with the gzip magic bytes
func IsGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// DecodeBytes decodes an in-memory file, sniffing gzip compression
func DecodeBytes(data []byte) (*Image, error) {
	if IsGzip(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return Decode(zr)
	}
	return Decode(bytes.NewReader(data))
}

// ReadFile decodes a file from disk, choosing decompression by suffix
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return Decode(r)
}

// Decode reads an uncompressed NIfTI-1 stream
func Decode(r io.Reader) (*Image, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	hdr, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	shape := hdr.Shape()
	count := 1
	for _, n := range shape {
		if n <= 0 {
			return nil, fmt.Errorf("%w: non-positive dimension in %v", ErrUnsupported, shape)
		}
		count *= n
		if count > maxVoxels {
			return nil, fmt.Errorf("%w: %v exceeds %d voxels", ErrUnsupported, shape, maxVoxels)
		}
	}

	skip := int64(hdr.VoxOffset) - headerSize
	if skip < 0 {
		return nil, fmt.Errorf("%w: vox_offset %v inside header", ErrNotNIfTI, hdr.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("skipping extensions: %w", err)
	}

	width, err := datatypeWidth(hdr.Datatype)
	if err != nil {
		return nil, err
	}
	payload, err := readPayload(r, int64(count)*int64(width))
	if err != nil {
		return nil, err
	}

	data := decodeValues(payload, hdr.Datatype, hdr.ByteOrder, count)
	applyScaling(data, hdr.SclSlope, hdr.SclInter)

	return &Image{
		Header: *hdr,
		Array:  models.Array{Shape: shape, Data: data, Order: models.ColumnMajor},
		Affine: hdr.Affine(),
	}, nil
}

// readPayload reads exactly size bytes. The buffer grows with the data
// actually present so a header declaring a huge image over a short
// stream fails without reserving the declared size.
func readPayload(r io.Reader, size int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, size))
	if err != nil {
		return nil, fmt.Errorf("reading voxel data: %w", err)
	}
	if n < size {
		return nil, fmt.Errorf("reading voxel data: %w: got %d of %d bytes", io.ErrUnexpectedEOF, n, size)
	}
	return buf.Bytes(), nil
}

func parseHeader(raw []byte) (*Header, error) {
	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(raw[0:4]) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw[0:4]) == headerSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad sizeof_hdr", ErrNotNIfTI)
	}

	h := &Header{ByteOrder: order}
	copy(h.Magic[:], raw[344:348])
	switch string(h.Magic[:3]) {
	case "n+1":
	case "ni1":
		return nil, fmt.Errorf("%w: separate .hdr/.img pairs", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: bad magic %q", ErrNotNIfTI, h.Magic[:])
	}

	i16 := func(off int) int16 { return int16(order.Uint16(raw[off : off+2])) }
	f32 := func(off int) float32 { return math.Float32frombits(order.Uint32(raw[off : off+4])) }

	for i := 0; i < 8; i++ {
		h.Dim[i] = i16(40 + 2*i)
		h.Pixdim[i] = f32(76 + 4*i)
	}
	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return nil, fmt.Errorf("%w: dim[0]=%d", ErrNotNIfTI, h.Dim[0])
	}
	h.Datatype = i16(70)
	h.Bitpix = i16(72)
	h.VoxOffset = f32(108)
	h.SclSlope = f32(112)
	h.SclInter = f32(116)
	h.QformCode = i16(252)
	h.SformCode = i16(254)
	for i := 0; i < 3; i++ {
		h.Quatern[i] = f32(256 + 4*i)
		h.QOffset[i] = f32(268 + 4*i)
	}
	for i := 0; i < 4; i++ {
		h.SRowX[i] = f32(280 + 4*i)
		h.SRowY[i] = f32(296 + 4*i)
		h.SRowZ[i] = f32(312 + 4*i)
	}
	return h, nil
}

func datatypeWidth(dt int16) (int, error) {
	switch dt {
	case DTUint8, DTInt8:
		return 1, nil
	case DTInt16, DTUint16:
		return 2, nil
	case DTInt32, DTUint32, DTFloat32:
		return 4, nil
	case DTInt64, DTUint64, DTFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: datatype %d", ErrUnsupported, dt)
	}
}

func decodeValues(payload []byte, dt int16, order binary.ByteOrder, count int) []float64 {
	out := make([]float64, count)
	switch dt {
	case DTUint8:
		for i := range out {
			out[i] = float64(payload[i])
		}
	case DTInt8:
		for i := range out {
			out[i] = float64(int8(payload[i]))
		}
	case DTInt16:
		for i := range out {
			out[i] = float64(int16(order.Uint16(payload[2*i:])))
		}
	case DTUint16:
		for i := range out {
			out[i] = float64(order.Uint16(payload[2*i:]))
		}
	case DTInt32:
		for i := range out {
			out[i] = float64(int32(order.Uint32(payload[4*i:])))
		}
	case DTUint32:
		for i := range out {
			out[i] = float64(order.Uint32(payload[4*i:]))
		}
	case DTFloat32:
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(payload[4*i:])))
		}
	case DTInt64:
		for i := range out {
			out[i] = float64(int64(order.Uint64(payload[8*i:])))
		}
	case DTUint64:
		for i := range out {
			out[i] = float64(order.Uint64(payload[8*i:]))
		}
	case DTFloat64:
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(payload[8*i:]))
		}
	}
	return out
}

// applyScaling applies scl_slope/scl_inter; a zero or non-finite slope
// means the stored values are used as is
func applyScaling(data []float64, slope, inter float32) {
	s := float64(slope)
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return
	}
	b := float64(inter)
	if math.IsNaN(b) || math.IsInf(b, 0) {
		b = 0
	}
	if s == 1 && b == 0 {
		return
	}
	for i, v := range data {
		data[i] = v*s + b
	}
}

// Affine returns the voxel-to-world matrix (row-major 4x4), preferring the
// sform, then the qform, then pixdim scaling
func (h *Header) Affine() [16]float64 {
	if h.SformCode > 0 {
		return [16]float64{
			float64(h.SRowX[0]), float64(h.SRowX[1]), float64(h.SRowX[2]), float64(h.SRowX[3]),
			float64(h.SRowY[0]), float64(h.SRowY[1]), float64(h.SRowY[2]), float64(h.SRowY[3]),
			float64(h.SRowZ[0]), float64(h.SRowZ[1]), float64(h.SRowZ[2]), float64(h.SRowZ[3]),
			0, 0, 0, 1,
		}
	}

	dx, dy, dz := pixdimOrOne(h.Pixdim[1]), pixdimOrOne(h.Pixdim[2]), pixdimOrOne(h.Pixdim[3])
	if h.QformCode <= 0 {
		return [16]float64{
			dx, 0, 0, 0,
			0, dy, 0, 0,
			0, 0, dz, 0,
			0, 0, 0, 1,
		}
	}

	b, c, d := float64(h.Quatern[0]), float64(h.Quatern[1]), float64(h.Quatern[2])
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		norm := 1 / math.Sqrt(b*b+c*c+d*d)
		b, c, d = b*norm, c*norm, d*norm
		a = 0
	} else {
		a = math.Sqrt(a)
	}
	qfac := 1.0
	if h.Pixdim[0] < 0 {
		qfac = -1
	}
	dz *= qfac

	r11, r12, r13 := a*a+b*b-c*c-d*d, 2*(b*c-a*d), 2*(b*d+a*c)
	r21, r22, r23 := 2*(b*c+a*d), a*a+c*c-b*b-d*d, 2*(c*d-a*b)
	r31, r32, r33 := 2*(b*d-a*c), 2*(c*d+a*b), a*a+d*d-c*c-b*b

	return [16]float64{
		r11 * dx, r12 * dy, r13 * dz, float64(h.QOffset[0]),
		r21 * dx, r22 * dy, r23 * dz, float64(h.QOffset[1]),
		r31 * dx, r32 * dy, r33 * dz, float64(h.QOffset[2]),
		0, 0, 0, 1,
	}
}

func pixdimOrOne(v float32) float64 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 1
	}
	return float64(v)
}
