package nifti

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"

	"augplayground/internal/models"
)

// Encode writes vol as a little-endian float32 NIfTI-1 stream using the
// volume's affine as the sform
func Encode(w io.Writer, vol *models.Volume) error {
	if err := vol.Validate(); err != nil {
		return err
	}

	le := binary.LittleEndian
	hdr := make([]byte, defaultVoxOffset)
	le.PutUint32(hdr[0:], headerSize)

	dims := [8]int16{3, int16(vol.Width), int16(vol.Height), int16(vol.Depth), 1, 1, 1, 1}
	if vol.Width > math.MaxInt16 || vol.Height > math.MaxInt16 || vol.Depth > math.MaxInt16 {
		return fmt.Errorf("%w: shape %v exceeds NIfTI-1 limits", ErrUnsupported, vol.Shape())
	}

	// pixdim and offsets come from the affine column norms and last column
	a := vol.Affine
	pix := [8]float32{1, 1, 1, 1, 1, 1, 1, 1}
	for col := 0; col < 3; col++ {
		n := math.Sqrt(a[col]*a[col] + a[4+col]*a[4+col] + a[8+col]*a[8+col])
		if n > 0 {
			pix[col+1] = float32(n)
		}
	}

	for i := 0; i < 8; i++ {
		le.PutUint16(hdr[40+2*i:], uint16(dims[i]))
		le.PutUint32(hdr[76+4*i:], math.Float32bits(pix[i]))
	}
	le.PutUint16(hdr[70:], uint16(DTFloat32))
	le.PutUint16(hdr[72:], 32)
	le.PutUint32(hdr[108:], math.Float32bits(defaultVoxOffset))
	le.PutUint32(hdr[112:], math.Float32bits(1))
	le.PutUint32(hdr[116:], math.Float32bits(0))
	// xyzt_units: millimetres
	hdr[123] = 2
	le.PutUint16(hdr[252:], 0)
	le.PutUint16(hdr[254:], 2)
	for i := 0; i < 4; i++ {
		le.PutUint32(hdr[280+4*i:], math.Float32bits(float32(a[i])))
		le.PutUint32(hdr[296+4*i:], math.Float32bits(float32(a[4+i])))
		le.PutUint32(hdr[312+4*i:], math.Float32bits(float32(a[8+i])))
	}
	copy(hdr[344:], []byte("n+1\x00"))

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, v := range vol.Data {
		le.PutUint32(buf, math.Float32bits(float32(v)))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// EncodeGzip writes vol as a gzip-compressed NIfTI-1 stream (.nii.gz)
func EncodeGzip(w io.Writer, vol *models.Volume) error {
	zw := gzip.NewWriter(w)
	if err := Encode(zw, vol); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// MarshalGzip returns the .nii.gz bytes for vol
func MarshalGzip(vol *models.Volume) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeGzip(&buf, vol); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
