package hdf5conv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"augplayground/internal/apperror"
	"augplayground/internal/models"
	"augplayground/pkg/nifti"
)

// ErrUnavailable is returned when the binary was built without HDF5
// support
var ErrUnavailable = errors.New("HDF5 support is not available in this build (rebuild with -tags hdf5 and libhdf5 installed)")

// Reader is the file access the converter needs. Builds tagged hdf5
// provide one backed by libhdf5.
type Reader interface {
	// List walks the file and describes every dataset
	List(path string) ([]DatasetInfo, error)

	// Read loads a dataset as float64 values in row-major order
	Read(path, name string) (models.Array, error)
}

// Converter turns HDF5 files into NIfTI bytes
type Converter struct {
	reader Reader
}

// NewConverter creates a converter over the given reader. A nil reader
// selects the build's default.
func NewConverter(r Reader) *Converter {
	if r == nil {
		r = defaultReader()
	}
	return &Converter{reader: r}
}

// HasSuffix reports whether name carries an HDF5 suffix
func HasSuffix(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".h5") || strings.HasSuffix(lower, ".hdf5")
}

// LoadFile picks a dataset in the file at path and returns it as a 3D
// volume with an identity affine, along with the dataset name
func (c *Converter) LoadFile(path string) (*models.Volume, string, error) {
	datasets, err := c.reader.List(path)
	if err != nil {
		return nil, "", apperror.UpstreamParse("Unable to read HDF5", err)
	}
	chosen, err := Pick(datasets)
	if err != nil {
		return nil, "", err
	}

	arr, err := c.reader.Read(path, chosen.Name)
	if err != nil {
		return nil, "", apperror.UpstreamParse("Unable to read HDF5", fmt.Errorf("dataset %s: %w", chosen.Name, err))
	}
	arr, err = arr.ReduceTo3D()
	if err != nil {
		return nil, "", err
	}
	vol, err := arr.ToVolume()
	if err != nil {
		return nil, "", err
	}
	return vol, chosen.Name, nil
}

// ConvertFile converts the file at path to .nii.gz bytes
func (c *Converter) ConvertFile(path string) ([]byte, error) {
	vol, _, err := c.LoadFile(path)
	if err != nil {
		return nil, err
	}
	out, err := nifti.MarshalGzip(vol)
	if err != nil {
		return nil, fmt.Errorf("failed to encode NIfTI: %w", err)
	}
	return out, nil
}

// ConvertBytes spills an upload to a temporary file (libhdf5 reads from
// disk) and converts it
func (c *Converter) ConvertBytes(data []byte, tempDir string) ([]byte, error) {
	f, err := os.CreateTemp(tempDir, "upload-*.h5")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return c.ConvertFile(f.Name())
}

// OutputName derives the download name: scan.h5 becomes scan.nii.gz
func OutputName(uploadName string) string {
	base := filepath.Base(uploadName)
	ext := filepath.Ext(base)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "converted.nii.gz"
	}
	return strings.TrimSuffix(base, ext) + ".nii.gz"
}
