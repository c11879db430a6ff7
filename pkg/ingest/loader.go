// Package ingest turns uploaded or on-disk NIfTI files into 3D volumes.
//
// Uploads go through two explicit stages. The in-memory stage decodes the
// bytes directly, sniffing gzip from the magic bytes. When it fails, the
// spill stage writes the upload to a temporary file carrying the client's
// suffixes and decodes it from disk, choosing decompression by suffix.
// This covers compressed payloads whose magic bytes do not identify them.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"augplayground/internal/apperror"
	"augplayground/internal/models"
	"augplayground/pkg/nifti"
)

// DefaultSpillSuffix is used when the upload name carries no suffix
const DefaultSpillSuffix = ".nii.gz"

// Stage decodes upload bytes into a NIfTI image
type Stage interface {
	Name() string
	Decode(data []byte, filename string) (*nifti.Image, error)
}

// MemoryStage parses the upload in memory
type MemoryStage struct{}

func (MemoryStage) Name() string { return "memory" }

func (MemoryStage) Decode(data []byte, _ string) (*nifti.Image, error) {
	return nifti.DecodeBytes(data)
}

// SpillStage writes the upload to TempDir and parses the file
type SpillStage struct {
	TempDir string
}

func (SpillStage) Name() string { return "spill" }

func (s SpillStage) Decode(data []byte, filename string) (*nifti.Image, error) {
	f, err := os.CreateTemp(s.TempDir, "upload-*"+Suffixes(filename))
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
	return nifti.ReadFile(f.Name())
}

// Suffixes returns every suffix of the file name, e.g. ".nii.gz", or
// DefaultSpillSuffix when there is none
func Suffixes(filename string) string {
	base := strings.TrimLeft(filepath.Base(filename), ".")
	idx := strings.Index(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return DefaultSpillSuffix
	}
	return base[idx:]
}

// Result is a loaded volume and the stage that decoded it
type Result struct {
	Volume *models.Volume
	Stage  string
}

// Loader decodes uploads and files into volumes
type Loader struct {
	stages   []Stage
	maxBytes int64
}

// NewLoader creates a loader with the in-memory and spill-to-disk stages.
// maxBytes <= 0 disables the upload size limit.
func NewLoader(tempDir string, maxBytes int64) *Loader {
	return NewLoaderWithStages(maxBytes, MemoryStage{}, SpillStage{TempDir: tempDir})
}

// NewLoaderWithStages creates a loader trying the given stages in order
func NewLoaderWithStages(maxBytes int64, stages ...Stage) *Loader {
	return &Loader{stages: stages, maxBytes: maxBytes}
}

// IsNIfTIName reports whether a path ends in .nii or .nii.gz
func IsNIfTIName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz")
}

// acceptsUpload checks the last suffix only, so any .gz name is let
// through to the decoder
func acceptsUpload(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".nii" || ext == ".gz"
}

// ReadUpload reads an upload body, enforcing the size limit
func (l *Loader) ReadUpload(r io.Reader) ([]byte, error) {
	if l.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, apperror.InvalidInput("Upload exceeds the %d byte limit.", l.maxBytes)
	}
	return data, nil
}

// LoadUpload validates the file name, then runs the stages until one
// decodes the upload
func (l *Loader) LoadUpload(r io.Reader, filename string) (*Result, error) {
	if filename == "" {
		return nil, apperror.InvalidInput("Missing filename.")
	}
	if !acceptsUpload(filename) {
		return nil, apperror.InvalidInput("Only .nii or .nii.gz supported.")
	}
	data, err := l.ReadUpload(r)
	if err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.UpstreamParse("Unable to read upload", err)
	}
	return l.LoadBytes(data, filename)
}

// LoadBytes runs the stages over data. The error of the last stage is
// reported when all of them fail.
func (l *Loader) LoadBytes(data []byte, filename string) (*Result, error) {
	if len(l.stages) == 0 {
		return nil, errors.New("loader has no stages")
	}
	var lastErr error
	for _, stage := range l.stages {
		img, err := stage.Decode(data, filename)
		if err != nil {
			lastErr = err
			continue
		}
		vol, err := imageToVolume(img)
		if err != nil {
			return nil, err
		}
		return &Result{Volume: vol, Stage: stage.Name()}, nil
	}
	return nil, apperror.UpstreamParse("Unable to read NIfTI", lastErr)
}

// LoadFile decodes a NIfTI file from disk
func (l *Loader) LoadFile(path string) (*models.Volume, error) {
	img, err := nifti.ReadFile(path)
	if err != nil {
		return nil, apperror.UpstreamParse("Unable to read NIfTI", err)
	}
	return imageToVolume(img)
}

// imageToVolume reduces the image to 3D and attaches its affine
func imageToVolume(img *nifti.Image) (*models.Volume, error) {
	arr, err := img.Array.ReduceTo3D()
	if err != nil {
		return nil, err
	}
	vol, err := arr.ToVolume()
	if err != nil {
		return nil, err
	}
	vol.Affine = img.Affine
	return vol, nil
}
