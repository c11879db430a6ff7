//go:build !hdf5

package hdf5conv

import "augplayground/internal/models"

type unavailableReader struct{}

func defaultReader() Reader { return unavailableReader{} }

func (unavailableReader) List(string) ([]DatasetInfo, error) {
	return nil, ErrUnavailable
}

func (unavailableReader) Read(string, string) (models.Array, error) {
	return models.Array{}, ErrUnavailable
}
