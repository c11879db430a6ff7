//go:build hdf5

package hdf5conv

import (
	"fmt"
	"strings"

	"gonum.org/v1/hdf5"

	"augplayground/internal/models"
)

// libReader reads files through libhdf5
type libReader struct{}

func defaultReader() Reader { return libReader{} }

// group is the part of *hdf5.File and *hdf5.Group used while walking
type group interface {
	NumObjects() (uint, error)
	ObjectNameByIndex(idx uint) (string, error)
	ObjectTypeByIndex(idx uint) (hdf5.GType, error)
	OpenGroup(name string) (*hdf5.Group, error)
	OpenDataset(name string) (*hdf5.Dataset, error)
}

func (libReader) List(path string) ([]DatasetInfo, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []DatasetInfo
	if err := walk(f, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(g group, prefix string, out *[]DatasetInfo) error {
	n, err := g.NumObjects()
	if err != nil {
		return err
	}
	for i := uint(0); i < n; i++ {
		name, err := g.ObjectNameByIndex(i)
		if err != nil {
			return err
		}
		typ, err := g.ObjectTypeByIndex(i)
		if err != nil {
			return err
		}
		full := name
		if prefix != "" {
			full = prefix + "/" + name
		}

		switch typ {
		case hdf5.H5G_GROUP:
			sub, err := g.OpenGroup(name)
			if err != nil {
				return err
			}
			err = walk(sub, full, out)
			sub.Close()
			if err != nil {
				return err
			}
		case hdf5.H5G_DATASET:
			info, err := describe(g, name)
			if err != nil {
				return fmt.Errorf("%s: %w", full, err)
			}
			info.Name = full
			*out = append(*out, info)
		}
	}
	return nil
}

func describe(g group, name string) (DatasetInfo, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return DatasetInfo{}, err
	}
	defer ds.Close()

	shape, err := extent(ds)
	if err != nil {
		return DatasetInfo{}, err
	}
	dt, err := ds.Datatype()
	if err != nil {
		return DatasetInfo{}, err
	}
	defer dt.Close()

	class := dt.Class()
	return DatasetInfo{
		Shape:   shape,
		Numeric: class == hdf5.T_INTEGER || class == hdf5.T_FLOAT,
	}, nil
}

func extent(ds *hdf5.Dataset) ([]int, error) {
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, err
	}
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	return shape, nil
}

func (libReader) Read(path, name string) (models.Array, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return models.Array{}, err
	}
	defer f.Close()

	ds, err := f.OpenDataset("/" + strings.TrimPrefix(name, "/"))
	if err != nil {
		return models.Array{}, err
	}
	defer ds.Close()

	shape, err := extent(ds)
	if err != nil {
		return models.Array{}, err
	}
	total := 1
	for _, n := range shape {
		total *= n
	}

	// libhdf5 converts integer storage to the native double memory type
	data := make([]float64, total)
	if err := ds.Read(&data); err != nil {
		return models.Array{}, err
	}
	return models.Array{Shape: shape, Data: data, Order: models.RowMajor}, nil
}
