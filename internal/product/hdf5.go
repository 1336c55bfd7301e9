// Package product writes the per-burst CSLC HDF5 container: geocoded
// metadata layers, calibration and noise LUTs, and QA statistics.
package product

import (
	"fmt"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"gonum.org/v1/hdf5"
)

// Group paths inside the container.
const (
	RootPath     = "/science/SENTINEL1/CSLC"
	DataPath     = RootPath + "/data"
	MetadataPath = RootPath + "/metadata"
	QAPath       = RootPath + "/quality_assurance"
)

// File wraps an open HDF5 container.
type File struct {
	h5 *hdf5.File
}

// Create opens a new container, truncating any previous product.
func Create(path string) (*File, error) {
	h5, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("failed to create HDF5 product %s: %v", path, err)
	}
	return &File{h5: h5}, nil
}

// Open opens an existing container for update.
func Open(path string) (*File, error) {
	h5, err := hdf5.OpenFile(path, hdf5.F_ACC_RDWR)
	if err != nil {
		return nil, fmt.Errorf("failed to open HDF5 product %s: %v", path, err)
	}
	return &File{h5: h5}, nil
}

// Close flushes and closes the container.
func (f *File) Close() error {
	return f.h5.Close()
}

// EnsureGroup opens or creates the group at path, creating intermediate
// groups one level at a time.
func (f *File) EnsureGroup(path string) (*hdf5.Group, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var cur *hdf5.Group
	var err error
	for i, segment := range segments {
		var next *hdf5.Group
		if cur == nil {
			next, err = openOrCreateInFile(f.h5, segment)
		} else {
			next, err = openOrCreateInGroup(cur, segment)
			cur.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create group %s: %v",
				strings.Join(segments[:i+1], "/"), err)
		}
		cur = next
	}
	return cur, nil
}

func openOrCreateInFile(f *hdf5.File, name string) (*hdf5.Group, error) {
	if g, err := f.OpenGroup(name); err == nil {
		return g, nil
	}
	return f.CreateGroup(name)
}

func openOrCreateInGroup(parent *hdf5.Group, name string) (*hdf5.Group, error) {
	if g, err := parent.OpenGroup(name); err == nil {
		return g, nil
	}
	return parent.CreateGroup(name)
}

// setStringAttr attaches a string attribute to a dataset.
func setStringAttr(ds *hdf5.Dataset, name, value string) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()

	attr, err := ds.CreateAttribute(name, hdf5.T_GO_STRING, space)
	if err != nil {
		return err
	}
	defer attr.Close()
	return attr.Write(&value, hdf5.T_GO_STRING)
}

// setFloat64Attr attaches a scalar float attribute to a dataset.
func setFloat64Attr(ds *hdf5.Dataset, name string, value float64) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()

	attr, err := ds.CreateAttribute(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return err
	}
	defer attr.Close()
	return attr.Write(&value, hdf5.T_NATIVE_DOUBLE)
}

// DatasetKind picks the element type of a geocoded dataset.
type DatasetKind int

const (
	Float32Dataset DatasetKind = iota
	ByteDataset
)

func (k DatasetKind) datatype() *hdf5.Datatype {
	if k == ByteDataset {
		return hdf5.T_NATIVE_UINT8
	}
	return hdf5.T_NATIVE_FLOAT
}

// InitGeocodedDataset creates a dataset shaped by the output grid and stamps
// the grid georeferencing onto it so the layer is self-describing.
func (f *File) InitGeocodedDataset(groupPath, name string, grid geogrid.GeoGrid,
	kind DatasetKind, description string) error {

	group, err := f.EnsureGroup(groupPath)
	if err != nil {
		return err
	}
	defer group.Close()

	space, err := hdf5.CreateSimpleDataspace(
		[]uint{uint(grid.Length), uint(grid.Width)}, nil)
	if err != nil {
		return fmt.Errorf("failed to create dataspace for %s: %v", name, err)
	}
	defer space.Close()

	ds, err := group.CreateDataset(name, kind.datatype(), space)
	if err != nil {
		return fmt.Errorf("failed to create dataset %s/%s: %v", groupPath, name, err)
	}
	defer ds.Close()

	if err := setStringAttr(ds, "description", description); err != nil {
		return err
	}
	attrs := map[string]float64{
		"x_start":    grid.StartX,
		"y_start":    grid.StartY,
		"x_spacing":  grid.SpacingX,
		"y_spacing":  grid.SpacingY,
		"projection": float64(grid.EPSG),
	}
	for attrName, value := range attrs {
		if err := setFloat64Attr(ds, attrName, value); err != nil {
			return fmt.Errorf("failed to set %s on %s: %v", attrName, name, err)
		}
	}
	return nil
}

// WriteFloat32 fills a previously initialized float dataset.
func (f *File) WriteFloat32(groupPath, name string, data []float32) error {
	return f.writeDataset(groupPath, name, &data)
}

// WriteBytes fills a previously initialized byte dataset.
func (f *File) WriteBytes(groupPath, name string, data []uint8) error {
	return f.writeDataset(groupPath, name, &data)
}

func (f *File) writeDataset(groupPath, name string, data interface{}) error {
	group, err := f.EnsureGroup(groupPath)
	if err != nil {
		return err
	}
	defer group.Close()

	ds, err := group.OpenDataset(name)
	if err != nil {
		return fmt.Errorf("failed to open dataset %s/%s: %v", groupPath, name, err)
	}
	defer ds.Close()
	return ds.Write(data)
}

// WriteScalarFloat64 writes a standalone scalar dataset, used for QA values.
func (f *File) WriteScalarFloat64(groupPath, name string, value float64) error {
	group, err := f.EnsureGroup(groupPath)
	if err != nil {
		return err
	}
	defer group.Close()

	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()

	ds, err := group.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return fmt.Errorf("failed to create dataset %s/%s: %v", groupPath, name, err)
	}
	defer ds.Close()
	return ds.Write(&value)
}

// WriteScalarString writes a standalone string dataset.
func (f *File) WriteScalarString(groupPath, name, value string) error {
	group, err := f.EnsureGroup(groupPath)
	if err != nil {
		return err
	}
	defer group.Close()

	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()

	ds, err := group.CreateDataset(name, hdf5.T_GO_STRING, space)
	if err != nil {
		return fmt.Errorf("failed to create dataset %s/%s: %v", groupPath, name, err)
	}
	defer ds.Close()
	return ds.Write(&value)
}

// CopyRaster reads a single-band GDAL raster produced by the engine and
// stores it into an initialized dataset of matching shape.
func (f *File) CopyRaster(groupPath, name, rasterPath string, kind DatasetKind) error {
	ds, err := godal.Open(rasterPath)
	if err != nil {
		return fmt.Errorf("failed to open raster %s: %v", rasterPath, err)
	}
	defer ds.Close()

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	band := ds.Bands()[0]

	if kind == ByteDataset {
		data := make([]uint8, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return fmt.Errorf("failed to read raster %s: %v", rasterPath, err)
		}
		return f.WriteBytes(groupPath, name, data)
	}

	data := make([]float32, width*height)
	if err := band.Read(0, 0, data, width, height); err != nil {
		return fmt.Errorf("failed to read raster %s: %v", rasterPath, err)
	}
	return f.WriteFloat32(groupPath, name, data)
}
