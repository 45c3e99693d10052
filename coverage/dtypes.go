package coverage

import (
	"github.com/airbusgeo/godal"
	"github.com/cockroachdb/errors"
)

// gdalDataType maps a datacube dtype name onto the GDAL pixel type.
func gdalDataType(dtype string) (godal.DataType, error) {
	switch dtype {
	case "uint8", "int8", "bool":
		return godal.Byte, nil
	case "int16":
		return godal.Int16, nil
	case "uint16":
		return godal.UInt16, nil
	case "int32":
		return godal.Int32, nil
	case "uint32":
		return godal.UInt32, nil
	case "float32":
		return godal.Float32, nil
	case "float64":
		return godal.Float64, nil
	}
	return godal.Unknown, errors.Newf("unsupported dtype %q", dtype)
}

// firstPlane returns the first n elements of the array's flat buffer: with
// a leading time dimension that is the first time slice, otherwise the
// whole 2-D grid.
func firstPlane(arr *Array, n int) (interface{}, error) {
	switch data := arr.Data.(type) {
	case []uint8:
		return data[:n], nil
	case []int8:
		return data[:n], nil
	case []int16:
		return data[:n], nil
	case []uint16:
		return data[:n], nil
	case []int32:
		return data[:n], nil
	case []uint32:
		return data[:n], nil
	case []float32:
		return data[:n], nil
	case []float64:
		return data[:n], nil
	}
	return nil, errors.Newf("unsupported array buffer type %T", arr.Data)
}

func nest2[T any](flat []T, rows, cols int) [][]T {
	out := make([][]T, rows)
	for r := 0; r < rows; r++ {
		out[r] = flat[r*cols : (r+1)*cols]
	}
	return out
}

func nest3[T any](flat []T, planes, rows, cols int) [][][]T {
	out := make([][][]T, planes)
	for p := 0; p < planes; p++ {
		out[p] = nest2(flat[p*rows*cols:(p+1)*rows*cols], rows, cols)
	}
	return out
}

// nested reshapes the flat buffer into nested slices per the array's
// shape, which is the layout the NetCDF writer expects.
func nested(arr *Array) (interface{}, error) {
	switch data := arr.Data.(type) {
	case []uint8:
		return nestAny(data, arr.Shape)
	case []int8:
		return nestAny(data, arr.Shape)
	case []int16:
		return nestAny(data, arr.Shape)
	case []uint16:
		return nestAny(data, arr.Shape)
	case []int32:
		return nestAny(data, arr.Shape)
	case []uint32:
		return nestAny(data, arr.Shape)
	case []float32:
		return nestAny(data, arr.Shape)
	case []float64:
		return nestAny(data, arr.Shape)
	}
	return nil, errors.Newf("unsupported array buffer type %T", arr.Data)
}

func nestAny[T any](flat []T, shape []int) (interface{}, error) {
	switch len(shape) {
	case 1:
		return flat, nil
	case 2:
		return nest2(flat, shape[0], shape[1]), nil
	case 3:
		return nest3(flat, shape[0], shape[1], shape[2]), nil
	}
	return nil, errors.Newf("unsupported array rank %d", len(shape))
}
