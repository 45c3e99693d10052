package coverage

import (
	"os"

	"github.com/airbusgeo/godal"
	"github.com/cockroachdb/errors"
)

// gdalGeoTransform converts the descriptor's affine order
// (x-res, x-skew, x-origin, y-skew, y-res, y-origin) into GDAL's
// (x-origin, x-res, x-skew, y-origin, y-skew, y-res).
func gdalGeoTransform(t [6]float64) [6]float64 {
	return [6]float64{t[2], t[0], t[1], t[5], t[3], t[4]}
}

// encodeGeoTIFF writes the requested bands into an in-memory GeoTIFF.
//
// Two documented limitations are carried deliberately: dtype and nodata
// come from the first measurement descriptor only (heterogeneous-dtype
// products are squeezed through the first band's type), and only the first
// time slice is exported when a temporal dimension exists. The raster is
// georeferenced with the descriptor's full-extent transform; see DESIGN.md
// for the sub-window caveat.
func encodeGeoTIFF(desc *CoverageDescriptor, loaded *LoadedCoverage, bands []string, measurements []MeasurementDescriptor) ([]byte, error) {
	if len(measurements) == 0 {
		return nil, errors.New("product has no measurements")
	}
	if len(bands) == 0 {
		return nil, errors.New("no bands to encode")
	}

	dtype, err := gdalDataType(measurements[0].DType)
	if err != nil {
		return nil, err
	}
	nodata := measurements[0].NoData

	first, ok := loaded.Bands[bands[0]]
	if !ok {
		return nil, queryErrorf(CodeInvalidParameter, "invalid query parameter: no band %q in loaded coverage", bands[0])
	}
	if len(first.Shape) < 2 {
		return nil, errors.Newf("band %q has rank %d, want >= 2", bands[0], len(first.Shape))
	}
	height := first.Shape[len(first.Shape)-2]
	width := first.Shape[len(first.Shape)-1]

	tmp, err := os.CreateTemp("", "coverage_*.tif")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create raster temp file")
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	ds, err := godal.Create(godal.GTiff, tmpName, len(bands), dtype, width, height)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GeoTIFF dataset")
	}

	sr, err := godal.NewSpatialRefFromEPSG(desc.CRS.EPSG)
	if err != nil {
		ds.Close()
		return nil, errors.Wrapf(err, "failed to build spatial reference for EPSG:%d", desc.CRS.EPSG)
	}
	err = ds.SetSpatialRef(sr)
	sr.Close()
	if err != nil {
		ds.Close()
		return nil, errors.Wrap(err, "failed to set projection")
	}

	if err := ds.SetGeoTransform(gdalGeoTransform(desc.Transform)); err != nil {
		ds.Close()
		return nil, errors.Wrap(err, "failed to set geotransform")
	}

	for i, name := range bands {
		arr, ok := loaded.Bands[name]
		if !ok {
			ds.Close()
			return nil, queryErrorf(CodeInvalidParameter, "invalid query parameter: no band %q in loaded coverage", name)
		}

		buf, err := firstPlane(arr, width*height)
		if err != nil {
			ds.Close()
			return nil, err
		}

		band := ds.Bands()[i]
		if err := band.SetNoData(nodata); err != nil {
			ds.Close()
			return nil, errors.Wrapf(err, "failed to set nodata on band %q", name)
		}
		if err := band.Write(0, 0, buf, width, height); err != nil {
			ds.Close()
			return nil, errors.Wrapf(err, "failed to write band %q", name)
		}
	}

	if err := ds.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalise GeoTIFF dataset")
	}

	out, err := os.ReadFile(tmpName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read raster temp file")
	}
	return out, nil
}
