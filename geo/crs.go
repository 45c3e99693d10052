// Package geo implements the engine's CRS capability on top of GDAL's
// OSR layer via godal: CRS classification for descriptor construction and
// corner-point bbox reprojection for spatial subsets.
package geo

import (
	"strconv"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/cockroachdb/errors"

	"github.com/nci/odccov/coverage"
)

var registerOnce sync.Once

// Provider implements coverage.CRSProvider.
type Provider struct{}

func NewProvider() *Provider {
	registerOnce.Do(godal.RegisterAll)
	return &Provider{}
}

// spatialRef builds a SpatialRef from a catalog CRS string: an
// "epsg:NNNN" identifier, a proj4 string or WKT. Callers own the returned
// handle.
func spatialRef(crs string) (*godal.SpatialRef, error) {
	trimmed := strings.TrimSpace(crs)
	if code, ok := parseEPSG(trimmed); ok {
		return godal.NewSpatialRefFromEPSG(code)
	}
	if strings.HasPrefix(trimmed, "+") {
		return godal.NewSpatialRefFromProj4(trimmed)
	}
	return godal.NewSpatialRefFromWKT(trimmed)
}

func parseEPSG(crs string) (int, bool) {
	parts := strings.SplitN(crs, ":", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "epsg") {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false
	}
	return code, true
}

func (p *Provider) DescribeCRS(crs string) (coverage.CRSInfo, error) {
	sr, err := spatialRef(crs)
	if err != nil {
		return coverage.CRSInfo{}, errors.Wrapf(err, "unparseable CRS %q", crs)
	}
	defer sr.Close()

	info := coverage.CRSInfo{
		Projected: !sr.Geographic(),
	}

	if code, ok := parseEPSG(crs); ok {
		info.EPSG = code
	} else {
		if err := sr.AutoIdentifyEPSG(); err != nil {
			return coverage.CRSInfo{}, errors.Wrapf(err, "CRS %q has no EPSG identity", crs)
		}
		code, err := strconv.Atoi(sr.AuthorityCode(""))
		if err != nil {
			return coverage.CRSInfo{}, errors.Wrapf(err, "CRS %q has a non-numeric authority code", crs)
		}
		info.EPSG = code
	}

	if info.Projected {
		wkt, err := sr.WKT()
		if err != nil {
			return coverage.CRSInfo{}, errors.Wrapf(err, "failed to export CRS %q", crs)
		}
		info.Unit = linearUnit(wkt)
	}

	return info, nil
}

// linearUnit pulls the projection's linear unit name out of its WKT. GDAL
// always emits a UNIT node for projected systems; "metre" covers the
// malformed remainder.
func linearUnit(wkt string) string {
	idx := strings.LastIndex(wkt, `UNIT["`)
	if idx < 0 {
		return "metre"
	}
	rest := wkt[idx+len(`UNIT["`):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return "metre"
	}
	return rest[:end]
}

// TransformBBox reprojects the two corners of bbox (minx, miny, maxx,
// maxy) independently. A footprint reprojection would sample the whole
// boundary; the corner approximation matches the query contract and is
// adequate for small to moderate boxes.
func (p *Provider) TransformBBox(srcEPSG, dstEPSG int, bbox [4]float64) ([4]float64, error) {
	src, err := godal.NewSpatialRefFromEPSG(srcEPSG)
	if err != nil {
		return bbox, errors.Wrapf(err, "failed to build source SRS EPSG:%d", srcEPSG)
	}
	defer src.Close()

	dst, err := godal.NewSpatialRefFromEPSG(dstEPSG)
	if err != nil {
		return bbox, errors.Wrapf(err, "failed to build target SRS EPSG:%d", dstEPSG)
	}
	defer dst.Close()

	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return bbox, errors.Wrapf(err, "failed to build transform EPSG:%d -> EPSG:%d", srcEPSG, dstEPSG)
	}
	defer trn.Close()

	// GDAL transforms operate on lon/lat axis order here because the SRS
	// pair is built from EPSG codes with traditional GIS order.
	xs := []float64{bbox[0], bbox[2]}
	ys := []float64{bbox[1], bbox[3]}
	if err := trn.TransformEx(xs, ys, nil, nil); err != nil {
		return bbox, errors.Wrap(err, "corner transform failed")
	}

	return [4]float64{xs[0], ys[0], xs[1], ys[1]}, nil
}
