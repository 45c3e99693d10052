// Package coverage implements a query engine over one OpenDataCube style
// product: it normalises grid and measurement metadata into a canonical
// coverage description at construction time, resolves spatial/band subset
// queries into native-CRS load windows, and encodes the loaded arrays as
// CoverageJSON, GeoTIFF or NetCDF.
package coverage

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/nci/odccov/catalog"
	"github.com/nci/odccov/logger"
)

const (
	crs84URI      = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
	epsgURIPrefix = "http://www.opengis.net/def/crs/EPSG/9.8.15"
	index2DURI    = "http://www.opengis.net/def/crs/OGC/0/Index2D"

	// EPSG code of the bbox CRS fixed by the OGC API Coverages query
	// contract.
	queryBBoxEPSG = 4326
)

// CRSInfo is the engine's view of one coordinate reference system.
type CRSInfo struct {
	EPSG      int
	Projected bool
	// Unit is the native linear unit of a projected CRS, e.g. "metre".
	Unit string
}

// CRSProvider is the external CRS capability: classification of a CRS
// string and point-wise bbox reprojection. The production implementation
// lives in the geo package; tests substitute fakes.
type CRSProvider interface {
	DescribeCRS(crs string) (CRSInfo, error)
	// TransformBBox reprojects the two corner points of bbox
	// (minx, miny, maxx, maxy) independently. This is an approximation
	// valid for small to moderate boxes, not a footprint reprojection.
	TransformBBox(srcEPSG, dstEPSG int, bbox [4]float64) ([4]float64, error)
}

// CoverageDescriptor is the canonical description of a product's grid,
// computed once at engine construction and immutable afterwards.
type CoverageDescriptor struct {
	BBox       catalog.Bounds
	CRS        CRSInfo
	CRSURI     string
	CRSType    string
	XAxisLabel string
	YAxisLabel string
	ResX       float64
	ResY       float64
	// Transform is the canonical dataset's affine grid transform in
	// (x-res, x-skew, x-origin, y-skew, y-res, y-origin) order.
	Transform [6]float64
	// Width and Height are kept as exact quotients of extent over
	// resolution, matching the grid-size invariant.
	Width     float64
	Height    float64
	BBoxUnits string
	NumBands  int
}

// HeterogeneityPolicy chooses the canonical dataset record when datasets of
// one product disagree on CRS, resolution or transform. Substituting a
// rejecting policy turns heterogeneity into a construction failure without
// touching call sites.
type HeterogeneityPolicy interface {
	Canonical(product string, datasets []*catalog.Dataset) (*catalog.Dataset, error)
}

// FirstDatasetWins picks the first dataset record as canonical. Index
// backends return datasets in a stable order, so the choice is
// deterministic.
type FirstDatasetWins struct{}

func (FirstDatasetWins) Canonical(_ string, datasets []*catalog.Dataset) (*catalog.Dataset, error) {
	return datasets[0], nil
}

// ResolveGridProperties normalises product-level and dataset-level grid
// metadata into one CoverageDescriptor. Cross-dataset heterogeneity is
// diagnosed but never fails the resolve; missing metadata does.
func ResolveGridProperties(product *catalog.Product, datasets []*catalog.Dataset, crs CRSProvider, policy HeterogeneityPolicy) (*CoverageDescriptor, error) {
	if len(datasets) == 0 {
		return nil, errors.Newf("product %s has no dataset records", product.Name)
	}

	bbs := make([]catalog.Bounds, 0, len(datasets))
	crsSet := map[string]bool{}
	resSet := map[[2]float64]bool{}
	transformSet := map[[6]float64]bool{}
	for _, ds := range datasets {
		bbs = append(bbs, ds.Bounds())
		crsSet[ds.CRS] = true
		resSet[[2]float64{ds.Transform[0], ds.Transform[4]}] = true
		transformSet[ds.Transform] = true
	}

	if len(crsSet) > 1 {
		logger.Log.Warnf("product %s has datasets with different coordinate reference systems", product.Name)
	}
	if len(resSet) > 1 {
		logger.Log.Warnf("product %s has datasets with different spatial resolutions", product.Name)
	}
	if len(transformSet) > 1 {
		logger.Log.Warnf("product %s has datasets with different transforms", product.Name)
	}

	canonical, err := policy.Canonical(product.Name, datasets)
	if err != nil {
		return nil, err
	}

	// Product-level metadata wins where present; the canonical dataset
	// fills the gaps.
	crsStr := product.CRS
	if crsStr == "" {
		crsStr = canonical.CRS
	}
	resx, resy := canonical.Transform[0], canonical.Transform[4]
	if product.Resolution != nil {
		resx, resy = product.Resolution.X, product.Resolution.Y
	}
	if resx == 0 || resy == 0 {
		return nil, errors.Newf("product %s resolved to a zero resolution", product.Name)
	}

	info, err := crs.DescribeCRS(crsStr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to classify CRS %q of product %s", crsStr, product.Name)
	}

	bounds := catalog.UnionBounds(bbs)

	desc := &CoverageDescriptor{
		BBox:       bounds,
		CRS:        info,
		CRSURI:     crs84URI,
		CRSType:    "GeographicCRS",
		XAxisLabel: "Lon",
		YAxisLabel: "Lat",
		ResX:       resx,
		ResY:       resy,
		Transform:  canonical.Transform,
		Width:      math.Abs((bounds.Right - bounds.Left) / resx),
		Height:     math.Abs((bounds.Top - bounds.Bottom) / resy),
		BBoxUnits:  "deg",
		NumBands:   len(product.Measurements),
	}

	if info.Projected {
		desc.CRSURI = epsgURI(info.EPSG)
		desc.CRSType = "ProjectedCRS"
		desc.XAxisLabel = "x"
		desc.YAxisLabel = "y"
		desc.BBoxUnits = info.Unit
	}

	return desc, nil
}

func epsgURI(code int) string {
	return fmt.Sprintf("%s/%d", epsgURIPrefix, code)
}
