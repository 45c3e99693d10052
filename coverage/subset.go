package coverage

import (
	"github.com/nci/odccov/logger"
)

// SubsetWindow is the resolved spatial window of one query, in native CRS
// coordinates, plus the requested band names (empty means all bands).
type SubsetWindow struct {
	MinX, MinY, MaxX, MaxY float64
	Bands                  []string
}

// ResolveSubset turns the request's spatial constraints into a native-CRS
// window. A bbox is fixed WGS84 geographic by the query contract and is
// reprojected corner-wise into the native CRS; named-axis subsets are taken
// literally as native-CRS coordinates; both at once is a query error; with
// neither the window is the descriptor's full extent.
func ResolveSubset(desc *CoverageDescriptor, bbox []float64, subsets map[string][]float64, crs CRSProvider) (SubsetWindow, error) {
	window := SubsetWindow{
		MinX: desc.BBox.Left,
		MinY: desc.BBox.Bottom,
		MaxX: desc.BBox.Right,
		MaxY: desc.BBox.Top,
	}

	xSub, xOK := subsets[desc.XAxisLabel]
	ySub, yOK := subsets[desc.YAxisLabel]

	if xOK && yOK && len(bbox) > 0 {
		logger.Log.Warnf("bbox and subsetting by coordinates are exclusive")
		return window, queryErrorf(CodeExclusiveSubsets, "bbox and subsetting by coordinates are exclusive")
	}

	switch {
	case len(bbox) > 0:
		if len(bbox) != 4 {
			return window, queryErrorf(CodeInvalidParameter, "bbox must have 4 values, got %d", len(bbox))
		}

		if desc.CRS.EPSG == queryBBoxEPSG && !desc.CRS.Projected {
			logger.Log.Debugf("source bbox CRS and data CRS are the same")
			window.MinX, window.MinY, window.MaxX, window.MaxY = bbox[0], bbox[1], bbox[2], bbox[3]
			break
		}

		logger.Log.Debugf("reprojecting bbox into native coordinates")
		native, err := crs.TransformBBox(queryBBoxEPSG, desc.CRS.EPSG, [4]float64{bbox[0], bbox[1], bbox[2], bbox[3]})
		if err != nil {
			return window, wrapQueryError(CodeInvalidParameter, err, "bbox reprojection failed")
		}
		logger.Log.Debugf("source coordinates: %v, destination coordinates: %v", bbox, native)
		window.MinX, window.MinY, window.MaxX, window.MaxY = native[0], native[1], native[2], native[3]

	case xOK && yOK:
		logger.Log.Debugf("creating spatial subset from axis ranges")
		if len(xSub) < 2 || len(ySub) < 2 {
			return window, queryErrorf(CodeInvalidParameter, "axis subsets must carry a 2-element range")
		}
		window.MinX, window.MaxX = xSub[0], xSub[1]
		window.MinY, window.MaxY = ySub[0], ySub[1]

	default:
		logger.Log.Debugf("no spatial subset specified, using full extent")
	}

	return window, nil
}
