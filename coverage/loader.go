package coverage

import (
	"context"
	"math"

	"github.com/nci/odccov/logger"
)

// Array is one loaded variable: a flat row-major buffer with its dimension
// names, shape and attributes. Data is one of []uint8, []int8, []int16,
// []uint16, []int32, []uint32, []float32 or []float64.
type Array struct {
	DType string
	Dims  []string
	Shape []int
	Data  interface{}
	Attrs map[string]string
}

// Len returns the number of elements implied by the shape.
func (a *Array) Len() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// LoadedCoverage is the result of one load: band arrays keyed by name in
// their natural order, plus coordinate variables keyed by dimension name.
// It is owned by the query that created it and discarded after encoding.
type LoadedCoverage struct {
	BandOrder   []string
	Bands       map[string]*Array
	Coords      map[string]*Array
	GlobalAttrs map[string]string
}

// LoadParams are the parameters handed to the array-load capability.
// Align and Resolution are in (y, x) coordinate order, following the
// datacube load convention.
type LoadParams struct {
	Product      string
	CRS          string
	Align        [2]float64
	Resolution   [2]float64
	XRange       [2]float64
	YRange       [2]float64
	Measurements []string
}

// Loader is the external array-load capability. The returned band arrays
// must be keyed by the requested measurement names, aliases included, so
// downstream encoders can look bands up under the caller's spelling.
// Implementations must be safe for concurrent use if the engine is shared
// across requests.
type Loader interface {
	Load(ctx context.Context, params LoadParams) (*LoadedCoverage, error)
}

// buildLoadParams translates a resolved window and band selection into load
// parameters. The alignment offset of half the absolute resolution per axis
// aligns the requested window to pixel centers, compensating for the
// corner-vs-center origin conventions of the underlying store.
func buildLoadParams(product string, desc *CoverageDescriptor, window SubsetWindow) LoadParams {
	params := LoadParams{
		Product:    product,
		CRS:        crsString(desc.CRS.EPSG),
		Align:      [2]float64{math.Abs(desc.ResY / 2), math.Abs(desc.ResX / 2)},
		Resolution: [2]float64{desc.ResY, desc.ResX},
		XRange:     [2]float64{window.MinX, window.MaxX},
		YRange:     [2]float64{window.MinY, window.MaxY},
	}
	if len(window.Bands) > 0 {
		params.Measurements = window.Bands
	}
	return params
}

// postLoad scrubs incidental metadata off a freshly loaded coverage. The
// store layer hangs a serialisation "units" attribute on the time
// coordinate which collides with the NetCDF encoding of that variable, so
// it is dropped here.
func postLoad(loaded *LoadedCoverage) {
	if tc, ok := loaded.Coords["time"]; ok && tc.Attrs != nil {
		if _, had := tc.Attrs["units"]; had {
			logger.Log.Debugf("dropping units attribute from time coordinate")
			delete(tc.Attrs, "units")
		}
	}
}

// windowGridSize derives the pixel dimensions of a window at the
// descriptor's resolution.
func windowGridSize(desc *CoverageDescriptor, window SubsetWindow) (width, height float64) {
	width = math.Abs((window.MaxX - window.MinX) / desc.ResX)
	height = math.Abs((window.MaxY - window.MinY) / desc.ResY)
	return width, height
}
