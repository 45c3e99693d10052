package coverage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nci/odccov/catalog"
)

// fakeCRS is a canned CRSProvider. Transforms apply an invertible affine
// per axis so reprojection round trips can be asserted without GDAL.
type fakeCRS struct {
	info       map[string]CRSInfo
	scale      float64
	offset     float64
	transforms int
	failOnUse  bool
}

func newFakeCRS() *fakeCRS {
	return &fakeCRS{
		info: map[string]CRSInfo{
			"epsg:4326":  {EPSG: 4326, Projected: false},
			"epsg:32633": {EPSG: 32633, Projected: true, Unit: "metre"},
		},
		scale:  100000,
		offset: 500000,
	}
}

func (f *fakeCRS) DescribeCRS(crs string) (CRSInfo, error) {
	info, ok := f.info[crs]
	if !ok {
		return CRSInfo{}, errors.Newf("unknown CRS %q", crs)
	}
	return info, nil
}

func (f *fakeCRS) TransformBBox(srcEPSG, dstEPSG int, bbox [4]float64) ([4]float64, error) {
	if f.failOnUse {
		return bbox, errors.New("transform must not be reached")
	}
	f.transforms++
	var out [4]float64
	if srcEPSG == 4326 {
		for i, v := range bbox {
			out[i] = v*f.scale + f.offset
		}
	} else {
		for i, v := range bbox {
			out[i] = (v - f.offset) / f.scale
		}
	}
	return out, nil
}

// geographicDataset builds a 4326 granule covering the given bounds at the
// given resolution.
func geographicDataset(id string, left, bottom, right, top, res float64, when string) *catalog.Dataset {
	cols := int((right - left) / res)
	rows := int((top - bottom) / res)
	t, _ := time.Parse(time.RFC3339, when)
	return &catalog.Dataset{
		ID:        id,
		CRS:       "epsg:4326",
		Transform: [6]float64{res, 0, left, 0, -res, top},
		Shape:     [2]int{rows, cols},
		Time:      t.UTC(),
	}
}

func testProduct() *catalog.Product {
	return &catalog.Product{
		Name: "s2_test",
		Measurements: []catalog.Measurement{
			{Name: "B02", DType: "float32", NoData: -9999, Units: "1", Aliases: []string{"blue"}},
			{Name: "B03", DType: "float32", NoData: -9999, Units: "1"},
		},
	}
}

// fakeIndex serves canned catalog responses.
type fakeIndex struct {
	product    *catalog.Product
	datasets   []*catalog.Dataset
	productErr error
	datasetErr error
}

func (f *fakeIndex) Product(_ context.Context, name string) (*catalog.Product, error) {
	if f.productErr != nil {
		return nil, f.productErr
	}
	return f.product, nil
}

func (f *fakeIndex) Datasets(_ context.Context, product string) ([]*catalog.Dataset, error) {
	if f.datasetErr != nil {
		return nil, f.datasetErr
	}
	return f.datasets, nil
}

// fakeLoader fabricates band grids matching the requested window and
// records the load parameters it was handed.
type fakeLoader struct {
	params  []LoadParams
	loadErr error
	// withTimeUnits hangs the problematic serialisation attribute on the
	// time coordinate.
	withTimeUnits bool
	// dropUnits omits the per-band units attribute.
	dropUnits bool
}

func (f *fakeLoader) Load(_ context.Context, p LoadParams) (*LoadedCoverage, error) {
	f.params = append(f.params, p)
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	rx := p.Resolution[1]
	ry := p.Resolution[0]
	width := int((p.XRange[1] - p.XRange[0]) / rx)
	if width < 0 {
		width = -width
	}
	height := int((p.YRange[1] - p.YRange[0]) / ry)
	if height < 0 {
		height = -height
	}

	bands := p.Measurements
	if len(bands) == 0 {
		bands = []string{"B02", "B03"}
	}

	loaded := &LoadedCoverage{
		Bands:       map[string]*Array{},
		Coords:      map[string]*Array{},
		GlobalAttrs: map[string]string{"crs": p.CRS},
	}
	for _, name := range bands {
		data := make([]float32, width*height)
		for i := range data {
			data[i] = float32(i % 251)
		}
		attrs := map[string]string{"units": "1"}
		if f.dropUnits {
			attrs = map[string]string{}
		}
		loaded.BandOrder = append(loaded.BandOrder, name)
		loaded.Bands[name] = &Array{
			DType: "float32",
			Dims:  []string{"time", "y", "x"},
			Shape: []int{1, height, width},
			Data:  data,
			Attrs: attrs,
		}
	}

	timeAttrs := map[string]string{"calendar": "gregorian"}
	if f.withTimeUnits {
		timeAttrs["units"] = "seconds since 1970-01-01 00:00:00"
	}
	loaded.Coords["time"] = &Array{
		DType: "float64",
		Dims:  []string{"time"},
		Shape: []int{1},
		Data:  []float64{1609459200},
		Attrs: timeAttrs,
	}

	return loaded, nil
}
