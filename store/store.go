// Package store implements the array-load capability over granule files on
// disk: an R-tree of granule footprints selects the datasets touching a
// requested window, and GDAL (via godal) warps each granule's band rasters
// into an in-memory target grid.
package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/cockroachdb/errors"
	"github.com/dhconnelly/rtreego"

	"github.com/nci/odccov/catalog"
	"github.com/nci/odccov/coverage"
	"github.com/nci/odccov/logger"
)

var registerOnce sync.Once

// granule wraps a dataset record for R-tree storage.
type granule struct {
	ds     *catalog.Dataset
	bounds catalog.Bounds
}

// Bounds implements rtreego.Spatial. Degenerate footprints are padded to a
// sliver because the R-tree requires non-zero extents.
func (g *granule) Bounds() rtreego.Rect {
	const epsilon = 1e-9
	w := g.bounds.Right - g.bounds.Left
	h := g.bounds.Top - g.bounds.Bottom
	if w < epsilon {
		w = epsilon
	}
	if h < epsilon {
		h = epsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{g.bounds.Left, g.bounds.Bottom}, []float64{w, h})
	return rect
}

// GranuleStore implements coverage.Loader for one product's granules. It is
// immutable after construction and safe for concurrent loads.
type GranuleStore struct {
	product  *catalog.Product
	rtree    *rtreego.Rtree
	granules []*granule
}

func New(product *catalog.Product, datasets []*catalog.Dataset) (*GranuleStore, error) {
	if len(datasets) == 0 {
		return nil, errors.Newf("product %s has no granules to index", product.Name)
	}
	registerOnce.Do(godal.RegisterAll)

	s := &GranuleStore{
		product: product,
		rtree:   rtreego.NewTree(2, 25, 50),
	}
	for _, ds := range datasets {
		g := &granule{ds: ds, bounds: ds.Bounds()}
		s.granules = append(s.granules, g)
		s.rtree.Insert(g)
	}
	return s, nil
}

// Load warps every granule intersecting the requested window into one
// in-memory grid per band and time slice.
func (s *GranuleStore) Load(ctx context.Context, p coverage.LoadParams) (*coverage.LoadedCoverage, error) {
	epsg, err := parseEPSG(p.CRS)
	if err != nil {
		return nil, err
	}

	rx := math.Abs(p.Resolution[1])
	ry := math.Abs(p.Resolution[0])
	if rx == 0 || ry == 0 {
		return nil, errors.New("load parameters carry a zero resolution")
	}

	// Snap the window outward onto the pixel grid implied by the
	// alignment offsets, so the target grid registers with the stored
	// pixels.
	minx := math.Floor((p.XRange[0]-p.Align[1])/rx)*rx + p.Align[1]
	maxx := math.Ceil((p.XRange[1]-p.Align[1])/rx)*rx + p.Align[1]
	miny := math.Floor((p.YRange[0]-p.Align[0])/ry)*ry + p.Align[0]
	maxy := math.Ceil((p.YRange[1]-p.Align[0])/ry)*ry + p.Align[0]

	width := int(math.Round((maxx - minx) / rx))
	height := int(math.Round((maxy - miny) / ry))
	if width <= 0 || height <= 0 {
		return nil, errors.Newf("requested window resolves to an empty grid (%dx%d)", width, height)
	}

	selections, err := s.selectMeasurements(p.Measurements)
	if err != nil {
		return nil, err
	}

	hits := s.intersecting(catalog.Bounds{Left: minx, Bottom: miny, Right: maxx, Top: maxy})
	if len(hits) == 0 {
		return nil, errors.Newf("no granules of %s intersect the requested window", s.product.Name)
	}
	slices := groupByTime(hits)

	logger.Log.Debugf("loading %d band(s) over %d time slice(s) from %d granule(s), grid %dx%d",
		len(selections), len(slices), len(hits), width, height)

	loaded := &coverage.LoadedCoverage{
		Bands:  map[string]*coverage.Array{},
		Coords: map[string]*coverage.Array{},
		GlobalAttrs: map[string]string{
			"crs":     p.CRS,
			"product": s.product.Name,
		},
	}

	for _, sel := range selections {
		arr, err := s.loadBand(epsg, sel.m, slices, minx, maxy, rx, ry, width, height)
		if err != nil {
			return nil, err
		}
		loaded.BandOrder = append(loaded.BandOrder, sel.name)
		loaded.Bands[sel.name] = arr
	}

	loaded.Coords["time"] = timeCoord(slices)
	loaded.Coords["y"], loaded.Coords["x"] = axisCoords(minx, maxy, rx, ry, width, height)

	return loaded, nil
}

// bandSelection pairs the caller's spelling of a band name with the
// measurement it resolves to. The loaded arrays are keyed by the requested
// spelling so alias requests line up with what the caller asks the encoders
// for.
type bandSelection struct {
	name string
	m    catalog.Measurement
}

func (s *GranuleStore) selectMeasurements(requested []string) ([]bandSelection, error) {
	if len(requested) == 0 {
		out := make([]bandSelection, 0, len(s.product.Measurements))
		for _, m := range s.product.Measurements {
			out = append(out, bandSelection{name: m.Name, m: m})
		}
		return out, nil
	}
	out := make([]bandSelection, 0, len(requested))
	for _, name := range requested {
		m, ok := s.product.Measurement(name)
		if !ok {
			return nil, errors.Newf("product %s has no measurement %q", s.product.Name, name)
		}
		out = append(out, bandSelection{name: name, m: m})
	}
	return out, nil
}

func (s *GranuleStore) intersecting(window catalog.Bounds) []*granule {
	rect, _ := rtreego.NewRect(
		rtreego.Point{window.Left, window.Bottom},
		[]float64{window.Right - window.Left, window.Top - window.Bottom})
	spatials := s.rtree.SearchIntersect(rect)

	out := make([]*granule, 0, len(spatials))
	for _, sp := range spatials {
		out = append(out, sp.(*granule))
	}
	return out
}

type timeSlice struct {
	when     time.Time
	granules []*granule
}

func groupByTime(hits []*granule) []timeSlice {
	grouped := map[time.Time][]*granule{}
	for _, g := range hits {
		grouped[g.ds.Time] = append(grouped[g.ds.Time], g)
	}

	out := make([]timeSlice, 0, len(grouped))
	for when, gs := range grouped {
		sort.Slice(gs, func(i, j int) bool { return gs[i].ds.ID < gs[j].ds.ID })
		out = append(out, timeSlice{when: when, granules: gs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].when.Before(out[j].when) })
	return out
}

func (s *GranuleStore) loadBand(epsg int, m catalog.Measurement, slices []timeSlice, minx, maxy, rx, ry float64, width, height int) (*coverage.Array, error) {
	dtype, err := bandDataType(m.DType)
	if err != nil {
		return nil, err
	}

	planeLen := width * height
	flat := makeBuffer(m.DType, len(slices)*planeLen)

	sr, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build SRS EPSG:%d", epsg)
	}
	defer sr.Close()

	for ti, slice := range slices {
		target, err := godal.Create(godal.Memory, "", 1, dtype, width, height)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create target grid")
		}

		if err := s.warpSlice(target, sr, m, slice, minx, maxy, rx, ry); err != nil {
			target.Close()
			return nil, err
		}

		plane := sliceBuffer(flat, ti*planeLen, planeLen)
		err = target.Bands()[0].Read(0, 0, plane, width, height)
		target.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read back band %q", m.Name)
		}
	}

	return &coverage.Array{
		DType: m.DType,
		Dims:  []string{"time", "y", "x"},
		Shape: []int{len(slices), height, width},
		Data:  flat,
		Attrs: map[string]string{
			"units":  m.Units,
			"nodata": strconv.FormatFloat(float64(m.NoData), 'g', -1, 64),
			"crs":    crsString(epsg),
		},
	}, nil
}

func (s *GranuleStore) warpSlice(target *godal.Dataset, sr *godal.SpatialRef, m catalog.Measurement, slice timeSlice, minx, maxy, rx, ry float64) error {
	if err := target.SetSpatialRef(sr); err != nil {
		return errors.Wrap(err, "failed to set target SRS")
	}
	if err := target.SetGeoTransform([6]float64{minx, rx, 0, maxy, 0, -ry}); err != nil {
		return errors.Wrap(err, "failed to set target geotransform")
	}

	band := target.Bands()[0]
	if err := band.SetNoData(float64(m.NoData)); err != nil {
		return errors.Wrap(err, "failed to set target nodata")
	}
	if err := band.Fill(float64(m.NoData), 0); err != nil {
		return errors.Wrap(err, "failed to fill target with nodata")
	}

	for _, g := range slice.granules {
		path, ok := granulePath(g.ds, m)
		if !ok {
			logger.Log.Warnf("granule %s carries no file for measurement %q", g.ds.ID, m.Name)
			continue
		}

		src, err := godal.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open granule raster %s", path)
		}
		err = target.WarpInto([]*godal.Dataset{src}, []string{"-r", "near"})
		src.Close()
		if err != nil {
			return errors.Wrapf(err, "failed to warp granule raster %s", path)
		}
	}

	return nil
}

// granulePath resolves the measurement's raster location for one granule,
// trying the canonical name first, then aliases.
func granulePath(ds *catalog.Dataset, m catalog.Measurement) (string, bool) {
	names := append([]string{m.Name}, m.Aliases...)
	for _, name := range names {
		rel, ok := ds.MeasurementPaths[name]
		if !ok {
			continue
		}
		if ds.Location == "" || filepath.IsAbs(rel) || strings.Contains(rel, "://") {
			return rel, true
		}
		if strings.Contains(ds.Location, "://") {
			return strings.TrimSuffix(ds.Location, "/") + "/" + rel, true
		}
		return filepath.Join(ds.Location, rel), true
	}
	return "", false
}

func timeCoord(slices []timeSlice) *coverage.Array {
	values := make([]float64, len(slices))
	for i, s := range slices {
		values[i] = float64(s.when.Unix())
	}
	return &coverage.Array{
		DType: "float64",
		Dims:  []string{"time"},
		Shape: []int{len(values)},
		Data:  values,
		// The serialisation units attribute is dropped again by the
		// engine before encoding; it is recorded here because the
		// values are raw epoch seconds.
		Attrs: map[string]string{
			"units":    "seconds since 1970-01-01 00:00:00",
			"calendar": "gregorian",
		},
	}
}

func axisCoords(minx, maxy, rx, ry float64, width, height int) (*coverage.Array, *coverage.Array) {
	ys := make([]float64, height)
	for j := 0; j < height; j++ {
		ys[j] = maxy - ry/2 - float64(j)*ry
	}
	xs := make([]float64, width)
	for i := 0; i < width; i++ {
		xs[i] = minx + rx/2 + float64(i)*rx
	}

	y := &coverage.Array{
		DType: "float64",
		Dims:  []string{"y"},
		Shape: []int{height},
		Data:  ys,
		Attrs: map[string]string{"units": "1"},
	}
	x := &coverage.Array{
		DType: "float64",
		Dims:  []string{"x"},
		Shape: []int{width},
		Data:  xs,
		Attrs: map[string]string{"units": "1"},
	}
	return y, x
}

func parseEPSG(crs string) (int, error) {
	parts := strings.SplitN(crs, ":", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "epsg") {
		return 0, errors.Newf("load CRS %q is not an epsg identifier", crs)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Newf("load CRS %q carries a non-numeric code", crs)
	}
	return code, nil
}

func crsString(epsg int) string {
	return fmt.Sprintf("epsg:%d", epsg)
}

func bandDataType(dtype string) (godal.DataType, error) {
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

func makeBuffer(dtype string, n int) interface{} {
	switch dtype {
	case "uint8", "bool":
		return make([]uint8, n)
	case "int8":
		return make([]int8, n)
	case "int16":
		return make([]int16, n)
	case "uint16":
		return make([]uint16, n)
	case "int32":
		return make([]int32, n)
	case "uint32":
		return make([]uint32, n)
	case "float32":
		return make([]float32, n)
	default:
		return make([]float64, n)
	}
}

func sliceBuffer(buf interface{}, off, n int) interface{} {
	switch b := buf.(type) {
	case []uint8:
		return b[off : off+n]
	case []int8:
		return b[off : off+n]
	case []int16:
		return b[off : off+n]
	case []uint16:
		return b[off : off+n]
	case []int32:
		return b[off : off+n]
	case []uint32:
		return b[off : off+n]
	case []float32:
		return b[off : off+n]
	case []float64:
		return b[off : off+n]
	}
	return nil
}
