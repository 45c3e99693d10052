package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nci/odccov/catalog"
)

func geographicDescriptor() *CoverageDescriptor {
	return &CoverageDescriptor{
		BBox:       catalog.Bounds{Left: 0, Bottom: 30, Right: 40, Top: 60},
		CRS:        CRSInfo{EPSG: 4326},
		CRSURI:     crs84URI,
		CRSType:    "GeographicCRS",
		XAxisLabel: "Lon",
		YAxisLabel: "Lat",
		ResX:       0.1,
		ResY:       -0.1,
		Transform:  [6]float64{0.1, 0, 0, 0, -0.1, 60},
		BBoxUnits:  "deg",
	}
}

func projectedDescriptor() *CoverageDescriptor {
	return &CoverageDescriptor{
		BBox:       catalog.Bounds{Left: 300000, Bottom: 5000000, Right: 400000, Top: 5100000},
		CRS:        CRSInfo{EPSG: 32633, Projected: true, Unit: "metre"},
		CRSURI:     epsgURI(32633),
		CRSType:    "ProjectedCRS",
		XAxisLabel: "x",
		YAxisLabel: "y",
		ResX:       10,
		ResY:       -10,
		Transform:  [6]float64{10, 0, 300000, 0, -10, 5100000},
		BBoxUnits:  "metre",
	}
}

func TestResolveSubsetExclusiveForms(t *testing.T) {
	crs := newFakeCRS()
	crs.failOnUse = true

	subsets := map[string][]float64{
		"Lon": {10, 10},
		"Lat": {40, 40},
	}
	_, err := ResolveSubset(geographicDescriptor(), []float64{10, 40, 20, 50}, subsets, crs)

	qe, ok := IsQueryError(err)
	require.True(t, ok, "want a query error, got %v", err)
	assert.Equal(t, CodeExclusiveSubsets, qe.Code)
	// Fails before any transform or load is attempted.
	assert.Equal(t, 0, crs.transforms)
}

func TestResolveSubsetGeographicIdentity(t *testing.T) {
	crs := newFakeCRS()
	crs.failOnUse = true

	window, err := ResolveSubset(geographicDescriptor(), []float64{10, 40, 20, 50}, nil, crs)
	require.NoError(t, err)

	// Native CRS equals the query bbox CRS: no transform, no drift.
	assert.Equal(t, 10.0, window.MinX)
	assert.Equal(t, 40.0, window.MinY)
	assert.Equal(t, 20.0, window.MaxX)
	assert.Equal(t, 50.0, window.MaxY)
}

func TestResolveSubsetReprojectionRoundTrip(t *testing.T) {
	crs := newFakeCRS()
	bbox := []float64{10, 40, 20, 50}

	window, err := ResolveSubset(projectedDescriptor(), bbox, nil, crs)
	require.NoError(t, err)
	assert.Equal(t, 1, crs.transforms)

	back, err := crs.TransformBBox(32633, 4326, [4]float64{window.MinX, window.MinY, window.MaxX, window.MaxY})
	require.NoError(t, err)
	for i := range bbox {
		assert.InDelta(t, bbox[i], back[i], 1e-9)
	}
}

func TestResolveSubsetAxisRanges(t *testing.T) {
	crs := newFakeCRS()
	crs.failOnUse = true

	subsets := map[string][]float64{
		"x": {310000, 350000},
		"y": {5010000, 5050000},
	}
	// Named-axis subsets are native-CRS literals, no reprojection even on
	// a projected descriptor.
	window, err := ResolveSubset(projectedDescriptor(), nil, subsets, crs)
	require.NoError(t, err)

	assert.Equal(t, 310000.0, window.MinX)
	assert.Equal(t, 350000.0, window.MaxX)
	assert.Equal(t, 5010000.0, window.MinY)
	assert.Equal(t, 5050000.0, window.MaxY)
}

func TestResolveSubsetDefaultsToFullExtent(t *testing.T) {
	desc := geographicDescriptor()
	window, err := ResolveSubset(desc, nil, nil, newFakeCRS())
	require.NoError(t, err)

	assert.Equal(t, desc.BBox.Left, window.MinX)
	assert.Equal(t, desc.BBox.Bottom, window.MinY)
	assert.Equal(t, desc.BBox.Right, window.MaxX)
	assert.Equal(t, desc.BBox.Top, window.MaxY)
}

func TestResolveSubsetBadBBox(t *testing.T) {
	_, err := ResolveSubset(geographicDescriptor(), []float64{10, 40, 20}, nil, newFakeCRS())
	qe, ok := IsQueryError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidParameter, qe.Code)
}

// Mismatched axis labels must not count as a named-axis spatial subset: a
// projected descriptor uses x/y, so Lon/Lat entries are ignored.
func TestResolveSubsetLabelMismatchIgnored(t *testing.T) {
	desc := projectedDescriptor()
	subsets := map[string][]float64{
		"Lon": {10, 20},
		"Lat": {40, 50},
	}
	window, err := ResolveSubset(desc, nil, subsets, newFakeCRS())
	require.NoError(t, err)
	assert.Equal(t, desc.BBox.Left, window.MinX)
	assert.Equal(t, desc.BBox.Top, window.MaxY)
}
