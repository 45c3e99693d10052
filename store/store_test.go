package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nci/odccov/catalog"
)

func utmDataset(id string, left, top float64, when string) *catalog.Dataset {
	ts, _ := time.Parse(time.RFC3339, when)
	return &catalog.Dataset{
		ID:        id,
		CRS:       "epsg:32633",
		Transform: [6]float64{10, 0, left, 0, -10, top},
		Shape:     [2]int{100, 100},
		Location:  "/data/" + id,
		MeasurementPaths: map[string]string{
			"B02": "b02.tif",
		},
		Time: ts.UTC(),
	}
}

func utmProduct() *catalog.Product {
	return &catalog.Product{
		Name: "s2_test",
		CRS:  "epsg:32633",
		Measurements: []catalog.Measurement{
			{Name: "B02", DType: "uint16", Units: "1", Aliases: []string{"blue"}},
			{Name: "B08", DType: "uint16", Units: "1"},
		},
	}
}

func TestNewRequiresGranules(t *testing.T) {
	_, err := New(utmProduct(), nil)
	assert.Error(t, err)
}

func TestIntersecting(t *testing.T) {
	s, err := New(utmProduct(), []*catalog.Dataset{
		utmDataset("a", 300000, 5100000, "2021-01-01T00:00:00Z"),
		utmDataset("b", 301000, 5100000, "2021-01-01T00:00:00Z"),
		utmDataset("far", 900000, 6000000, "2021-01-01T00:00:00Z"),
	})
	require.NoError(t, err)

	hits := s.intersecting(catalog.Bounds{Left: 300500, Bottom: 5099500, Right: 301500, Top: 5100000})
	ids := make([]string, len(hits))
	for i, g := range hits {
		ids[i] = g.ds.ID
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestGroupByTimeOrdering(t *testing.T) {
	hits := []*granule{
		{ds: utmDataset("z", 0, 0, "2021-02-01T00:00:00Z")},
		{ds: utmDataset("b", 0, 0, "2021-01-01T00:00:00Z")},
		{ds: utmDataset("a", 0, 0, "2021-01-01T00:00:00Z")},
	}

	slices := groupByTime(hits)
	require.Len(t, slices, 2)

	// Slices are time-ordered, granules within a slice ID-ordered.
	assert.Equal(t, "2021-01-01T00:00:00Z", slices[0].when.Format(time.RFC3339))
	require.Len(t, slices[0].granules, 2)
	assert.Equal(t, "a", slices[0].granules[0].ds.ID)
	assert.Equal(t, "b", slices[0].granules[1].ds.ID)
	assert.Equal(t, "z", slices[1].granules[0].ds.ID)
}

func TestSelectMeasurements(t *testing.T) {
	s := &GranuleStore{product: utmProduct()}

	all, err := s.selectMeasurements(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "B02", all[0].name)
	assert.Equal(t, "B08", all[1].name)

	_, err = s.selectMeasurements([]string{"B99"})
	assert.ErrorContains(t, err, "B99")
}

// A band requested by alias must resolve to the canonical measurement but
// stay keyed by the alias, so the caller finds the loaded array under the
// name it asked for.
func TestSelectMeasurementsKeepsRequestedSpelling(t *testing.T) {
	s := &GranuleStore{product: utmProduct()}

	some, err := s.selectMeasurements([]string{"blue", "B08"})
	require.NoError(t, err)
	require.Len(t, some, 2)

	assert.Equal(t, "blue", some[0].name)
	assert.Equal(t, "B02", some[0].m.Name)
	assert.Equal(t, "B08", some[1].name)
	assert.Equal(t, "B08", some[1].m.Name)
}

func TestGranulePath(t *testing.T) {
	m := catalog.Measurement{Name: "B02", Aliases: []string{"blue"}}

	ds := utmDataset("a", 0, 0, "2021-01-01T00:00:00Z")
	path, ok := granulePath(ds, m)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/data/a", "b02.tif"), path)

	// Alias key in the dataset document.
	ds.MeasurementPaths = map[string]string{"blue": "blue.tif"}
	path, ok = granulePath(ds, m)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/data/a", "blue.tif"), path)

	// Absolute and URL paths pass through untouched.
	ds.MeasurementPaths = map[string]string{"B02": "/abs/b02.tif"}
	path, _ = granulePath(ds, m)
	assert.Equal(t, "/abs/b02.tif", path)

	ds.MeasurementPaths = map[string]string{"B02": "s3://bucket/b02.tif"}
	path, _ = granulePath(ds, m)
	assert.Equal(t, "s3://bucket/b02.tif", path)

	// URL location joins with a single slash.
	ds.Location = "s3://bucket/granules/a/"
	ds.MeasurementPaths = map[string]string{"B02": "b02.tif"}
	path, _ = granulePath(ds, m)
	assert.Equal(t, "s3://bucket/granules/a/b02.tif", path)

	ds.MeasurementPaths = map[string]string{"B08": "b08.tif"}
	_, ok = granulePath(ds, m)
	assert.False(t, ok)
}

func TestParseEPSG(t *testing.T) {
	code, err := parseEPSG("epsg:32633")
	require.NoError(t, err)
	assert.Equal(t, 32633, code)

	code, err = parseEPSG("EPSG:4326")
	require.NoError(t, err)
	assert.Equal(t, 4326, code)

	_, err = parseEPSG("+proj=utm +zone=33")
	assert.Error(t, err)
	_, err = parseEPSG("epsg:x")
	assert.Error(t, err)
}

func TestAxisCoordsPixelCentres(t *testing.T) {
	y, x := axisCoords(300000, 5100000, 10, 10, 3, 2)

	assert.Equal(t, []float64{300005, 300015, 300025}, x.Data)
	assert.Equal(t, []float64{5099995, 5099985}, y.Data)
	assert.Equal(t, []int{2}, y.Shape)
	assert.Equal(t, []int{3}, x.Shape)
}
