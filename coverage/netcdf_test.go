package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeNetCDFRoundTrip(t *testing.T) {
	loaded := &LoadedCoverage{
		BandOrder: []string{"B02"},
		Bands: map[string]*Array{
			"B02": {
				DType: "float32",
				Dims:  []string{"time", "y", "x"},
				Shape: []int{1, 2, 3},
				Data:  []float32{1, 2, 3, 4, 5, 6},
				Attrs: map[string]string{"units": "1"},
			},
		},
		Coords: map[string]*Array{
			"time": {
				DType: "float64",
				Dims:  []string{"time"},
				Shape: []int{1},
				Data:  []float64{1609459200},
				Attrs: map[string]string{"calendar": "gregorian"},
			},
			"y": {
				DType: "float64",
				Dims:  []string{"y"},
				Shape: []int{2},
				Data:  []float64{49.95, 49.85},
				Attrs: map[string]string{"units": "1"},
			},
			"x": {
				DType: "float64",
				Dims:  []string{"x"},
				Shape: []int{3},
				Data:  []float64{10.05, 10.15, 10.25},
				Attrs: map[string]string{"units": "1"},
			},
		},
		GlobalAttrs: map[string]string{"crs": "epsg:4326"},
	}

	raw, err := encodeNetCDF(loaded)
	require.NoError(t, err)
	require.True(t, len(raw) > 4)
	assert.Equal(t, []byte("CDF"), raw[:3])

	// Reopen through the CDF reader and verify the layout survived.
	path := filepath.Join(t.TempDir(), "roundtrip.nc")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	group, err := cdf.Open(path)
	require.NoError(t, err)
	defer group.Close()

	assert.ElementsMatch(t, []string{"time", "y", "x", "B02"}, group.ListVariables())

	v, err := group.GetVariable("B02")
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "y", "x"}, v.Dimensions)

	values, ok := v.Values.([][][]float32)
	require.True(t, ok, "unexpected value type %T", v.Values)
	require.Len(t, values, 1)
	require.Len(t, values[0], 2)
	assert.Equal(t, []float32{1, 2, 3}, []float32(values[0][0]))
	assert.Equal(t, []float32{4, 5, 6}, []float32(values[0][1]))

	units, has := v.Attributes.Get("units")
	require.True(t, has)
	assert.Equal(t, "1", units)

	tv, err := group.GetVariable("time")
	require.NoError(t, err)
	_, hasUnits := tv.Attributes.Get("units")
	assert.False(t, hasUnits, "time serialisation units must not be written")

	crs, has := group.Attributes().Get("crs")
	require.True(t, has)
	assert.Equal(t, "epsg:4326", crs)
}

func TestNestedReshape(t *testing.T) {
	arr := &Array{
		DType: "int16",
		Dims:  []string{"y", "x"},
		Shape: []int{2, 2},
		Data:  []int16{1, 2, 3, 4},
	}
	nestedVals, err := nested(arr)
	require.NoError(t, err)
	grid, ok := nestedVals.([][]int16)
	require.True(t, ok)
	assert.Equal(t, []int16{3, 4}, grid[1])
}
