package coverage

import (
	"os"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/cockroachdb/errors"
)

// attributeMap converts a plain attrs map into the writer's ordered form.
func attributeMap(attrs map[string]string) (api.AttributeMap, error) {
	keys := make([]string, 0, len(attrs))
	values := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		keys = append(keys, k)
		values[k] = v
	}
	sort.Strings(keys)
	return util.NewOrderedMap(keys, values)
}

// coordOrder fixes the variable order for coordinate variables: known
// dimensions first, anything else after, alphabetically.
func coordOrder(coords map[string]*Array) []string {
	preferred := []string{"time", "y", "x", "latitude", "longitude"}
	seen := map[string]bool{}
	var order []string
	for _, name := range preferred {
		if _, ok := coords[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range coords {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// encodeNetCDF serialises the whole loaded coverage, coordinate variables
// included, to classic-variant NetCDF bytes. The writer targets the 64-bit
// offset CDF layout.
func encodeNetCDF(loaded *LoadedCoverage) ([]byte, error) {
	tmp, err := os.CreateTemp("", "coverage_*.nc")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create netcdf temp file")
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	cw, err := cdf.OpenWriter(tmpName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open netcdf writer")
	}

	if len(loaded.GlobalAttrs) > 0 {
		globals, err := attributeMap(loaded.GlobalAttrs)
		if err != nil {
			return nil, err
		}
		if err := cw.AddAttributes(globals); err != nil {
			return nil, errors.Wrap(err, "failed to write global attributes")
		}
	}

	for _, name := range coordOrder(loaded.Coords) {
		coord := loaded.Coords[name]
		attrs, err := attributeMap(coord.Attrs)
		if err != nil {
			return nil, err
		}
		err = cw.AddVar(name, api.Variable{
			Values:     coord.Data,
			Dimensions: []string{name},
			Attributes: attrs,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to write coordinate %q", name)
		}
	}

	for _, name := range loaded.BandOrder {
		arr := loaded.Bands[name]
		values, err := nested(arr)
		if err != nil {
			return nil, err
		}
		attrs, err := attributeMap(arr.Attrs)
		if err != nil {
			return nil, err
		}
		err = cw.AddVar(name, api.Variable{
			Values:     values,
			Dimensions: arr.Dims,
			Attributes: attrs,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to write variable %q", name)
		}
	}

	if err := cw.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalise netcdf stream")
	}

	out, err := os.ReadFile(tmpName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read netcdf temp file")
	}
	return out, nil
}
