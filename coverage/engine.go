package coverage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/nci/odccov/catalog"
	"github.com/nci/odccov/logger"
)

// Config wires an Engine to its external collaborators.
type Config struct {
	// Product is the name of the ODC product this engine serves.
	Product string
	// Index resolves product and dataset metadata.
	Index catalog.Index
	// Loader is the array-load capability.
	Loader Loader
	// CRS classifies and transforms coordinate reference systems.
	CRS CRSProvider
	// Policy breaks cross-dataset metadata ties. Defaults to
	// FirstDatasetWins.
	Policy HeterogeneityPolicy
}

// Engine answers coverage queries for one product. The descriptors are
// resolved eagerly at construction; afterwards the engine is immutable and
// safe for concurrent Query calls provided the Loader is.
type Engine struct {
	product      string
	loader       Loader
	crs          CRSProvider
	desc         *CoverageDescriptor
	measurements []MeasurementDescriptor
	fields       []string
}

// New constructs the engine by resolving all product metadata up front.
// Any catalog or normalisation failure is fatal and reported as a
// ConnectionError; no partially constructed engine is ever returned.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Index == nil || cfg.Loader == nil || cfg.CRS == nil {
		return nil, &ConnectionError{Err: errors.New("engine config is missing a collaborator")}
	}
	policy := cfg.Policy
	if policy == nil {
		policy = FirstDatasetWins{}
	}

	product, err := cfg.Index.Product(ctx, cfg.Product)
	if err != nil {
		return nil, connectionError(err, "product lookup failed")
	}

	datasets, err := cfg.Index.Datasets(ctx, cfg.Product)
	if err != nil {
		return nil, connectionError(err, "dataset lookup failed")
	}

	desc, err := ResolveGridProperties(product, datasets, cfg.CRS, policy)
	if err != nil {
		return nil, connectionError(err, "grid property resolution failed")
	}

	measurements := ResolveMeasurements(product)

	fields := make([]string, len(measurements))
	for i := range measurements {
		fields[i] = strconv.Itoa(i + 1)
	}

	return &Engine{
		product:      cfg.Product,
		loader:       cfg.Loader,
		crs:          cfg.CRS,
		desc:         desc,
		measurements: measurements,
		fields:       fields,
	}, nil
}

// QueryParams is one coverage query. BBox is WGS84 geographic
// (minx, miny, maxx, maxy); Subsets maps axis labels to native-CRS ranges;
// the two are mutually exclusive. Format selects the encoder: "json"
// (default), "geotiff", anything else falls back to NetCDF. Datetime is
// accepted for interface compatibility and unused by the encoders.
type QueryParams struct {
	RangeSubset []string
	Subsets     map[string][]float64
	BBox        []float64
	Datetime    string
	Format      string
}

// QueryResult is the encoded answer: Coverage for CoverageJSON output, Raw
// for the binary formats.
type QueryResult struct {
	Format   string
	Coverage *CovJSON
	Raw      []byte
}

// Query resolves the spatial window, loads the requested bands and encodes
// them in the requested format.
func (e *Engine) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	bands := params.RangeSubset
	logger.Log.Debugf("bands: %v, subsets: %v", bands, params.Subsets)

	window, err := ResolveSubset(e.desc, params.BBox, params.Subsets, e.crs)
	if err != nil {
		return nil, err
	}
	window.Bands = bands

	loaded, err := e.loader.Load(ctx, buildLoadParams(e.product, e.desc, window))
	if err != nil {
		return nil, wrapQueryError(CodeLoadFailed, err, "coverage load failed")
	}
	postLoad(loaded)

	if len(bands) == 0 {
		bands = loaded.BandOrder
	}

	format := params.Format
	switch {
	case format == "json" || format == "":
		logger.Log.Debugf("creating output in CoverageJSON")
		cj, err := encodeCovJSON(e.desc, window, loaded, bands)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Format: "json", Coverage: cj}, nil

	case strings.EqualFold(format, "geotiff"):
		logger.Log.Debugf("returning data as GeoTIFF")
		raw, err := encodeGeoTIFF(e.desc, loaded, bands, e.measurements)
		if err != nil {
			if _, ok := IsQueryError(err); ok {
				return nil, err
			}
			return nil, wrapQueryError(CodeEncodingFailed, err, "GeoTIFF encoding failed")
		}
		return &QueryResult{Format: "geotiff", Raw: raw}, nil

	default:
		logger.Log.Debugf("returning data as netCDF")
		raw, err := encodeNetCDF(loaded)
		if err != nil {
			return nil, wrapQueryError(CodeEncodingFailed, err, "NetCDF encoding failed")
		}
		return &QueryResult{Format: "netcdf", Raw: raw}, nil
	}
}

// DomainSet returns the CIS JSON grid description of the coverage.
func (e *Engine) DomainSet() *DomainSet {
	return buildDomainSet(e.desc)
}

// RangeType returns the CIS JSON field list of the coverage.
func (e *Engine) RangeType() *RangeType {
	return buildRangeType(e.measurements)
}

// Descriptor returns a copy of the canonical coverage description.
func (e *Engine) Descriptor() CoverageDescriptor {
	return *e.desc
}

// Measurements returns the ordered measurement descriptors.
func (e *Engine) Measurements() []MeasurementDescriptor {
	out := make([]MeasurementDescriptor, len(e.measurements))
	copy(out, e.measurements)
	return out
}

// Fields lists the 1-indexed field identifiers, one per band.
func (e *Engine) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

func crsString(epsg int) string {
	return fmt.Sprintf("epsg:%d", epsg)
}
