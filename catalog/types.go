// Package catalog provides read access to an OpenDataCube style product
// index: product definitions with their measurement schemas, and the
// per-dataset (granule) grid metadata needed to answer coverage queries.
//
// Two index backends are provided: a Postgres backend speaking the ODC
// "agdc" schema, and a file backend reading product definition and EO3
// dataset documents from a directory of YAML files.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bounds is a native-CRS bounding box.
type Bounds struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// Union returns the smallest box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	u := b
	if o.Left < u.Left {
		u.Left = o.Left
	}
	if o.Bottom < u.Bottom {
		u.Bottom = o.Bottom
	}
	if o.Right > u.Right {
		u.Right = o.Right
	}
	if o.Top > u.Top {
		u.Top = o.Top
	}
	return u
}

// Intersects reports whether the two boxes share any area.
func (b Bounds) Intersects(o Bounds) bool {
	return b.Left <= o.Right && o.Left <= b.Right &&
		b.Bottom <= o.Top && o.Bottom <= b.Top
}

// UnionBounds folds a non-empty list of boxes into their union.
func UnionBounds(bbs []Bounds) Bounds {
	u := bbs[0]
	for _, b := range bbs[1:] {
		u = u.Union(b)
	}
	return u
}

// NoData is a nodata fill value. EO3 documents serialise NaN as the string
// "NaN" in JSON, so it needs its own decoding.
type NoData float64

func (n *NoData) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid nodata value %q: %v", s, err)
	}
	*n = NoData(v)
	return nil
}

func (n *NoData) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v float64
	if err := unmarshal(&v); err == nil {
		*n = NoData(v)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid nodata value %q: %v", s, err)
	}
	*n = NoData(v)
	return nil
}

// Measurement describes one band of a product.
type Measurement struct {
	Name    string   `yaml:"name" json:"name"`
	DType   string   `yaml:"dtype" json:"dtype"`
	NoData  NoData   `yaml:"nodata" json:"nodata"`
	Units   string   `yaml:"units" json:"units"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Resolution is a product-level storage resolution in native CRS units.
// Y is negative for north-up products.
type Resolution struct {
	X float64
	Y float64
}

// Product is a normalised product definition. CRS and Resolution are
// optional at product level; when absent they are resolved from dataset
// records by the coverage layer.
type Product struct {
	Name         string
	CRS          string
	Resolution   *Resolution
	Measurements []Measurement
}

// Measurement looks a band up by name or alias.
func (p *Product) Measurement(name string) (Measurement, bool) {
	for _, m := range p.Measurements {
		if m.Name == name {
			return m, true
		}
		for _, a := range m.Aliases {
			if a == name {
				return m, true
			}
		}
	}
	return Measurement{}, false
}

// Dataset is the grid metadata of one granule. Transform is the 6-element
// affine (x-res, x-skew, x-origin, y-skew, y-res, y-origin row-major), i.e.
// the first six elements of the EO3 3x3 grid transform. Shape is (rows,
// cols).
type Dataset struct {
	ID               string
	CRS              string
	Transform        [6]float64
	Shape            [2]int
	Location         string
	MeasurementPaths map[string]string
	Time             time.Time
}

// Bounds derives the granule's native-CRS bounding box from its grid
// transform and shape. Axis-aligned grids only; skew terms are ignored,
// which holds for every EO3 product indexed so far.
func (d *Dataset) Bounds() Bounds {
	rows, cols := d.Shape[0], d.Shape[1]
	x0 := d.Transform[2]
	x1 := x0 + d.Transform[0]*float64(cols)
	y0 := d.Transform[5]
	y1 := y0 + d.Transform[4]*float64(rows)
	b := Bounds{Left: x0, Bottom: y1, Right: x1, Top: y0}
	if b.Left > b.Right {
		b.Left, b.Right = b.Right, b.Left
	}
	if b.Bottom > b.Top {
		b.Bottom, b.Top = b.Top, b.Bottom
	}
	return b
}

// Index is the read-only catalog surface the coverage engine is built on.
type Index interface {
	// Product returns the named product definition.
	Product(ctx context.Context, name string) (*Product, error)
	// Datasets returns every active dataset record of the product.
	Datasets(ctx context.Context, product string) ([]*Dataset, error)
}

// eo3Doc mirrors the subset of an EO3 dataset document the index needs.
// Tagged for both YAML (file index) and JSON (Postgres jsonb metadata).
type eo3Doc struct {
	ID    string `yaml:"id" json:"id"`
	CRS   string `yaml:"crs" json:"crs"`
	Grids map[string]struct {
		Shape     [2]int    `yaml:"shape" json:"shape"`
		Transform []float64 `yaml:"transform" json:"transform"`
	} `yaml:"grids" json:"grids"`
	Measurements map[string]struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"measurements" json:"measurements"`
	Properties struct {
		Datetime string `yaml:"datetime" json:"datetime"`
	} `yaml:"properties" json:"properties"`
}

func (doc *eo3Doc) toDataset(location string) (*Dataset, error) {
	grid, ok := doc.Grids["default"]
	if !ok {
		return nil, fmt.Errorf("dataset %s has no default grid", doc.ID)
	}
	if len(grid.Transform) < 6 {
		return nil, fmt.Errorf("dataset %s: grid transform has %d elements, want >= 6", doc.ID, len(grid.Transform))
	}

	ds := &Dataset{
		ID:               doc.ID,
		CRS:              doc.CRS,
		Shape:            grid.Shape,
		Location:         location,
		MeasurementPaths: map[string]string{},
	}
	copy(ds.Transform[:], grid.Transform[:6])

	for name, m := range doc.Measurements {
		ds.MeasurementPaths[name] = m.Path
	}

	if doc.Properties.Datetime != "" {
		t, err := time.Parse(time.RFC3339, doc.Properties.Datetime)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: bad datetime %q: %v", doc.ID, doc.Properties.Datetime, err)
		}
		ds.Time = t.UTC()
	}

	return ds, nil
}

// productDoc mirrors the subset of an ODC product definition document the
// index needs. Resolution may be keyed x/y or longitude/latitude.
type productDoc struct {
	Name    string `yaml:"name" json:"name"`
	Storage *struct {
		CRS        string             `yaml:"crs" json:"crs"`
		Resolution map[string]float64 `yaml:"resolution" json:"resolution"`
	} `yaml:"storage" json:"storage"`
	Measurements []Measurement `yaml:"measurements" json:"measurements"`
}

func (doc *productDoc) toProduct() *Product {
	p := &Product{
		Name:         doc.Name,
		Measurements: doc.Measurements,
	}
	if doc.Storage == nil {
		return p
	}
	p.CRS = doc.Storage.CRS
	if res := doc.Storage.Resolution; res != nil {
		x, xOK := res["x"]
		y, yOK := res["y"]
		if !xOK || !yOK {
			x, xOK = res["longitude"]
			y, yOK = res["latitude"]
		}
		if xOK && yOK {
			p.Resolution = &Resolution{X: x, Y: y}
		}
	}
	return p
}
