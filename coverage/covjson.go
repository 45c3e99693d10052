package coverage

// CoverageJSON document structure, limited to the Grid domain shape this
// engine emits. Field names follow the CoverageJSON community standard.

type CovJSON struct {
	Type       string               `json:"type"`
	Domain     CovJSONDomain        `json:"domain"`
	Parameters map[string]Parameter `json:"parameters"`
	Ranges     map[string]NdArray   `json:"ranges"`
}

type CovJSONDomain struct {
	Type        string        `json:"type"`
	DomainType  string        `json:"domainType"`
	Axes        DomainAxes    `json:"axes"`
	Referencing []Referencing `json:"referencing"`
}

type DomainAxes struct {
	X RegularAxis `json:"x"`
	Y RegularAxis `json:"y"`
}

type RegularAxis struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Num   float64 `json:"num"`
}

type Referencing struct {
	Coordinates []string        `json:"coordinates"`
	System      ReferenceSystem `json:"system"`
}

type ReferenceSystem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Parameter struct {
	Type             string           `json:"type"`
	Description      string           `json:"description"`
	Unit             Unit             `json:"unit"`
	ObservedProperty ObservedProperty `json:"observedProperty"`
}

type Unit struct {
	Symbol string `json:"symbol"`
}

type ObservedProperty struct {
	ID    string            `json:"id"`
	Label map[string]string `json:"label"`
}

type NdArray struct {
	Type      string      `json:"type"`
	DataType  string      `json:"dataType"`
	AxisNames []string    `json:"axisNames"`
	Shape     []float64   `json:"shape"`
	Values    interface{} `json:"values"`
}

// encodeCovJSON builds the CoverageJSON document for the requested bands.
// bands must already be defaulted to the loaded coverage's natural order
// when the request named none.
func encodeCovJSON(desc *CoverageDescriptor, window SubsetWindow, loaded *LoadedCoverage, bands []string) (*CovJSON, error) {
	width, height := windowGridSize(desc, window)

	cj := &CovJSON{
		Type: "Coverage",
		Domain: CovJSONDomain{
			Type:       "Domain",
			DomainType: "Grid",
			Axes: DomainAxes{
				X: RegularAxis{Start: window.MinX, Stop: window.MaxX, Num: width},
				Y: RegularAxis{Start: window.MinY, Stop: window.MaxY, Num: height},
			},
			Referencing: []Referencing{{
				Coordinates: []string{"x", "y"},
				System: ReferenceSystem{
					Type: desc.CRSType,
					ID:   desc.CRSURI,
				},
			}},
		},
		Parameters: map[string]Parameter{},
		Ranges:     map[string]NdArray{},
	}

	for _, name := range bands {
		arr, ok := loaded.Bands[name]
		if !ok {
			return nil, queryErrorf(CodeInvalidParameter, "invalid query parameter: no band %q in loaded coverage", name)
		}
		units, ok := arr.Attrs["units"]
		if !ok {
			return nil, queryErrorf(CodeInvalidParameter, "invalid query parameter: band %q carries no units attribute", name)
		}

		cj.Parameters[name] = Parameter{
			Type:        "Parameter",
			Description: name,
			Unit:        Unit{Symbol: units},
			ObservedProperty: ObservedProperty{
				ID:    name,
				Label: map[string]string{"en": name},
			},
		}

		cj.Ranges[name] = NdArray{
			Type:      "NdArray",
			DataType:  arr.DType,
			AxisNames: []string{"y", "x"},
			Shape:     []float64{height, width},
			Values:    arr.Data,
		}
	}

	return cj, nil
}
