package coverage

// OGC Coverage Implementation Schema JSON views of the descriptor state.

type DomainSet struct {
	Type        string      `json:"type"`
	GeneralGrid GeneralGrid `json:"generalGrid"`
}

type GeneralGrid struct {
	Type       string           `json:"type"`
	SRSName    string           `json:"srsName"`
	AxisLabels []string         `json:"axisLabels"`
	Axis       []RegularAxisDef `json:"axis"`
	GridLimits GridLimits       `json:"gridLimits"`
}

type RegularAxisDef struct {
	Type       string  `json:"type"`
	AxisLabel  string  `json:"axisLabel"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
	UOMLabel   string  `json:"uomLabel"`
	Resolution float64 `json:"resolution"`
}

type GridLimits struct {
	Type       string         `json:"type"`
	SRSName    string         `json:"srsName"`
	AxisLabels []string       `json:"axisLabels"`
	Axis       []IndexAxisDef `json:"axis"`
}

type IndexAxisDef struct {
	Type       string  `json:"type"`
	AxisLabel  string  `json:"axisLabel"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
}

type RangeType struct {
	Type  string       `json:"type"`
	Field []RangeField `json:"field"`
}

type RangeField struct {
	ID         int           `json:"id"`
	Type       string        `json:"type"`
	Name       string        `json:"name"`
	Definition string        `json:"definition"`
	NoData     float64       `json:"nodata"`
	UOM        UnitReference `json:"uom"`
	Meta       FieldMeta     `json:"_meta"`
}

type UnitReference struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type FieldMeta struct {
	Tags FieldTags `json:"tags"`
}

type FieldTags struct {
	Aliases []string `json:"Aliases"`
}

// buildDomainSet renders the descriptor as a CIS general grid: one regular
// axis per spatial dimension plus an index-space grid-limits block.
func buildDomainSet(desc *CoverageDescriptor) *DomainSet {
	return &DomainSet{
		Type: "DomainSetType",
		GeneralGrid: GeneralGrid{
			Type:       "GeneralGridCoverageType",
			SRSName:    desc.CRSURI,
			AxisLabels: []string{desc.XAxisLabel, desc.YAxisLabel},
			Axis: []RegularAxisDef{{
				Type:       "RegularAxisType",
				AxisLabel:  desc.XAxisLabel,
				LowerBound: desc.BBox.Left,
				UpperBound: desc.BBox.Right,
				UOMLabel:   desc.BBoxUnits,
				Resolution: desc.ResX,
			}, {
				Type:       "RegularAxisType",
				AxisLabel:  desc.YAxisLabel,
				LowerBound: desc.BBox.Bottom,
				UpperBound: desc.BBox.Top,
				UOMLabel:   desc.BBoxUnits,
				Resolution: desc.ResY,
			}},
			GridLimits: GridLimits{
				Type:       "GridLimitsType",
				SRSName:    index2DURI,
				AxisLabels: []string{"i", "j"},
				Axis: []IndexAxisDef{{
					Type:       "IndexAxisType",
					AxisLabel:  "i",
					LowerBound: 0,
					UpperBound: desc.Width,
				}, {
					Type:       "IndexAxisType",
					AxisLabel:  "j",
					LowerBound: 0,
					UpperBound: desc.Height,
				}},
			},
		},
	}
}

// buildRangeType renders the measurement descriptors as a CIS data record.
func buildRangeType(measurements []MeasurementDescriptor) *RangeType {
	fields := make([]RangeField, len(measurements))
	for i, m := range measurements {
		fields[i] = RangeField{
			ID:         m.ID,
			Type:       "QuantityType",
			Name:       m.Name,
			Definition: m.DType,
			NoData:     m.NoData,
			UOM: UnitReference{
				Type: "UnitReference",
				Code: m.Unit,
			},
			Meta: FieldMeta{
				Tags: FieldTags{Aliases: m.Aliases},
			},
		}
	}
	return &RangeType{
		Type:  "DataRecordType",
		Field: fields,
	}
}
