package coverage

import "github.com/nci/odccov/catalog"

// MeasurementDescriptor is the normalised view of one band, 1-indexed in
// product definition order.
type MeasurementDescriptor struct {
	ID      int
	Name    string
	DType   string
	NoData  float64
	Unit    string
	Aliases []string
}

// ResolveMeasurements maps the product's measurement table into descriptor
// form. A missing aliases field stays nil rather than failing.
func ResolveMeasurements(product *catalog.Product) []MeasurementDescriptor {
	descriptors := make([]MeasurementDescriptor, len(product.Measurements))
	for i, m := range product.Measurements {
		descriptors[i] = MeasurementDescriptor{
			ID:      i + 1,
			Name:    m.Name,
			DType:   m.DType,
			NoData:  float64(m.NoData),
			Unit:    m.Units,
			Aliases: m.Aliases,
		}
	}
	return descriptors
}
