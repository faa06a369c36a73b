package models

// RegionRow is one summary value for one region of one parcellation
type RegionRow struct {
	Parcellation string
	Region       string
	Value        float64
}

// ResultTable is the long-format output of a reduction. Rows are in catalog
// order, then in label table order within each parcellation.
type ResultTable []RegionRow

// Count returns the number of rows tagged with the given parcellation
func (t ResultTable) Count(parcellation string) int {
	n := 0
	for _, row := range t {
		if row.Parcellation == parcellation {
			n++
		}
	}
	return n
}

// Parcellations lists the distinct parcellation names in first-seen order
func (t ResultTable) Parcellations() []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range t {
		if !seen[row.Parcellation] {
			seen[row.Parcellation] = true
			names = append(names, row.Parcellation)
		}
	}
	return names
}

// Values returns the Value column
func (t ResultTable) Values() []float64 {
	values := make([]float64, len(t))
	for i, row := range t {
		values[i] = row.Value
	}
	return values
}
