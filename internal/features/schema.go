package features

// Schema is an ordered list of feature column names.
type Schema []string

// Record is a sparse, name-keyed feature row.
type Record map[string]float64

// Vector aligns r to the schema. Columns absent from r are zero-filled
// and reported in missing; columns of r outside the schema are dropped.
func (s Schema) Vector(r Record) (vec []float64, missing []string) {
	vec = make([]float64, len(s))
	for i, name := range s {
		v, ok := r[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		vec[i] = v
	}
	return vec, missing
}

// Index returns the position of each column.
func (s Schema) Index() map[string]int {
	idx := make(map[string]int, len(s))
	for i, name := range s {
		idx[name] = i
	}
	return idx
}

// Merge returns a new record holding the union of r and other, with
// other winning on conflicts.
func (r Record) Merge(other Record) Record {
	out := make(Record, len(r)+len(other))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
