package decode

// Value is one decoded field.
type Value struct {
	Name  string
	Value any
}

// Record is the result of one successful decode: field values in schema
// declaration order. The caller owns it.
type Record struct {
	Schema string
	Values []Value
}

func (r Record) Len() int {
	return len(r.Values)
}

// Get returns the value decoded for name.
func (r Record) Get(name string) (any, bool) {
	for _, v := range r.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in declaration order.
func (r Record) Names() []string {
	out := make([]string, len(r.Values))
	for i, v := range r.Values {
		out[i] = v.Name
	}
	return out
}

// Map returns the values keyed by field name. Order is lost.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Values))
	for _, v := range r.Values {
		out[v.Name] = v.Value
	}
	return out
}
