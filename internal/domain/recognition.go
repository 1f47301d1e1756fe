package domain

// Recognition is the provider-agnostic result of one recognizer round trip.
type Recognition struct {
	TopIntent string
	Entities  map[string][]string
}

// Entity returns the first extracted value for an entity name, if any.
func (r Recognition) Entity(name string) (string, bool) {
	vals := r.Entities[name]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}
