// Package feature defines the parametric feature history: identifiers,
// the feature tagged union and its payloads, sketch elements and
// constraints, the ordered feature tree with its mutations, structural
// validation and the JSON document format.
package feature

// Feature is one step of the parametric history.
type Feature struct {
	ID         ID
	Name       string
	Suppressed bool
	Data       Data
}

// New returns a feature with a fresh id.
func New(name string, data Data) Feature {
	return Feature{ID: NewID(), Name: name, Data: data}
}

// Kind returns the payload kind, or KindUnknown for a feature with no data.
func (f Feature) Kind() Kind {
	if f.Data == nil {
		return KindUnknown
	}
	return f.Data.Kind()
}

// References returns the ids this feature reads.
func (f Feature) References() []ID {
	if f.Data == nil {
		return nil
	}
	return f.Data.References()
}

// Clone returns a deep copy.
func (f Feature) Clone() Feature {
	if f.Data != nil {
		f.Data = f.Data.clone()
	}
	return f
}
