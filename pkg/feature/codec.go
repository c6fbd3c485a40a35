package feature

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DocumentVersion is the schema version written by Encode.
const DocumentVersion = 1

// ErrVersion is returned for documents without a usable version field.
var ErrVersion = errors.New("feature: unsupported document version")

type document struct {
	Version  int           `json:"version"`
	Features []featureJSON `json:"features"`
}

type featureJSON struct {
	ID         ID              `json:"id"`
	Type       string          `json:"type"`
	Name       string          `json:"name,omitempty"`
	Suppressed bool            `json:"suppressed,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Encode serializes the tree as a versioned document.
func Encode(t Tree) ([]byte, error) {
	doc := document{Version: DocumentVersion, Features: make([]featureJSON, 0, len(t.Features))}
	for i, f := range t.Features {
		fj, err := encodeFeature(f)
		if err != nil {
			return nil, fmt.Errorf("encode feature #%d: %w", i, err)
		}
		doc.Features = append(doc.Features, fj)
	}
	return json.Marshal(doc)
}

func encodeFeature(f Feature) (featureJSON, error) {
	fj := featureJSON{ID: f.ID, Name: f.Name, Suppressed: f.Suppressed}
	switch d := f.Data.(type) {
	case nil:
		return fj, fmt.Errorf("feature %s has no data", f.ID.Short())
	case UnknownData:
		fj.Type = d.Type
		fj.Params = d.Raw
		return fj, nil
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return fj, err
		}
		fj.Type = d.Kind().String()
		fj.Params = raw
		return fj, nil
	}
}

// Decode parses a document produced by Encode. Features of unrecognized
// type are kept as UnknownData so they survive a later Encode.
func Decode(b []byte) (Tree, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Tree{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.Version < 1 {
		return Tree{}, fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}
	t := Tree{Features: make([]Feature, 0, len(doc.Features))}
	for i, fj := range doc.Features {
		data, err := decodeData(fj.Type, fj.Params)
		if err != nil {
			return Tree{}, fmt.Errorf("decode feature #%d (%s): %w", i, fj.Type, err)
		}
		t.Features = append(t.Features, Feature{
			ID:         fj.ID,
			Name:       fj.Name,
			Suppressed: fj.Suppressed,
			Data:       data,
		})
	}
	return t, nil
}

func decodeData(typ string, raw json.RawMessage) (Data, error) {
	kind, err := ParseKind(typ)
	if err != nil {
		return UnknownData{Type: typ, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	switch kind {
	case KindSketch:
		return decodeAs[SketchData](raw)
	case KindExtrude:
		return decodeAs[ExtrudeData](raw)
	case KindBoolean:
		return decodeAs[BooleanData](raw)
	case KindTransform:
		return decodeAs[TransformData](raw)
	case KindFillet:
		return decodeAs[FilletData](raw)
	case KindChamfer:
		return decodeAs[ChamferData](raw)
	case KindShell:
		return decodeAs[ShellData](raw)
	case KindPattern:
		return decodeAs[PatternData](raw)
	case KindSweep:
		return decodeAs[SweepData](raw)
	case KindLoft:
		return decodeAs[LoftData](raw)
	case KindAssembly:
		return decodeAs[AssemblyData](raw)
	}
	return nil, fmt.Errorf("no decoder for %s", kind)
}

func decodeAs[T Data](raw json.RawMessage) (Data, error) {
	var d T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MarshalJSON encodes the tree as a document.
func (t Tree) MarshalJSON() ([]byte, error) { return Encode(t) }

// UnmarshalJSON decodes a document into the tree.
func (t *Tree) UnmarshalJSON(b []byte) error {
	out, err := Decode(b)
	if err != nil {
		return err
	}
	*t = out
	return nil
}
