package auditstore

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Body is the semi-structured payload of an Event: a JSON-like tree of
// unbounded depth, opaque to the core except for path lookups.
type Body map[string]any

// DecodeBody decodes a JSON document into a Body.
func DecodeBody(data []byte) (Body, error) {
	var body Body
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	return body, nil
}

// EncodeJSON encodes the Body as a JSON document. A nil Body encodes as an
// empty object so that the stored column is always valid JSON.
func (b Body) EncodeJSON() ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(map[string]any(b))
}

// LookupPath walks the tree along the given key path.
// A missing key or a non-object intermediate node yields (nil, false),
// never an error.
func (b Body) LookupPath(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	var current any = map[string]any(b)

	for _, key := range path {
		node, isObject := current.(map[string]any)
		if !isObject {
			return nil, false
		}

		next, found := node[key]
		if !found {
			return nil, false
		}

		current = next
	}

	return current, true
}

// StringAt returns the value at the given key path as a string. String values
// are returned as-is; any other value is JSON encoded, so a nested document
// comes back as its serialized form. A missing path yields the empty string.
func (b Body) StringAt(path ...string) string {
	value, found := b.LookupPath(path...)
	if !found || value == nil {
		return ""
	}

	if str, isString := value.(string); isString {
		return str
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}

	return string(encoded)
}

// BodyMatch is one exact structural match against a nested Body key,
// used by the fixed-shape detail query. Multiple matches are combined
// with AND by the store engine.
type BodyMatch struct {
	Path  []string
	Value string
}

// MatchBody builds a BodyMatch for the given value at the given key path.
func MatchBody(value string, path ...string) BodyMatch {
	return BodyMatch{Path: path, Value: value}
}
