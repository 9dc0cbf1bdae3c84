// Package composer reads and rewrites composer.json manifests.
//
// Only the fields the release pipeline acts on (name, require) are modeled;
// everything else in the manifest is preserved byte-for-byte, including the
// original top-level key order, so constraint rewrites produce minimal diffs.
package composer

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"

	"github.com/pasturelabs/roundup/pkg/errors"
)

// Filename is the manifest file name at each library root.
const Filename = "composer.json"

// Schema is a parsed composer.json with unknown fields preserved.
type Schema struct {
	Name    string
	Require map[string]string

	fields map[string]json.RawMessage
	order  []string
}

// Load reads and parses the manifest at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read manifest %s", path)
	}
	return Parse(data)
}

// Parse decodes manifest bytes.
func Parse(data []byte) (*Schema, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "malformed composer.json")
	}

	s := &Schema{
		Require: map[string]string{},
		fields:  fields,
		order:   keyOrder(data),
	}
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &s.Name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "manifest name field")
		}
	}
	if raw, ok := fields["require"]; ok {
		if err := json.Unmarshal(raw, &s.Require); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "manifest require map")
		}
	}
	return s, nil
}

// SetRequire sets the constraint for a dependency, adding it if absent.
func (s *Schema) SetRequire(name, constraint string) {
	if s.Require == nil {
		s.Require = map[string]string{}
	}
	s.Require[name] = constraint
}

// Extra returns the raw bytes of an arbitrary top-level field.
func (s *Schema) Extra(key string) (json.RawMessage, bool) {
	raw, ok := s.fields[key]
	return raw, ok
}

// Marshal renders the manifest with four-space indentation, keeping the
// original key order and appending any newly added keys at the end.
func (s *Schema) Marshal() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(s.fields)+2)
	for k, v := range s.fields {
		fields[k] = v
	}

	nameRaw, err := json.Marshal(s.Name)
	if err != nil {
		return nil, err
	}
	fields["name"] = nameRaw

	requireRaw, err := marshalSortedMap(s.Require)
	if err != nil {
		return nil, err
	}
	fields["require"] = requireRaw

	var buf bytes.Buffer
	buf.WriteString("{\n")
	keys := s.marshalOrder(fields)
	for i, key := range keys {
		indented := &bytes.Buffer{}
		if err := json.Indent(indented, fields[key], "    ", "    "); err != nil {
			return nil, err
		}
		keyRaw, _ := json.Marshal(key)
		buf.WriteString("    ")
		buf.Write(keyRaw)
		buf.WriteString(": ")
		buf.Write(indented.Bytes())
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Write saves the manifest back to path.
func (s *Schema) Write(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "marshal manifest for %s", path)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Schema) marshalOrder(fields map[string]json.RawMessage) []string {
	seen := make(map[string]bool, len(fields))
	var keys []string
	for _, k := range s.order {
		if _, ok := fields[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var added []string
	for k := range fields {
		if !seen[k] {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	return append(keys, added...)
}

func marshalSortedMap(m map[string]string) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		kRaw, _ := json.Marshal(k)
		vRaw, _ := json.Marshal(m[k])
		buf.Write(kRaw)
		buf.WriteString(": ")
		buf.Write(vRaw)
		if i < len(keys)-1 {
			buf.WriteString(", ")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// keyOrder extracts top-level key order from raw JSON. A scan failure just
// loses ordering, not data.
func keyOrder(data []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		order = append(order, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
	}
	return order
}
