// Package schema declares the field specs of collections and validates
// records against them.
package schema

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrMismatch is returned when a record or field spec does not match the
	// declared schema.
	ErrMismatch = errors.New("schema mismatch")
	// ErrNotFound is returned when no spec is registered for a collection.
	ErrNotFound = errors.New("schema not found")
	// ErrConflict is returned when a collection is registered twice with
	// different specs.
	ErrConflict = errors.New("conflicting schema registration")
)

// Record is a flat mapping from field name to a scalar or nil value.
type Record = map[string]any

// Kind is the primitive type of a field.
type Kind int

const (
	Integer Kind = iota + 1
	Text
	Real
	Boolean
	Blob
)

var kindNames = map[Kind]string{
	Integer: "INTEGER",
	Text:    "TEXT",
	Real:    "REAL",
	Boolean: "BOOLEAN",
	Blob:    "BLOB",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

const notNull = " NOT NULL"

// FieldType is a Kind plus its nullability. Its text form is the
// SQL-like tag used in collection headers, e.g. "TEXT NOT NULL".
type FieldType struct {
	Kind     Kind
	Required bool
}

// ParseFieldType parses a tag such as "INTEGER" or "REAL NOT NULL".
func ParseFieldType(s string) (FieldType, error) {
	tag := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	var ft FieldType
	if strings.HasSuffix(tag, notNull) {
		ft.Required = true
		tag = strings.TrimSuffix(tag, notNull)
	}
	for k, name := range kindNames {
		if name == tag {
			ft.Kind = k
			return ft, nil
		}
	}
	return FieldType{}, fmt.Errorf("%w: unknown field type %q", ErrMismatch, s)
}

func (t FieldType) String() string {
	if t.Required {
		return t.Kind.String() + notNull
	}
	return t.Kind.String()
}

func (t FieldType) MarshalText() ([]byte, error) {
	if _, ok := kindNames[t.Kind]; !ok {
		return nil, fmt.Errorf("%w: invalid kind %d", ErrMismatch, int(t.Kind))
	}
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	ft, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// canonical converts v to the canonical Go representation of t:
// int64, float64, string, bool, []byte or nil. stored allows the on-disk
// encodings (base64 text for blobs).
func (t FieldType) canonical(v any, stored bool) (any, bool) {
	if v == nil {
		return nil, !t.Required
	}
	switch t.Kind {
	case Integer:
		return toInt64(v)
	case Real:
		return toFloat64(v)
	case Text:
		s, ok := v.(string)
		if !ok || !utf8.ValidString(s) {
			return nil, false
		}
		return s, true
	case Boolean:
		b, ok := v.(bool)
		return b, ok
	case Blob:
		switch b := v.(type) {
		case []byte:
			return bytes.Clone(b), true
		case string:
			if !stored {
				return nil, false
			}
			raw, err := base64.StdEncoding.DecodeString(b)
			return raw, err == nil
		}
	}
	return nil, false
}

func toInt64(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return nil, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return nil, false
		}
		return int64(n), true
	case float64:
		// Decoded JSON numbers arrive as float64; accept whole values.
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return nil, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return nil, false
}

// toFloat64 rejects NaN and the infinities: they cannot be stored as JSON
// and NaN never compares equal to itself.
func toFloat64(v any) (any, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return nil, false
		}
	default:
		if i, ok := toInt64(v); ok {
			return float64(i.(int64)), true
		}
		return nil, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

// ParseValue parses the textual form of a value of type t, as received on
// a query string or command line. "null" yields nil.
func ParseValue(t FieldType, s string) (any, error) {
	if s == "null" {
		if t.Required {
			return nil, fmt.Errorf("%w: null for %s", ErrMismatch, t)
		}
		return nil, nil
	}
	var (
		v   any
		err error
	)
	switch t.Kind {
	case Integer:
		v, err = strconv.ParseInt(s, 10, 64)
	case Real:
		v, err = strconv.ParseFloat(s, 64)
	case Boolean:
		v, err = strconv.ParseBool(s)
	case Blob:
		v, err = base64.StdEncoding.DecodeString(s)
	default:
		v = s
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a valid %s", ErrMismatch, s, t.Kind)
	}
	if _, ok := t.canonical(v, false); !ok {
		return nil, fmt.Errorf("%w: %q is not a valid %s", ErrMismatch, s, t.Kind)
	}
	return v, nil
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float32, float64:
		return "float"
	case json.Number:
		return "number"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case []byte:
		return "bytes"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return reflect.TypeOf(v).String()
	}
}

// Field is one named, typed column of a collection.
type Field struct {
	Name string
	Type FieldType
}

// FieldSpec is the ordered set of fields of a collection.
type FieldSpec []Field

// ParseSpec builds a FieldSpec from name/type tag pairs.
func ParseSpec(pairs ...string) (FieldSpec, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of name/type arguments", ErrMismatch)
	}
	spec := make(FieldSpec, 0, len(pairs)/2)
	seen := make(map[string]bool, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name := pairs[i]
		if name == "" || seen[name] {
			return nil, fmt.Errorf("%w: empty or duplicate field name %q", ErrMismatch, name)
		}
		seen[name] = true
		ft, err := ParseFieldType(pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		spec = append(spec, Field{Name: name, Type: ft})
	}
	return spec, nil
}

// MustSpec is like ParseSpec but panics on error. It is meant for
// package-level collection declarations.
func MustSpec(pairs ...string) FieldSpec {
	spec, err := ParseSpec(pairs...)
	if err != nil {
		panic(err)
	}
	return spec
}

func (s FieldSpec) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the type of the named field.
func (s FieldSpec) Lookup(name string) (FieldType, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Type, true
		}
	}
	return FieldType{}, false
}

// Equal reports whether both specs declare the same fields in the same order.
func (s FieldSpec) Equal(other FieldSpec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Check validates a record: its key set must equal the spec's field names
// and each value must be compatible with the declared type.
func (s FieldSpec) Check(r Record) error {
	_, err := s.normalize(r, false)
	return err
}

// Normalize validates r and returns a copy holding canonical values.
func (s FieldSpec) Normalize(r Record) (Record, error) {
	return s.normalize(r, false)
}

// Decode is Normalize for records read back from storage.
func (s FieldSpec) Decode(r Record) (Record, error) {
	return s.normalize(r, true)
}

func (s FieldSpec) normalize(r Record, stored bool) (Record, error) {
	if err := s.checkKeys(r); err != nil {
		return nil, err
	}
	out := make(Record, len(s))
	for _, f := range s {
		v := r[f.Name]
		c, ok := f.Type.canonical(v, stored)
		if !ok {
			return nil, fmt.Errorf("%w: field %q: expected %s, got %s", ErrMismatch, f.Name, f.Type, typeName(v))
		}
		out[f.Name] = c
	}
	return out, nil
}

func (s FieldSpec) checkKeys(r Record) error {
	var missing, extra []string
	for _, f := range s {
		if _, ok := r[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	for k := range r {
		if _, ok := s.Lookup(k); !ok {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unknown fields: "+strings.Join(extra, ", "))
	}
	return fmt.Errorf("%w: %s", ErrMismatch, strings.Join(parts, "; "))
}

// Coerce canonicalizes a single value for the named field, as used in
// where-clauses and updates.
func (s FieldSpec) Coerce(field string, v any) (any, error) {
	ft, ok := s.Lookup(field)
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", ErrMismatch, field)
	}
	c, ok := ft.canonical(v, false)
	if !ok {
		return nil, fmt.Errorf("%w: field %q: expected %s, got %s", ErrMismatch, field, ft, typeName(v))
	}
	return c, nil
}

// MarshalJSON encodes the spec as an object whose keys follow field order.
func (s FieldSpec) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		tag, err := f.Type.MarshalText()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Quote(string(tag)))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a header object, keeping its key order.
func (s *FieldSpec) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: header must be an object", ErrMismatch)
	}
	var pairs []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		vt, err := dec.Token()
		if err != nil {
			return err
		}
		tag, ok := vt.(string)
		if !ok {
			return fmt.Errorf("%w: header field %v: type tag must be a string", ErrMismatch, kt)
		}
		pairs = append(pairs, kt.(string), tag)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	spec, err := ParseSpec(pairs...)
	if err != nil {
		return err
	}
	*s = spec
	return nil
}
