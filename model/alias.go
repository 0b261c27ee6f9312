package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalid is returned when a payload cannot be turned into a record.
var ErrInvalid = errors.New("invalid payload")

// AliasTable maps external payload field names to the internal names the
// records use for them, and back. Payloads from hh.ru carry fields named
// "id", "type" and "from"; records keep them as "id_", "type_" and "from_"
// so an external shape never needs to be guessed from a struct tag.
type AliasTable struct {
	internal map[string]string
	external map[string]string
}

// DefaultAliases is the table used by the record constructors.
var DefaultAliases = MustAliasTable(map[string]string{
	"id":   "id_",
	"type": "type_",
	"from": "from_",
})

// NewAliasTable builds a table from an external→internal map. The mapping
// must be a bijection and no internal name may also be an external one.
func NewAliasTable(m map[string]string) (AliasTable, error) {
	a := AliasTable{
		internal: make(map[string]string, len(m)),
		external: make(map[string]string, len(m)),
	}
	for ext, in := range m {
		if ext == "" || in == "" || ext == in {
			return AliasTable{}, fmt.Errorf("alias %q -> %q: names must be non-empty and distinct", ext, in)
		}
		if prev, dup := a.external[in]; dup {
			return AliasTable{}, fmt.Errorf("alias %q: both %q and %q map to it", in, prev, ext)
		}
		a.internal[ext] = in
		a.external[in] = ext
	}
	for in := range a.external {
		if _, clash := a.internal[in]; clash {
			return AliasTable{}, fmt.Errorf("alias %q is also an external name", in)
		}
	}
	return a, nil
}

func MustAliasTable(m map[string]string) AliasTable {
	a, err := NewAliasTable(m)
	if err != nil {
		panic(err)
	}
	return a
}

// Internal returns the internal name for an external field name.
func (a AliasTable) Internal(name string) string {
	if in, ok := a.internal[name]; ok {
		return in
	}
	return name
}

// External returns the external name for an internal field name.
func (a AliasTable) External(name string) string {
	if ext, ok := a.external[name]; ok {
		return ext
	}
	return name
}

// reserved reports whether name is an internal alias. Such names may not
// appear in a payload, where they would shadow the renamed field.
func (a AliasTable) reserved(name string) bool {
	_, ok := a.external[name]
	return ok
}

// Object is an alias-renamed bag of fields for payloads that have no typed
// shape. Renaming applies to top-level keys only.
type Object struct {
	aliases AliasTable
	fields  map[string]any
}

// NewObject renames raw through DefaultAliases.
func NewObject(raw map[string]any) (*Object, error) {
	return DefaultAliases.Object(raw)
}

// Object renames raw through a.
func (a AliasTable) Object(raw map[string]any) (*Object, error) {
	f, err := newFields(a, raw)
	if err != nil {
		return nil, err
	}
	return &Object{aliases: a, fields: f.m}, nil
}

// Get returns the value stored under an internal field name.
func (o *Object) Get(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

// Names returns the internal field names in sorted order.
func (o *Object) Names() []string {
	names := make([]string, 0, len(o.fields))
	for k := range o.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Flatten returns the payload with its external field names.
func (o *Object) Flatten() map[string]any {
	out := make(map[string]any, len(o.fields))
	for k, v := range o.fields {
		out[o.aliases.External(k)] = v
	}
	return out
}
