package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// fields is a payload renamed to internal names. Typed constructors take
// the fields they know; whatever is left becomes the Additional bag. The
// first decoding error is kept and later calls become no-ops.
type fields struct {
	aliases AliasTable
	m       map[string]any
	err     error
}

func newFields(a AliasTable, raw map[string]any) (*fields, error) {
	m := make(map[string]any, len(raw))
	for k, v := range raw {
		if a.reserved(k) {
			return nil, fmt.Errorf("%w: field %q is reserved for %q", ErrInvalid, k, a.External(k))
		}
		m[a.Internal(k)] = v
	}
	return &fields{aliases: a, m: m}, nil
}

func (f *fields) take(name string) any {
	v := f.m[name]
	delete(f.m, name)
	return v
}

func (f *fields) fail(name string, format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: field %q: %s", ErrInvalid, f.aliases.External(name), fmt.Sprintf(format, args...))
	}
}

// id reads an identifier. hh.ru sends ids as strings, older payloads as
// numbers; both come out as text.
func (f *fields) id(name string) string {
	switch v := f.take(name).(type) {
	case string:
		if v != "" {
			return v
		}
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		f.fail(name, "fractional id %v", v)
		return ""
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
	default:
		f.fail(name, "expected id, got %T", v)
		return ""
	}
	f.fail(name, "required")
	return ""
}

// text reads a string; a missing value is the empty string.
func (f *fields) text(name string) string {
	switch v := f.take(name).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		f.fail(name, "expected string, got %T", v)
		return ""
	}
}

func (f *fields) required(name string) string {
	if v, ok := f.m[name]; !ok || v == nil {
		f.fail(name, "required")
	}
	return f.text(name)
}

func (f *fields) optText(name string) *string {
	switch v := f.take(name).(type) {
	case string:
		return &v
	case nil:
		return nil
	default:
		f.fail(name, "expected string, got %T", v)
		return nil
	}
}

func (f *fields) optInt(name string) *int64 {
	v := f.take(name)
	if v == nil {
		return nil
	}
	n, ok := toInt64(v)
	if !ok {
		f.fail(name, "expected integer, got %v", v)
		return nil
	}
	return &n
}

func (f *fields) optBool(name string) *bool {
	switch v := f.take(name).(type) {
	case bool:
		return &v
	case nil:
		return nil
	default:
		f.fail(name, "expected boolean, got %T", v)
		return nil
	}
}

// rest returns the fields nobody took, or nil.
func (f *fields) rest() map[string]any {
	if len(f.m) == 0 {
		return nil
	}
	return f.m
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return wholeFloat(n)
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return i, true
		}
		if fl, err := n.Float64(); err == nil {
			return wholeFloat(fl)
		}
	}
	return 0, false
}

// wholeFloat converts f when it is a whole number inside the int64 range.
func wholeFloat(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// normalize is the one way a nested value becomes a record: a raw mapping
// is built, an already constructed record is passed through, nil stays nil.
func normalize[T any](v any, build func(map[string]any) (*T, error)) (*T, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *T:
		return x, nil
	case T:
		return &x, nil
	case map[string]any:
		return build(x)
	}
	var zero T
	return nil, fmt.Errorf("%w: cannot build %T from %T", ErrInvalid, zero, v)
}

func nested[T any](f *fields, name string, build func(map[string]any) (*T, error)) *T {
	v := f.take(name)
	if f.err != nil {
		return nil
	}
	r, err := normalize(v, build)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", f.aliases.External(name), err)
		return nil
	}
	return r
}

func ptrValue[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
