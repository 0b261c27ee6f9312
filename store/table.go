package store

import (
	"bytes"
	"reflect"

	"github.com/stevemurr/vacancy-store/schema"
)

// table is the in-memory form of one collection: its header and records.
// Backends load a table, apply one of these operations and write it back
// when the operation reports a change. Records are always held in
// canonical form (see schema.FieldSpec.Normalize).
type table struct {
	spec schema.FieldSpec
	rows []schema.Record
}

func (t *table) clone() *table {
	rows := make([]schema.Record, len(t.rows))
	for i, r := range t.rows {
		rows[i] = copyRecord(r)
	}
	return &table{spec: t.spec, rows: rows}
}

func copyRecord(r schema.Record) schema.Record {
	out := make(schema.Record, len(r))
	for k, v := range r {
		if b, ok := v.([]byte); ok {
			v = bytes.Clone(b)
		}
		out[k] = v
	}
	return out
}

func (t *table) insert(r schema.Record) (bool, error) {
	n, err := t.spec.Normalize(r)
	if err != nil {
		return false, err
	}
	for _, row := range t.rows {
		if reflect.DeepEqual(row, n) {
			return false, nil
		}
	}
	t.rows = append(t.rows, n)
	return true, nil
}

func (t *table) replace(keyField string, r schema.Record) (bool, error) {
	n, err := t.spec.Normalize(r)
	if err != nil {
		return false, err
	}
	match, err := t.matcher(keyField, n[keyField])
	if err != nil {
		return false, err
	}
	rows := t.rows[:0:0]
	placed := false
	changed := false
	for _, row := range t.rows {
		if !match(row) {
			rows = append(rows, row)
			continue
		}
		if placed {
			changed = true
			continue
		}
		if !reflect.DeepEqual(row, n) {
			changed = true
		}
		rows = append(rows, n)
		placed = true
	}
	if !placed {
		rows = append(rows, n)
		changed = true
	}
	t.rows = rows
	return changed, nil
}

func (t *table) update(setField string, setValue any, whereField string, whereValue any) (bool, error) {
	v, err := t.spec.Coerce(setField, setValue)
	if err != nil {
		return false, err
	}
	match, err := t.matcher(whereField, whereValue)
	if err != nil {
		return false, err
	}
	changed := false
	for _, row := range t.rows {
		if match(row) && !reflect.DeepEqual(row[setField], v) {
			if b, ok := v.([]byte); ok {
				row[setField] = bytes.Clone(b)
			} else {
				row[setField] = v
			}
			changed = true
		}
	}
	return changed, nil
}

func (t *table) delete(field string, value any) (bool, error) {
	match, err := t.matcher(field, value)
	if err != nil {
		return false, err
	}
	rows := t.rows[:0:0]
	for _, row := range t.rows {
		if !match(row) {
			rows = append(rows, row)
		}
	}
	changed := len(rows) != len(t.rows)
	t.rows = rows
	return changed, nil
}

func (t *table) selectRows(f *Filter) ([]schema.Record, error) {
	match := func(schema.Record) bool { return true }
	if f != nil {
		var err error
		if match, err = t.matcher(f.Field, f.Value); err != nil {
			return nil, err
		}
	}
	out := make([]schema.Record, 0, len(t.rows))
	for _, row := range t.rows {
		if match(row) {
			out = append(out, copyRecord(row))
		}
	}
	return out, nil
}

// matcher returns a predicate for field == value. An unknown field is a
// schema mismatch; a value that cannot hold the field's type matches nothing.
func (t *table) matcher(field string, value any) (func(schema.Record) bool, error) {
	if _, ok := t.spec.Lookup(field); !ok {
		return nil, schemaErr("unknown field %q", field)
	}
	v, err := t.spec.Coerce(field, value)
	if err != nil {
		if value != nil {
			return func(schema.Record) bool { return false }, nil
		}
		v = nil
	}
	return func(r schema.Record) bool {
		return reflect.DeepEqual(r[field], v)
	}, nil
}
