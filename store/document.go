package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stevemurr/vacancy-store/schema"
)

// A collection document is a JSON array whose first element is the header
// and whose remaining elements are records, keys in header order:
//
//	[
//	    {"id": "TEXT NOT NULL", "name": "TEXT NOT NULL"},
//	    {"id": "1", "name": "Москва"}
//	]
//
// Non-ASCII text is written literally.

func encodeDocument(t *table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	hdr, err := t.spec.MarshalJSON()
	if err != nil {
		return nil, err
	}
	buf.Write(hdr)
	for _, r := range t.rows {
		rec, err := encodeRecord(t.spec, r)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(rec)
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func decodeDocument(b []byte) (*table, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	var spec schema.FieldSpec
	if err := json.Unmarshal(elems[0], &spec); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	t := &table{spec: spec, rows: make([]schema.Record, 0, len(elems)-1)}
	for i, raw := range elems[1:] {
		r, err := decodeRecord(spec, raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		t.rows = append(t.rows, r)
	}
	return t, nil
}

// encodeRecord writes r as a JSON object with keys in header order.
func encodeRecord(spec schema.FieldSpec, r schema.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	var out bytes.Buffer
	out.WriteByte('{')
	for i, f := range spec {
		if i > 0 {
			out.WriteByte(',')
		}
		buf.Reset()
		if err := enc.Encode(f.Name); err != nil {
			return nil, err
		}
		out.Write(bytes.TrimRight(buf.Bytes(), "\n"))
		out.WriteByte(':')
		buf.Reset()
		if err := enc.Encode(r[f.Name]); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

func decodeRecord(spec schema.FieldSpec, raw []byte) (schema.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var r schema.Record
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	n, err := spec.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return n, nil
}

func schemaErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrSchemaMismatch}, args...)...)
}
