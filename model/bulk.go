package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SearchPage is one page of an hh.ru vacancy search response.
type SearchPage struct {
	Items   []*Vacancy
	Found   int
	Pages   int
	Page    int
	PerPage int
}

func NewVacancies(items []any) ([]*Vacancy, error) {
	return buildAll(items, NewVacancy)
}

func NewEmployers(items []any) ([]*Employer, error) {
	return buildAll(items, NewEmployer)
}

func buildAll[T any](items []any, build func(map[string]any) (*T, error)) ([]*T, error) {
	out := make([]*T, 0, len(items))
	for i, item := range items {
		r, err := normalize(item, build)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if r == nil {
			return nil, fmt.Errorf("item %d: %w: null item", i, ErrInvalid)
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeSearchPage decodes a search response body:
//
//	{"items": [...], "found": 1204, "pages": 61, "page": 0, "per_page": 20}
func DecodeSearchPage(data []byte) (*SearchPage, error) {
	var raw struct {
		Items   []any `json:"items"`
		Found   int   `json:"found"`
		Pages   int   `json:"pages"`
		Page    int   `json:"page"`
		PerPage int   `json:"per_page"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Items == nil {
		return nil, fmt.Errorf("%w: search page has no items", ErrInvalid)
	}
	items, err := NewVacancies(raw.Items)
	if err != nil {
		return nil, err
	}
	return &SearchPage{Items: items, Found: raw.Found, Pages: raw.Pages, Page: raw.Page, PerPage: raw.PerPage}, nil
}

// DecodeVacancies accepts a single vacancy object, an array of them, or a
// search page.
func DecodeVacancies(data []byte) ([]*Vacancy, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []any
		if err := unmarshal(data, &items); err != nil {
			return nil, err
		}
		return NewVacancies(items)
	}
	var obj map[string]any
	if err := unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if _, ok := obj["items"]; ok {
		page, err := DecodeSearchPage(data)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	}
	v, err := NewVacancy(obj)
	if err != nil {
		return nil, err
	}
	return []*Vacancy{v}, nil
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
