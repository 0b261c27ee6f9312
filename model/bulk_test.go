package model_test

import (
	"errors"
	"testing"

	"github.com/stevemurr/vacancy-store/model"
)

func TestDecodeSearchPage(t *testing.T) {
	body := []byte(`{
		"items": [
			{"id": "1", "name": "a", "employer": {"id": "9", "name": "Acme"}},
			{"id": "2", "name": "b", "employer": {"id": "9", "name": "Acme"}, "salary": {"from": 100, "to": null, "currency": "RUR"}}
		],
		"found": 2, "pages": 1, "page": 0, "per_page": 20
	}`)
	page, err := model.DecodeSearchPage(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.Found != 2 || page.PerPage != 20 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[1].Salary == nil || *page.Items[1].Salary.From != 100 || page.Items[1].Salary.To != nil {
		t.Fatalf("unexpected salary: %+v", page.Items[1].Salary)
	}

	if _, err := model.DecodeSearchPage([]byte(`{"found": 0}`)); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for page without items, got %v", err)
	}
	if _, err := model.DecodeSearchPage([]byte(`{"items": [null]}`)); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for null item, got %v", err)
	}
}

func TestDecodeVacancies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"single", `{"id": "1", "name": "a"}`, 1},
		{"array", ` [{"id": "1", "name": "a"}, {"id": "2", "name": "b"}]`, 2},
		{"page", `{"items": [{"id": "1", "name": "a"}], "found": 1}`, 1},
		{"empty array", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := model.DecodeVacancies([]byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if len(vs) != tt.want {
				t.Fatalf("expected %d vacancies, got %d", tt.want, len(vs))
			}
		})
	}

	if _, err := model.DecodeVacancies([]byte(`{not json`)); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := model.DecodeVacancies([]byte(`[{"id": "1"}]`)); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for vacancy without name, got %v", err)
	}
}

func TestNewEmployers(t *testing.T) {
	es, err := model.NewEmployers([]any{
		map[string]any{"id": "1", "name": "a", "logo_urls": nil},
		&model.Employer{ID: "2", Name: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(es) != 2 || es[0].Logo != nil || es[1].ID != "2" {
		t.Fatalf("unexpected employers: %+v", es)
	}
}

func TestSortBySalary(t *testing.T) {
	sal := func(from, to *int64) *model.Salary { return &model.Salary{From: from, To: to} }
	vs := []*model.Vacancy{
		{ID: "none"},
		{ID: "mid-150", Salary: sal(ptr(int64(100)), ptr(int64(200)))},
		{ID: "from-120", Salary: sal(ptr(int64(120)), nil)},
		{ID: "empty", Salary: sal(nil, nil)},
		{ID: "to-90", Salary: sal(nil, ptr(int64(90)))},
	}
	model.SortBySalary(vs)

	want := []string{"to-90", "from-120", "mid-150", "none", "empty"}
	for i, id := range want {
		if vs[i].ID != id {
			got := make([]string, len(vs))
			for j, v := range vs {
				got[j] = v.ID
			}
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestSalaryLess(t *testing.T) {
	a := &model.Salary{From: ptr(int64(100)), To: ptr(int64(300))}
	b := &model.Salary{From: ptr(int64(250))}
	if !a.Less(b) {
		t.Fatal("midpoint 200 should rank below 250")
	}
	if b.Less(a) {
		t.Fatal("250 should not rank below midpoint 200")
	}
	var none *model.Salary
	if none.Less(a) || !a.Less(none) {
		t.Fatal("a missing salary must rank last")
	}
}
