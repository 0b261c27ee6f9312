package model_test

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stevemurr/vacancy-store/model"
)

const vacancyJSON = `{
	"id": "42",
	"name": "Engineer",
	"type": {"id": "open", "name": "Открытая"},
	"premium": false,
	"employer": {
		"id": "9",
		"name": "Acme",
		"alternate_url": "https://hh.ru/employer/9",
		"accredited_it_employer": true,
		"logo_urls": {"90": "https://img/90.png", "240": "https://img/240.png", "original": "https://img/o.png"},
		"trusted": true
	},
	"salary": {"from": 1000, "to": 2000, "currency": "USD", "gross": false},
	"area": {"id": "1", "name": "Москва", "url": "https://api.hh.ru/areas/1"},
	"experience": {"id": "between1And3", "name": "От 1 года до 3 лет"},
	"employment": {"id": "full", "name": "Полная занятость"},
	"schedule": null,
	"created_at": "2024-01-01T00:00:00+0300",
	"published_at": "2024-01-02T00:00:00+0300",
	"alternate_url": "https://hh.ru/vacancy/42",
	"description": "<p>Go</p>"
}`

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewVacancy(t *testing.T) {
	v, err := model.NewVacancy(decode(t, vacancyJSON))
	if err != nil {
		t.Fatal(err)
	}
	if v.ID != "42" || v.Name != "Engineer" {
		t.Fatalf("unexpected vacancy: %+v", v)
	}
	if v.Employer == nil || v.Employer.Name != "Acme" {
		t.Fatalf("expected employer Acme, got %+v", v.Employer)
	}
	if v.Employer.Logo == nil || *v.Employer.Logo.Size240 != "https://img/240.png" {
		t.Fatalf("expected logo, got %+v", v.Employer.Logo)
	}
	if v.Salary == nil || *v.Salary.From != 1000 || *v.Salary.To != 2000 || *v.Salary.Gross {
		t.Fatalf("unexpected salary: %+v", v.Salary)
	}
	if v.Schedule != nil {
		t.Fatalf("expected nil schedule, got %+v", v.Schedule)
	}
	if v.Area.Name != "Москва" {
		t.Fatalf("expected area Москва, got %q", v.Area.Name)
	}

	// "type" collides with an alias and lands in Additional under its
	// internal name; "premium" is simply unknown.
	if _, ok := v.Additional["type_"]; !ok {
		t.Fatalf("expected type_ in additional, got %v", v.Additional)
	}
	if v.Additional["premium"] != false {
		t.Fatalf("expected premium in additional, got %v", v.Additional)
	}
	if v.Employer.Additional["trusted"] != true {
		t.Fatalf("expected trusted in employer additional, got %v", v.Employer.Additional)
	}
}

func TestFlattenRestoresExternalShape(t *testing.T) {
	raw := decode(t, vacancyJSON)
	v, err := model.NewVacancy(raw)
	if err != nil {
		t.Fatal(err)
	}

	full := v.Flatten(model.Full)
	if _, ok := full["type"]; !ok {
		t.Fatal("expected type in full shape")
	}
	if _, ok := full["type_"]; ok {
		t.Fatal("internal name leaked into full shape")
	}
	if full["id"] != "42" {
		t.Fatalf("expected id 42, got %v", full["id"])
	}
	salary := full["salary"].(map[string]any)
	if salary["from"] != int64(1000) {
		t.Fatalf("expected salary.from 1000, got %#v", salary["from"])
	}
	emp := full["employer"].(map[string]any)
	if emp["trusted"] != true {
		t.Fatalf("expected nested additional in full shape, got %v", emp)
	}

	bare := v.Flatten(model.Bare)
	if _, ok := bare["type"]; ok {
		t.Fatal("bare shape must drop additional fields")
	}
	if _, ok := bare["employer"].(map[string]any)["trusted"]; ok {
		t.Fatal("bare shape must drop nested additional fields")
	}
	if _, ok := bare["schedule"]; !ok || bare["schedule"] != nil {
		t.Fatalf("expected schedule key with nil value, got %v", bare["schedule"])
	}
}

func TestFlattenThenRebuild(t *testing.T) {
	v, err := model.NewVacancy(decode(t, vacancyJSON))
	if err != nil {
		t.Fatal(err)
	}
	again, err := model.NewVacancy(v.Flatten(model.Full))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v.Flatten(model.Full), again.Flatten(model.Full)) {
		t.Fatalf("rebuild changed the vacancy:\n%v\n%v", v.Flatten(model.Full), again.Flatten(model.Full))
	}
}

func TestNestedAlreadyConstructed(t *testing.T) {
	emp := &model.Employer{ID: "9", Name: "Acme"}
	sal := model.Salary{From: ptr(int64(5))}
	v, err := model.NewVacancy(map[string]any{
		"id":       "1",
		"name":     "x",
		"employer": emp,
		"salary":   sal,
		"area":     (*model.Area)(nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.Employer != emp {
		t.Fatal("expected the constructed employer to be passed through")
	}
	if v.Salary == nil || *v.Salary.From != 5 {
		t.Fatalf("expected salary value to be accepted, got %+v", v.Salary)
	}
	if v.Area != nil {
		t.Fatalf("expected nil area, got %+v", v.Area)
	}
}

func TestNewVacancyErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"missing id", map[string]any{"name": "x"}},
		{"missing name", map[string]any{"id": "1"}},
		{"reserved internal name", map[string]any{"id": "1", "name": "x", "id_": "2"}},
		{"employer of wrong shape", map[string]any{"id": "1", "name": "x", "employer": "Acme"}},
		{"salary bound not integer", map[string]any{"id": "1", "name": "x", "salary": map[string]any{"from": "lots"}}},
		{"fractional salary", map[string]any{"id": "1", "name": "x", "salary": map[string]any{"from": 1.5}}},
		{"salary above int64 range", map[string]any{"id": "1", "name": "x", "salary": map[string]any{"from": 1e19}}},
		{"salary below int64 range", map[string]any{"id": "1", "name": "x", "salary": map[string]any{"to": -1e19}}},
		{"salary number above int64 range", map[string]any{"id": "1", "name": "x", "salary": map[string]any{"from": json.Number("1e19")}}},
		{"salary at 2^63", map[string]any{"id": "1", "name": "x", "salary": map[string]any{"from": float64(1 << 63)}}},
		{"infinite id", map[string]any{"id": math.Inf(1), "name": "x"}},
		{"gross not bool", map[string]any{"id": "1", "name": "x", "salary": map[string]any{"gross": "yes"}}},
		{"name not string", map[string]any{"id": "1", "name": 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.NewVacancy(tt.raw)
			if !errors.Is(err, model.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestDecodeOutOfRangeSalary(t *testing.T) {
	_, err := model.DecodeVacancies([]byte(`{"id": "1", "name": "x", "salary": {"from": 1e19, "to": null, "currency": "RUR"}}`))
	if !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	vs, err := model.DecodeVacancies([]byte(`{"id": "1", "name": "x", "salary": {"from": 1e15, "to": 9007199254740993}}`))
	if err != nil {
		t.Fatal(err)
	}
	s := vs[0].Salary
	if *s.From != 1e15 || *s.To != 9007199254740993 {
		t.Fatalf("expected exact bounds, got from=%d to=%d", *s.From, *s.To)
	}
}

func TestNumericIDs(t *testing.T) {
	e, err := model.NewEmployer(map[string]any{"id": float64(9), "name": "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "9" {
		t.Fatalf("expected id 9, got %q", e.ID)
	}
	e, err = model.NewEmployer(map[string]any{"id": json.Number("10"), "name": "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "10" {
		t.Fatalf("expected id 10, got %q", e.ID)
	}
}

func TestAliasTable(t *testing.T) {
	a := model.DefaultAliases
	if a.Internal("from") != "from_" || a.External("from_") != "from" {
		t.Fatal("from alias not applied")
	}
	if a.Internal("name") != "name" || a.External("name") != "name" {
		t.Fatal("unaliased names must pass through")
	}

	bad := []map[string]string{
		{"id": "key", "type": "key"},
		{"id": "id"},
		{"id": "type", "type": "kind"},
		{"": "x"},
	}
	for _, m := range bad {
		if _, err := model.NewAliasTable(m); err == nil {
			t.Fatalf("expected error for %v", m)
		}
	}
}

func TestObject(t *testing.T) {
	o, err := model.NewObject(map[string]any{"id": "1", "from": "a", "name": "n"})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := o.Get("from_"); !ok || v != "a" {
		t.Fatalf("expected from_ = a, got %v", v)
	}
	if _, ok := o.Get("from"); ok {
		t.Fatal("external name must not be stored")
	}
	want := []string{"from_", "id_", "name"}
	if got := o.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if flat := o.Flatten(); flat["from"] != "a" || flat["id"] != "1" {
		t.Fatalf("unexpected flatten: %v", flat)
	}
	if _, err := model.NewObject(map[string]any{"type_": 1}); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
