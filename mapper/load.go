package mapper

import (
	"fmt"

	"github.com/stevemurr/vacancy-store/model"
	"github.com/stevemurr/vacancy-store/schema"
	"github.com/stevemurr/vacancy-store/store"
)

// index is one child collection keyed by a text field, loaded once per call.
type index map[string]schema.Record

func (m *Mapper) index(name, key string) (index, error) {
	rows, err := m.store.Select(name, nil)
	if err != nil {
		return nil, err
	}
	idx := make(index, len(rows))
	for _, r := range rows {
		if k, ok := r[key].(string); ok {
			idx[k] = r
		}
	}
	return idx, nil
}

// get returns a copy of the row stored under key, without the fields in
// drop, or nil.
func (idx index) get(key string, drop ...string) map[string]any {
	row, ok := idx[key]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(row))
	for f, v := range row {
		out[f] = v
	}
	for _, f := range drop {
		delete(out, f)
	}
	return out
}

// join returns the row referenced by r[field] as a nested value, or an
// untyped nil when r holds no reference or the row is missing.
func (idx index) join(r schema.Record, field string, drop ...string) any {
	k, ok := r[field].(string)
	if !ok {
		return nil
	}
	if row := idx.get(k, drop...); row != nil {
		return row
	}
	return nil
}

// joiner resolves foreign keys against indexes loaded for a single read.
type joiner struct {
	employers index
	logos     index
}

func (m *Mapper) newJoiner() (*joiner, error) {
	employers, err := m.index(Employers, "id")
	if err != nil {
		return nil, err
	}
	logos, err := m.index(Logos, "employer_id")
	if err != nil {
		return nil, err
	}
	return &joiner{employers: employers, logos: logos}, nil
}

// employer builds a fresh Employer for every call so that loaded vacancies
// never share one.
func (j *joiner) employer(id string) (*model.Employer, error) {
	raw := j.employers.get(id)
	if raw == nil {
		return nil, fmt.Errorf("employer %s: %w", id, ErrDanglingReference)
	}
	if logo := j.logos.get(id, "employer_id"); logo != nil {
		raw["logo_urls"] = logo
	}
	return model.NewEmployer(raw)
}

// LoadVacancies returns the vacancies matching filter with their employer,
// salary and lookup rows joined back in. A missing optional child is nil; a
// missing employer fails with ErrDanglingReference.
func (m *Mapper) LoadVacancies(filter *store.Filter) ([]*model.Vacancy, error) {
	rows, err := m.store.Select(Vacancies, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Vacancy, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	j, err := m.newJoiner()
	if err != nil {
		return nil, err
	}
	salaries, err := m.index(Salaries, "vacancy_id")
	if err != nil {
		return nil, err
	}
	refs := make([]index, len(references))
	for i, ref := range references {
		if refs[i], err = m.index(ref.collection, "id"); err != nil {
			return nil, err
		}
	}

	for _, r := range rows {
		id, _ := r["id"].(string)
		emp, err := j.employer(r["employer_id"].(string))
		if err != nil {
			return nil, fmt.Errorf("vacancy %s: %w", id, err)
		}

		raw := make(map[string]any, len(r))
		for f, v := range r {
			raw[f] = v
		}
		delete(raw, "employer_id")
		raw["employer"] = emp
		raw["salary"] = salaries.join(r, "id", "vacancy_id")
		for i, ref := range references {
			fk := ref.field + "_id"
			raw[ref.field] = refs[i].join(r, fk)
			delete(raw, fk)
		}

		v, err := model.NewVacancy(raw)
		if err != nil {
			return nil, fmt.Errorf("vacancy %s: %w", id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// LoadVacancy returns the vacancy with the given id or store.ErrNotFound.
func (m *Mapper) LoadVacancy(id string) (*model.Vacancy, error) {
	vs, err := m.LoadVacancies(&store.Filter{Field: "id", Value: id})
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, fmt.Errorf("vacancy %s: %w", id, store.ErrNotFound)
	}
	return vs[0], nil
}

// LoadEmployers returns the employers matching filter with their logos.
func (m *Mapper) LoadEmployers(filter *store.Filter) ([]*model.Employer, error) {
	rows, err := m.store.Select(Employers, filter)
	if err != nil {
		return nil, err
	}
	j, err := m.newJoiner()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Employer, 0, len(rows))
	for _, r := range rows {
		e, err := j.employer(r["id"].(string))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
