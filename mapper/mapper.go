// Package mapper stores nested vacancies as flat rows across several
// collections and joins them back together on read.
package mapper

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stevemurr/vacancy-store/model"
	"github.com/stevemurr/vacancy-store/schema"
	"github.com/stevemurr/vacancy-store/store"
)

var (
	// ErrDanglingReference is returned when a stored vacancy points at an
	// employer that does not exist.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrNoEmployer is returned when persisting a vacancy without an employer.
	ErrNoEmployer = errors.New("vacancy has no employer")
)

type Mapper struct {
	store store.Store
	reg   *schema.Registry
	log   zerolog.Logger
}

func New(s store.Store, reg *schema.Registry, log zerolog.Logger) *Mapper {
	return &Mapper{store: s, reg: reg, log: log.With().Str("component", "mapper").Logger()}
}

// EnsureCollections creates every registered mapper collection that does not
// exist yet. An existing collection whose header differs from the registered
// spec is a configuration error.
func (m *Mapper) EnsureCollections() error {
	for _, c := range specs {
		spec, err := m.reg.FieldsFor(c.name)
		if err != nil {
			return err
		}
		err = m.store.CreateCollection(c.name, spec)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return err
		}
		hdr, err := m.store.Header(c.name)
		if err != nil {
			return err
		}
		if !hdr.Equal(spec) {
			return fmt.Errorf("%w: collection %q has header %v, want %v", schema.ErrConflict, c.name, hdr, spec)
		}
	}
	return nil
}

// row picks the collection's fields out of a flattened record. Fields the
// collection does not declare are dropped; declared fields that are absent
// are null.
func (m *Mapper) row(name string, flat map[string]any) (schema.Record, error) {
	spec, err := m.reg.FieldsFor(name)
	if err != nil {
		return nil, err
	}
	r := make(schema.Record, len(spec))
	for _, f := range spec {
		r[f.Name] = flat[f.Name]
	}
	return r, nil
}

func (m *Mapper) put(name, key string, flat map[string]any) error {
	r, err := m.row(name, flat)
	if err != nil {
		return err
	}
	if err := m.store.Replace(name, key, r); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// references are the lookup tables a vacancy points at, by the vacancy
// field that embeds them. The stored foreign key is field + "_id".
var references = []struct {
	field      string
	collection string
}{
	{"area", Areas},
	{"experience", Experiences},
	{"employment", Employments},
	{"schedule", Schedules},
}

// PersistVacancy writes v and everything it embeds. Children go first, so
// by the time the vacancy row exists every id it holds resolves.
func (m *Mapper) PersistVacancy(v *model.Vacancy) error {
	if v.Employer == nil {
		return fmt.Errorf("vacancy %s: %w", v.ID, ErrNoEmployer)
	}
	if err := m.persistEmployer(v.Employer); err != nil {
		return fmt.Errorf("vacancy %s: %w", v.ID, err)
	}

	if v.Salary != nil {
		flat := v.Salary.Flatten(model.Bare)
		flat["vacancy_id"] = v.ID
		if err := m.put(Salaries, "vacancy_id", flat); err != nil {
			return fmt.Errorf("vacancy %s: %w", v.ID, err)
		}
	} else if err := m.store.Delete(Salaries, "vacancy_id", v.ID); err != nil {
		return fmt.Errorf("vacancy %s: %s: %w", v.ID, Salaries, err)
	}

	flat := v.Flatten(model.Bare)
	flat["employer_id"] = v.Employer.ID
	for _, ref := range references {
		child, _ := flat[ref.field].(map[string]any)
		if child == nil {
			flat[ref.field+"_id"] = nil
			continue
		}
		if err := m.put(ref.collection, "id", child); err != nil {
			return fmt.Errorf("vacancy %s: %w", v.ID, err)
		}
		flat[ref.field+"_id"] = child["id"]
	}
	if err := m.put(Vacancies, "id", flat); err != nil {
		return fmt.Errorf("vacancy %s: %w", v.ID, err)
	}
	m.log.Debug().Str("vacancy", v.ID).Str("employer", v.Employer.ID).Msg("vacancy persisted")
	return nil
}

func (m *Mapper) persistEmployer(e *model.Employer) error {
	if e.Logo != nil {
		flat := e.Logo.Flatten(model.Bare)
		flat["employer_id"] = e.ID
		if err := m.put(Logos, "employer_id", flat); err != nil {
			return err
		}
	} else if err := m.store.Delete(Logos, "employer_id", e.ID); err != nil {
		return fmt.Errorf("%s: %w", Logos, err)
	}
	return m.put(Employers, "id", e.Flatten(model.Bare))
}

// PersistVacancies writes vs in order and stops at the first failure.
func (m *Mapper) PersistVacancies(vs []*model.Vacancy) error {
	for _, v := range vs {
		if err := m.PersistVacancy(v); err != nil {
			return err
		}
	}
	m.log.Info().Int("count", len(vs)).Msg("vacancies persisted")
	return nil
}

// DeleteVacancy removes the vacancy row and its salary. Employer and lookup
// rows are shared with other vacancies and stay.
func (m *Mapper) DeleteVacancy(id string) error {
	rows, err := m.store.Select(Vacancies, &store.Filter{Field: "id", Value: id})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("vacancy %s: %w", id, store.ErrNotFound)
	}
	if err := m.store.Delete(Vacancies, "id", id); err != nil {
		return err
	}
	if err := m.store.Delete(Salaries, "vacancy_id", id); err != nil {
		return err
	}
	m.log.Debug().Str("vacancy", id).Msg("vacancy deleted")
	return nil
}
