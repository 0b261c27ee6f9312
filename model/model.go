// Package model builds typed vacancy records from hh.ru payloads and turns
// them back into plain mappings.
package model

import "fmt"

// Mode selects what Flatten includes.
type Mode int

const (
	// Full is the external shape with the Additional bag merged back in.
	Full Mode = iota
	// Bare drops Additional at every level. This is what gets stored.
	Bare
)

// Vacancy is one hh.ru vacancy with its nested objects.
type Vacancy struct {
	ID           string
	Name         string
	Employer     *Employer
	Salary       *Salary
	Area         *Area
	Experience   *Reference
	Employment   *Reference
	Schedule     *Reference
	CreatedAt    string
	PublishedAt  string
	AlternateURL string
	Description  *string
	Additional   map[string]any
}

// Employer is the company behind a vacancy.
type Employer struct {
	ID                   string
	Name                 string
	AlternateURL         string
	AccreditedITEmployer *bool
	Description          *string
	SiteURL              *string
	Logo                 *Logo
	Additional           map[string]any
}

// Logo holds the employer logo URLs by size ("logo_urls" in the payload).
type Logo struct {
	Size90     *string
	Size240    *string
	Original   *string
	Additional map[string]any
}

// Salary is the disclosed pay range of a vacancy.
type Salary struct {
	From       *int64
	To         *int64
	Currency   *string
	Gross      *bool
	Additional map[string]any
}

// Area is a region from the hh.ru areas dictionary.
type Area struct {
	ID         string
	Name       string
	URL        string
	Additional map[string]any
}

// Reference is an id/name dictionary entry: experience, employment or
// schedule.
type Reference struct {
	ID         string
	Name       string
	Additional map[string]any
}

func NewVacancy(raw map[string]any) (*Vacancy, error) {
	f, err := newFields(DefaultAliases, raw)
	if err != nil {
		return nil, fmt.Errorf("vacancy: %w", err)
	}
	v := &Vacancy{
		ID:           f.id("id_"),
		Name:         f.required("name"),
		Employer:     nested(f, "employer", NewEmployer),
		Salary:       nested(f, "salary", NewSalary),
		Area:         nested(f, "area", NewArea),
		Experience:   nested(f, "experience", NewReference),
		Employment:   nested(f, "employment", NewReference),
		Schedule:     nested(f, "schedule", NewReference),
		CreatedAt:    f.text("created_at"),
		PublishedAt:  f.text("published_at"),
		AlternateURL: f.text("alternate_url"),
		Description:  f.optText("description"),
	}
	if f.err != nil {
		return nil, fmt.Errorf("vacancy: %w", f.err)
	}
	v.Additional = f.rest()
	return v, nil
}

func NewEmployer(raw map[string]any) (*Employer, error) {
	f, err := newFields(DefaultAliases, raw)
	if err != nil {
		return nil, fmt.Errorf("employer: %w", err)
	}
	e := &Employer{
		ID:                   f.id("id_"),
		Name:                 f.required("name"),
		AlternateURL:         f.text("alternate_url"),
		AccreditedITEmployer: f.optBool("accredited_it_employer"),
		Description:          f.optText("description"),
		SiteURL:              f.optText("site_url"),
		Logo:                 nested(f, "logo_urls", NewLogo),
	}
	if f.err != nil {
		return nil, fmt.Errorf("employer: %w", f.err)
	}
	e.Additional = f.rest()
	return e, nil
}

func NewLogo(raw map[string]any) (*Logo, error) {
	f, err := newFields(DefaultAliases, raw)
	if err != nil {
		return nil, fmt.Errorf("logo: %w", err)
	}
	l := &Logo{
		Size90:   f.optText("90"),
		Size240:  f.optText("240"),
		Original: f.optText("original"),
	}
	if f.err != nil {
		return nil, fmt.Errorf("logo: %w", f.err)
	}
	l.Additional = f.rest()
	return l, nil
}

func NewSalary(raw map[string]any) (*Salary, error) {
	f, err := newFields(DefaultAliases, raw)
	if err != nil {
		return nil, fmt.Errorf("salary: %w", err)
	}
	s := &Salary{
		From:     f.optInt("from_"),
		To:       f.optInt("to"),
		Currency: f.optText("currency"),
		Gross:    f.optBool("gross"),
	}
	if f.err != nil {
		return nil, fmt.Errorf("salary: %w", f.err)
	}
	s.Additional = f.rest()
	return s, nil
}

func NewArea(raw map[string]any) (*Area, error) {
	f, err := newFields(DefaultAliases, raw)
	if err != nil {
		return nil, fmt.Errorf("area: %w", err)
	}
	a := &Area{
		ID:   f.id("id_"),
		Name: f.required("name"),
		URL:  f.text("url"),
	}
	if f.err != nil {
		return nil, fmt.Errorf("area: %w", f.err)
	}
	a.Additional = f.rest()
	return a, nil
}

func NewReference(raw map[string]any) (*Reference, error) {
	f, err := newFields(DefaultAliases, raw)
	if err != nil {
		return nil, err
	}
	r := &Reference{
		ID:   f.id("id_"),
		Name: f.required("name"),
	}
	if f.err != nil {
		return nil, f.err
	}
	r.Additional = f.rest()
	return r, nil
}

// Flatten returns the vacancy in its external shape, nested objects
// included.
func (v *Vacancy) Flatten(mode Mode) map[string]any {
	out := map[string]any{
		"id":            v.ID,
		"name":          v.Name,
		"employer":      flat(v.Employer, mode),
		"salary":        flat(v.Salary, mode),
		"area":          flat(v.Area, mode),
		"experience":    flat(v.Experience, mode),
		"employment":    flat(v.Employment, mode),
		"schedule":      flat(v.Schedule, mode),
		"created_at":    v.CreatedAt,
		"published_at":  v.PublishedAt,
		"alternate_url": v.AlternateURL,
		"description":   ptrValue(v.Description),
	}
	return merge(out, v.Additional, mode)
}

func (e *Employer) Flatten(mode Mode) map[string]any {
	out := map[string]any{
		"id":                     e.ID,
		"name":                   e.Name,
		"alternate_url":          e.AlternateURL,
		"accredited_it_employer": ptrValue(e.AccreditedITEmployer),
		"description":            ptrValue(e.Description),
		"site_url":               ptrValue(e.SiteURL),
		"logo_urls":              flat(e.Logo, mode),
	}
	return merge(out, e.Additional, mode)
}

func (l *Logo) Flatten(mode Mode) map[string]any {
	out := map[string]any{
		"90":       ptrValue(l.Size90),
		"240":      ptrValue(l.Size240),
		"original": ptrValue(l.Original),
	}
	return merge(out, l.Additional, mode)
}

func (s *Salary) Flatten(mode Mode) map[string]any {
	out := map[string]any{
		"from":     ptrValue(s.From),
		"to":       ptrValue(s.To),
		"currency": ptrValue(s.Currency),
		"gross":    ptrValue(s.Gross),
	}
	return merge(out, s.Additional, mode)
}

func (a *Area) Flatten(mode Mode) map[string]any {
	out := map[string]any{"id": a.ID, "name": a.Name, "url": a.URL}
	return merge(out, a.Additional, mode)
}

func (r *Reference) Flatten(mode Mode) map[string]any {
	out := map[string]any{"id": r.ID, "name": r.Name}
	return merge(out, r.Additional, mode)
}

type flattener[T any] interface {
	*T
	Flatten(Mode) map[string]any
}

// flat returns nil for a nil record so the key is still present.
func flat[T any, P flattener[T]](p P, mode Mode) any {
	if p == nil {
		return nil
	}
	return p.Flatten(mode)
}

func merge(out, additional map[string]any, mode Mode) map[string]any {
	if mode == Bare {
		return out
	}
	for k, v := range additional {
		ext := DefaultAliases.External(k)
		if _, known := out[ext]; !known {
			out[ext] = v
		}
	}
	return out
}
