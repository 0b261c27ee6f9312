package model

import "sort"

// Midpoint is the value a salary is ranked by: the mean of both bounds, or
// the one bound that is set. ok is false when neither bound is set.
func (s *Salary) Midpoint() (mid float64, ok bool) {
	if s == nil {
		return 0, false
	}
	switch {
	case s.From != nil && s.To != nil:
		return float64(*s.From+*s.To) / 2, true
	case s.From != nil:
		return float64(*s.From), true
	case s.To != nil:
		return float64(*s.To), true
	}
	return 0, false
}

// Less reports whether s ranks below o. Currencies are not converted. A
// salary without bounds ranks above every other one, so it sorts last.
func (s *Salary) Less(o *Salary) bool {
	a, aok := s.Midpoint()
	b, bok := o.Midpoint()
	switch {
	case aok && bok:
		return a < b
	default:
		return aok && !bok
	}
}

// SortBySalary orders vacancies by ascending salary. Vacancies without a
// disclosed salary keep their relative order at the end.
func SortBySalary(vs []*Vacancy) {
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].Salary.Less(vs[j].Salary)
	})
}
