package mapper

import "github.com/stevemurr/vacancy-store/schema"

// Collection names.
const (
	Vacancies   = "vacancy"
	Employers   = "employer"
	Logos       = "employer_url_logo"
	Salaries    = "salary"
	Areas       = "area"
	Experiences = "experience"
	Employments = "employment"
	Schedules   = "schedule"
)

var specs = []struct {
	name string
	spec schema.FieldSpec
}{
	{Vacancies, schema.MustSpec(
		"id", "TEXT NOT NULL",
		"name", "TEXT NOT NULL",
		"employer_id", "TEXT NOT NULL",
		"area_id", "TEXT",
		"created_at", "TEXT NOT NULL",
		"published_at", "TEXT NOT NULL",
		"experience_id", "TEXT",
		"employment_id", "TEXT",
		"schedule_id", "TEXT",
		"alternate_url", "TEXT NOT NULL",
		"description", "TEXT",
	)},
	{Employers, schema.MustSpec(
		"id", "TEXT NOT NULL",
		"name", "TEXT NOT NULL",
		"alternate_url", "TEXT NOT NULL",
		"accredited_it_employer", "BOOLEAN",
		"description", "TEXT",
		"site_url", "TEXT",
	)},
	{Logos, schema.MustSpec(
		"90", "TEXT",
		"240", "TEXT",
		"original", "TEXT",
		"employer_id", "TEXT NOT NULL",
	)},
	{Salaries, schema.MustSpec(
		"from", "INTEGER",
		"to", "INTEGER",
		"currency", "TEXT",
		"gross", "BOOLEAN",
		"vacancy_id", "TEXT NOT NULL",
	)},
	{Areas, schema.MustSpec("id", "TEXT NOT NULL", "name", "TEXT NOT NULL", "url", "TEXT NOT NULL")},
	{Experiences, schema.MustSpec("id", "TEXT NOT NULL", "name", "TEXT NOT NULL")},
	{Employments, schema.MustSpec("id", "TEXT NOT NULL", "name", "TEXT NOT NULL")},
	{Schedules, schema.MustSpec("id", "TEXT NOT NULL", "name", "TEXT NOT NULL")},
}

// RegisterCollections registers every collection the mapper uses.
func RegisterCollections(reg *schema.Registry) error {
	for _, c := range specs {
		if err := reg.Register(c.name, c.spec); err != nil {
			return err
		}
	}
	return nil
}
