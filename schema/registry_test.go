package schema_test

import (
	"errors"
	"testing"

	"github.com/stevemurr/vacancy-store/schema"
)

func TestRegistry(t *testing.T) {
	reg := schema.NewRegistry()
	area := schema.MustSpec("id", "TEXT NOT NULL", "name", "TEXT NOT NULL", "url", "TEXT NOT NULL")

	t.Run("FieldsFor missing", func(t *testing.T) {
		_, err := reg.FieldsFor("area")
		if !errors.Is(err, schema.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Register and FieldsFor", func(t *testing.T) {
		if err := reg.Register("area", area); err != nil {
			t.Fatal(err)
		}
		got, err := reg.FieldsFor("area")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(area) {
			t.Fatalf("expected %v, got %v", area, got)
		}
	})

	t.Run("Register same spec twice", func(t *testing.T) {
		if err := reg.Register("area", area); err != nil {
			t.Fatalf("identical registration should pass: %v", err)
		}
	})

	t.Run("Register conflicting spec", func(t *testing.T) {
		other := schema.MustSpec("id", "TEXT NOT NULL", "name", "TEXT NOT NULL")
		err := reg.Register("area", other)
		if !errors.Is(err, schema.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		got, _ := reg.FieldsFor("area")
		if !got.Equal(area) {
			t.Fatal("conflicting registration must not overwrite")
		}
	})

	t.Run("returned spec is a copy", func(t *testing.T) {
		got, _ := reg.FieldsFor("area")
		got[0].Name = "mutated"
		again, _ := reg.FieldsFor("area")
		if again[0].Name != "id" {
			t.Fatal("registry spec was mutated through a returned copy")
		}
	})

	t.Run("Names", func(t *testing.T) {
		if err := reg.Register("schedule", schema.MustSpec("id", "TEXT NOT NULL")); err != nil {
			t.Fatal(err)
		}
		names := reg.Names()
		if len(names) != 2 || names[0] != "area" || names[1] != "schedule" {
			t.Fatalf("unexpected names %v", names)
		}
	})

	t.Run("empty spec", func(t *testing.T) {
		if err := reg.Register("empty", nil); !errors.Is(err, schema.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}
