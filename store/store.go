// Package store defines the collection store interface and its backends.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stevemurr/vacancy-store/schema"
)

var (
	// ErrNotFound is returned when a collection does not exist.
	ErrNotFound = errors.New("collection not found")
	// ErrAlreadyExists is returned when creating a collection that exists.
	ErrAlreadyExists = errors.New("collection already exists")
	// ErrSchemaMismatch is returned when a record does not fit the
	// collection header.
	ErrSchemaMismatch = schema.ErrMismatch
	// ErrCorrupt is returned when stored data cannot be decoded.
	ErrCorrupt = errors.New("corrupt collection")
	// ErrInvalidName is returned for collection names that cannot be stored.
	ErrInvalidName = errors.New("invalid collection name")
)

// Filter selects records whose Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Store is the interface that all backing stores must implement.
// A collection is a named list of records bound to a field spec (its
// header). Every mutation rewrites the whole collection.
type Store interface {
	// CreateCollection creates an empty collection with the given header.
	CreateCollection(name string, spec schema.FieldSpec) error

	// DropCollection removes a collection and all its records.
	DropCollection(name string) error

	// Exists reports whether a collection exists.
	Exists(name string) (bool, error)

	// Header returns the field spec stored with a collection.
	Header(name string) (schema.FieldSpec, error)

	// Insert validates and appends a record. Inserting a record identical
	// to a stored one is a no-op.
	Insert(name string, record schema.Record) error

	// Replace validates a record and stores it in place of every record
	// whose keyField equals the record's, or appends it if none does.
	Replace(name, keyField string, record schema.Record) error

	// Update sets setField to setValue on every record where whereField
	// equals whereValue.
	Update(name, setField string, setValue any, whereField string, whereValue any) error

	// Delete removes every record where field equals value.
	Delete(name, field string, value any) error

	// Select returns all records, or those matching filter, in insertion order.
	Select(name string, filter *Filter) ([]schema.Record, error)

	// ListCollections returns the names of all collections.
	ListCollections() ([]string, error)

	// Close releases backend resources.
	Close() error
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\:`) || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

func alreadyExists(name string) error {
	return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
}
