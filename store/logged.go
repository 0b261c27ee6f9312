package store

import (
	"github.com/rs/zerolog"

	"github.com/stevemurr/vacancy-store/schema"
)

// Logged wraps a Store and logs collection lifecycle at Info and record
// writes at Debug. Failures are logged at Warn and returned unchanged.
func Logged(s Store, log zerolog.Logger) Store {
	return &loggedStore{next: s, log: log.With().Str("component", "store").Logger()}
}

type loggedStore struct {
	next Store
	log  zerolog.Logger
}

func (l *loggedStore) done(ev *zerolog.Event, err error, msg string) error {
	if err != nil {
		l.log.Warn().Err(err).Msg(msg + " failed")
		return err
	}
	ev.Msg(msg)
	return nil
}

func (l *loggedStore) CreateCollection(name string, spec schema.FieldSpec) error {
	err := l.next.CreateCollection(name, spec)
	return l.done(l.log.Info().Str("collection", name).Strs("fields", spec.Names()), err, "collection created")
}

func (l *loggedStore) DropCollection(name string) error {
	err := l.next.DropCollection(name)
	return l.done(l.log.Info().Str("collection", name), err, "collection dropped")
}

func (l *loggedStore) Exists(name string) (bool, error) {
	return l.next.Exists(name)
}

func (l *loggedStore) Header(name string) (schema.FieldSpec, error) {
	return l.next.Header(name)
}

func (l *loggedStore) Insert(name string, record schema.Record) error {
	err := l.next.Insert(name, record)
	return l.done(l.log.Debug().Str("collection", name), err, "record inserted")
}

func (l *loggedStore) Replace(name, keyField string, record schema.Record) error {
	err := l.next.Replace(name, keyField, record)
	return l.done(l.log.Debug().Str("collection", name).Str("key", keyField).Interface("value", record[keyField]), err, "record replaced")
}

func (l *loggedStore) Update(name, setField string, setValue any, whereField string, whereValue any) error {
	err := l.next.Update(name, setField, setValue, whereField, whereValue)
	return l.done(l.log.Debug().Str("collection", name).Str("set", setField).Str("where", whereField), err, "records updated")
}

func (l *loggedStore) Delete(name, field string, value any) error {
	err := l.next.Delete(name, field, value)
	return l.done(l.log.Debug().Str("collection", name).Str("field", field).Interface("value", value), err, "records deleted")
}

func (l *loggedStore) Select(name string, filter *Filter) ([]schema.Record, error) {
	return l.next.Select(name, filter)
}

func (l *loggedStore) ListCollections() ([]string, error) {
	return l.next.ListCollections()
}

func (l *loggedStore) Close() error {
	return l.next.Close()
}
