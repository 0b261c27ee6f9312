package store_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stevemurr/vacancy-store/schema"
	"github.com/stevemurr/vacancy-store/store"
)

var areaSpec = schema.MustSpec("id", "TEXT NOT NULL", "name", "TEXT NOT NULL", "url", "TEXT NOT NULL")

func newJsonStore(t *testing.T) (*store.JsonFileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewJsonFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	return s, dir
}

func TestJsonFileLayout(t *testing.T) {
	s, dir := newJsonStore(t)
	if err := s.CreateCollection("area", areaSpec); err != nil {
		t.Fatal(err)
	}
	err := s.Insert("area", schema.Record{"url": "https://api.hh.ru/areas/1", "name": "Москва & <область>", "id": "1"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "area.json"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "Москва & <область>") {
		t.Fatalf("expected non-ASCII and HTML characters written literally, got:\n%s", text)
	}
	if strings.Index(text, `"id"`) > strings.Index(text, `"name"`) {
		t.Fatalf("expected header key order to be kept, got:\n%s", text)
	}

	var elems []map[string]any
	if err := json.Unmarshal(data, &elems); err != nil {
		t.Fatal(err)
	}
	if len(elems) != 2 {
		t.Fatalf("expected header + 1 record, got %d elements", len(elems))
	}
	if elems[0]["id"] != "TEXT NOT NULL" {
		t.Fatalf("expected header as element zero, got %v", elems[0])
	}
	if elems[1]["id"] != "1" {
		t.Fatalf("expected record as element one, got %v", elems[1])
	}
}

func TestJsonFileCreateTwiceKeepsContent(t *testing.T) {
	s, dir := newJsonStore(t)
	if err := s.CreateCollection("vacancy", areaSpec); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "vacancy.json")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	err = s.CreateCollection("vacancy", schema.MustSpec("id", "TEXT"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("file changed:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestJsonFileReopenRecoversHeader(t *testing.T) {
	s, dir := newJsonStore(t)
	if err := s.CreateCollection("area", areaSpec); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert("area", schema.Record{"id": "1", "name": "Москва", "url": "u"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := store.NewJsonFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := reopened.Header("area")
	if err != nil {
		t.Fatal(err)
	}
	if !hdr.Equal(areaSpec) {
		t.Fatalf("expected %v, got %v", areaSpec, hdr)
	}
	if err := reopened.Insert("area", schema.Record{"id": "1"}); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch from recovered header, got %v", err)
	}
}

func TestJsonFileFailedInsertLeavesFile(t *testing.T) {
	s, dir := newJsonStore(t)
	if err := s.CreateCollection("area", areaSpec); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "area.json")
	before, _ := os.ReadFile(path)
	if err := s.Insert("area", schema.Record{"id": 1, "name": "x", "url": "y"}); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("failed insert must not touch the file")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestJsonFileCorrupt(t *testing.T) {
	s, dir := newJsonStore(t)
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Select("broken", nil); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Header("empty"); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for missing header, got %v", err)
	}
}

func TestJsonFileConcurrentInserts(t *testing.T) {
	dir := t.TempDir()
	a, err := store.NewJsonFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	// A second instance over the same directory stands in for another process.
	b, err := store.NewJsonFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.CreateCollection("area", areaSpec); err != nil {
		t.Fatal(err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		for j, s := range []*store.JsonFileStore{a, b} {
			wg.Add(1)
			go func(s *store.JsonFileStore, id string) {
				defer wg.Done()
				errs <- s.Insert("area", schema.Record{"id": id, "name": "n", "url": "u"})
			}(s, fmt.Sprintf("%d-%d", j, i))
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	rows, err := a.Select("area", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2*n {
		t.Fatalf("expected %d records, got %d", 2*n, len(rows))
	}
}

func TestJsonFileStoreIsolation(t *testing.T) {
	s, dir := newJsonStore(t)
	for _, name := range []string{"a", "b"} {
		if err := s.CreateCollection(name, areaSpec); err != nil {
			t.Fatal(err)
		}
	}
	s.Insert("a", schema.Record{"id": "1", "name": "x", "url": "1"})
	s.Insert("b", schema.Record{"id": "1", "name": "x", "url": "2"})

	aRows, _ := s.Select("a", nil)
	bRows, _ := s.Select("b", nil)
	if aRows[0]["url"] != "1" {
		t.Fatalf("collection a: expected url=1, got %v", aRows[0]["url"])
	}
	if bRows[0]["url"] != "2" {
		t.Fatalf("collection b: expected url=2, got %v", bRows[0]["url"])
	}

	// Verify separate files
	if _, err := os.Stat(filepath.Join(dir, "a.json")); err != nil {
		t.Fatalf("expected a.json to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.json")); err != nil {
		t.Fatalf("expected b.json to exist: %v", err)
	}
}
