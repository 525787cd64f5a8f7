package testutil

import (
	"database/sql"
	"io/fs"
	"sort"
	"testing"

	"github.com/pratik-mahalle/snapdrift/internal/canonical"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/migrations"
	_ "modernc.org/sqlite"
)

// NewTestDB creates an in-memory SQLite database with the snapdrift schema
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	schema, err := migrations.GetFS("sqlite")
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}
	files, err := fs.Glob(schema, "*.sql")
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(schema, name)
		if err != nil {
			t.Fatalf("Failed to read migration %s: %v", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			t.Fatalf("Failed to create test schema from %s: %v", name, err)
		}
	}

	t.Cleanup(func() { CleanupDB(db) })
	return db
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// Doc builds a minimal resource document. An empty namespace makes the
// resource cluster-scoped.
func Doc(apiVersion, kind, namespace, name string, spec map[string]interface{}) map[string]interface{} {
	meta := map[string]interface{}{
		"name":            name,
		"resourceVersion": "1",
	}
	if namespace != "" {
		meta["namespace"] = namespace
	}

	doc := map[string]interface{}{
		"apiVersion": apiVersion,
		"kind":       kind,
		"metadata":   meta,
		"status":     map[string]interface{}{"phase": "Running"},
	}
	if spec != nil {
		doc["spec"] = spec
	}
	return doc
}

// Resource canonicalizes doc into an ingestible row, failing the test on error
func Resource(t *testing.T, doc map[string]interface{}) scan.Resource {
	t.Helper()
	res, err := canonical.ToResource(doc)
	if err != nil {
		t.Fatalf("ToResource() error = %v", err)
	}
	return *res
}

// Resources canonicalizes a batch of documents
func Resources(t *testing.T, docs ...map[string]interface{}) []scan.Resource {
	t.Helper()
	out := make([]scan.Resource, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Resource(t, doc))
	}
	return out
}
