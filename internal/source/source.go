// Package source fetches raw resource documents for a snapshot.
package source

import (
	"context"

	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

// Result is what a source returns for one snapshot
type Result struct {
	Documents []map[string]interface{}
	Metadata  scan.ClusterMetadata
	// Errors holds per-file or per-document read failures that did not stop the fetch
	Errors []error
}

// Source provides the raw documents of a cluster. A nil namespace means all
// namespaces.
type Source interface {
	Fetch(ctx context.Context, namespace *string) (*Result, error)
}
