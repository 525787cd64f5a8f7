package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
)

// MetadataFile holds cluster metadata at the root of a manifest directory
const MetadataFile = "cluster.yaml"

// ManifestSource reads resource documents from YAML and JSON manifests in a
// directory tree. Multi-document YAML and List kinds are expanded.
type ManifestSource struct {
	dir    string
	logger *logger.Logger
}

// NewManifestSource creates a source over dir
func NewManifestSource(dir string, log *logger.Logger) *ManifestSource {
	return &ManifestSource{dir: dir, logger: log}
}

// Fetch walks the directory in lexical order. Documents are returned as
// decoded, without validation; unreadable documents are reported in
// Result.Errors.
func (s *ManifestSource) Fetch(ctx context.Context, namespace *string) (*Result, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("manifest directory %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("manifest path %s is not a directory", s.dir)
	}

	result := &Result{Documents: make([]map[string]interface{}, 0)}

	meta, err := s.readMetadata()
	if err != nil {
		result.Errors = append(result.Errors, err)
	} else {
		result.Metadata = meta
	}

	var files []string
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Dir(path) == filepath.Clean(s.dir) && d.Name() == MetadataFile {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docs, errs := s.parseFile(path)
		result.Errors = append(result.Errors, errs...)
		for _, doc := range docs {
			if namespace != nil && !inNamespace(doc, *namespace) {
				continue
			}
			result.Documents = append(result.Documents, doc)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"dir":       s.dir,
		"files":     len(files),
		"documents": len(result.Documents),
		"errors":    len(result.Errors),
	}).Debug("Manifests loaded")

	return result, nil
}

func (s *ManifestSource) readMetadata() (scan.ClusterMetadata, error) {
	var meta scan.ClusterMetadata

	content, err := os.ReadFile(filepath.Join(s.dir, MetadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read %s: %w", MetadataFile, err)
	}
	if err := yaml.Unmarshal(content, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse %s: %w", MetadataFile, err)
	}
	return meta, nil
}

// parseFile decodes every document in a file. JSON is valid YAML, so one
// decoder serves both.
func (s *ManifestSource) parseFile(path string) ([]map[string]interface{}, []error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("%s: %w", path, err)}
	}
	return parse(content, path)
}

func parse(content []byte, name string) ([]map[string]interface{}, []error) {
	var (
		docs []map[string]interface{}
		errs []error
	)

	dec := yaml.NewDecoder(bytes.NewReader(content))
	for i := 1; ; i++ {
		var doc map[string]interface{}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// the decoder cannot resync after a syntax error
			errs = append(errs, fmt.Errorf("document %d in %s: %w", i, name, err))
			break
		}
		if len(doc) == 0 {
			continue
		}
		docs = append(docs, expandList(doc)...)
	}

	return docs, errs
}

// expandList returns the items of a List document, or the document itself
func expandList(doc map[string]interface{}) []map[string]interface{} {
	kind, _ := doc["kind"].(string)
	items, ok := doc["items"].([]interface{})
	if !ok || !strings.HasSuffix(kind, "List") {
		return []map[string]interface{}{doc}
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func inNamespace(doc map[string]interface{}, namespace string) bool {
	meta, ok := doc["metadata"].(map[string]interface{})
	if !ok {
		return false
	}
	ns, ok := meta["namespace"].(string)
	return ok && ns == namespace
}
