package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const workloads = `apiVersion: v1
kind: Pod
metadata:
  name: web
  namespace: default
spec:
  containers:
    - name: web
      image: nginx:1.25
---
apiVersion: v1
kind: Service
metadata:
  name: web
  namespace: default
spec:
  ports:
    - port: 80
`

const nodes = `{
  "apiVersion": "v1",
  "kind": "NodeList",
  "items": [
    {"apiVersion": "v1", "kind": "Node", "metadata": {"name": "node-1"}},
    {"apiVersion": "v1", "kind": "Node", "metadata": {"name": "node-2"}}
  ]
}`

func TestManifestSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "apps/workloads.yaml", workloads)
	writeFile(t, dir, "nodes.json", nodes)
	writeFile(t, dir, "README.md", "ignored")
	writeFile(t, dir, MetadataFile, "serverVersion: v1.29.2\nnodeCount: 2\ninfo:\n  provider: kind\n")

	src := NewManifestSource(dir, logger.Nop())
	result, err := src.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v", result.Errors)
	}
	if len(result.Documents) != 4 {
		t.Fatalf("Documents = %d, want 4", len(result.Documents))
	}

	// apps/ sorts before nodes.json
	if result.Documents[0]["kind"] != "Pod" || result.Documents[2]["kind"] != "Node" {
		t.Errorf("unexpected order: %v, %v", result.Documents[0]["kind"], result.Documents[2]["kind"])
	}

	if result.Metadata.ServerVersion != "v1.29.2" || result.Metadata.NodeCount != 2 {
		t.Errorf("Metadata = %+v", result.Metadata)
	}
	if result.Metadata.Info["provider"] != "kind" {
		t.Errorf("Metadata.Info = %v", result.Metadata.Info)
	}
}

func TestManifestSource_NamespaceFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "workloads.yaml", workloads)
	writeFile(t, dir, "nodes.json", nodes)

	ns := "default"
	result, err := NewManifestSource(dir, logger.Nop()).Fetch(context.Background(), &ns)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(result.Documents) != 2 {
		t.Errorf("Documents = %d, want 2 namespaced documents", len(result.Documents))
	}

	other := "kube-system"
	result, err = NewManifestSource(dir, logger.Nop()).Fetch(context.Background(), &other)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(result.Documents) != 0 {
		t.Errorf("Documents = %d, want 0", len(result.Documents))
	}
}

func TestManifestSource_BadFilesReported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-good.yaml", workloads)
	writeFile(t, dir, "b-broken.yaml", "kind: Pod\nmetadata: [unclosed\n")
	// documents without identity pass through untouched
	writeFile(t, dir, "c-anonymous.yaml", "apiVersion: v1\nkind: Pod\n")

	result, err := NewManifestSource(dir, logger.Nop()).Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want 1", result.Errors)
	}
	if len(result.Documents) != 3 {
		t.Errorf("Documents = %d, want 3", len(result.Documents))
	}
}

func TestManifestSource_MissingDirectory(t *testing.T) {
	src := NewManifestSource(filepath.Join(t.TempDir(), "missing"), logger.Nop())
	if _, err := src.Fetch(context.Background(), nil); err == nil {
		t.Error("Fetch() expected error for a missing directory")
	}
}

func TestManifestSource_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "workloads.yaml", workloads)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewManifestSource(dir, logger.Nop()).Fetch(ctx, nil); err == nil {
		t.Error("Fetch() expected error for a cancelled context")
	}
}
