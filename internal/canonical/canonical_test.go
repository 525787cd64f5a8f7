package canonical

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pratik-mahalle/snapdrift/internal/pkg/errors"
)

func pod(name string, mutate func(doc map[string]interface{})) map[string]interface{} {
	doc := map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]interface{}{
			"name":            name,
			"namespace":       "default",
			"resourceVersion": "1",
			"generation":      1,
			"labels":          map[string]interface{}{"app": "web"},
		},
		"spec": map[string]interface{}{
			"containers": []interface{}{
				map[string]interface{}{"name": "web", "image": "nginx:1.25"},
			},
		},
		"status": map[string]interface{}{"phase": "Running"},
	}
	if mutate != nil {
		mutate(doc)
	}
	return doc
}

func mustHash(t *testing.T, doc map[string]interface{}) string {
	t.Helper()
	canon, err := Canonicalize(doc)
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	return canon.Hash
}

func TestCanonicalize_VolatileFieldsIgnored(t *testing.T) {
	base := mustHash(t, pod("x", nil))

	tests := []struct {
		name   string
		mutate func(doc map[string]interface{})
	}{
		{"resourceVersion", func(doc map[string]interface{}) {
			doc["metadata"].(map[string]interface{})["resourceVersion"] = "999"
		}},
		{"generation", func(doc map[string]interface{}) {
			doc["metadata"].(map[string]interface{})["generation"] = 7
		}},
		{"managedFields", func(doc map[string]interface{}) {
			doc["metadata"].(map[string]interface{})["managedFields"] = []interface{}{"kubectl"}
		}},
		{"creationTimestamp", func(doc map[string]interface{}) {
			doc["metadata"].(map[string]interface{})["creationTimestamp"] = "2024-01-01T00:00:00Z"
		}},
		{"status", func(doc map[string]interface{}) {
			doc["status"] = map[string]interface{}{"phase": "Failed"}
		}},
		{"status removed", func(doc map[string]interface{}) {
			delete(doc, "status")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustHash(t, pod("x", tt.mutate)); got != base {
				t.Errorf("hash changed after editing %s: %s != %s", tt.name, got, base)
			}
		})
	}
}

func TestCanonicalize_ScenarioPodStatus(t *testing.T) {
	a := map[string]interface{}{
		"kind":     "Pod",
		"metadata": map[string]interface{}{"name": "x", "resourceVersion": "1"},
		"status":   map[string]interface{}{"phase": "Running"},
	}
	b := map[string]interface{}{
		"kind":     "Pod",
		"metadata": map[string]interface{}{"name": "x", "resourceVersion": "999"},
		"status":   map[string]interface{}{"phase": "Failed"},
	}

	if mustHash(t, a) != mustHash(t, b) {
		t.Error("documents differing only in resourceVersion and status must hash identically")
	}
}

func TestCanonicalize_KeyOrderIndependent(t *testing.T) {
	first := []byte(`{"kind":"Service","apiVersion":"v1","metadata":{"name":"b","namespace":"default"},"spec":{"ports":[{"port":80,"name":"http"}],"type":"ClusterIP"}}`)
	second := []byte(`{"spec":{"type":"ClusterIP","ports":[{"name":"http","port":80}]},"metadata":{"namespace":"default","name":"b"},"apiVersion":"v1","kind":"Service"}`)

	var a, b map[string]interface{}
	if err := json.Unmarshal(first, &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(second, &b); err != nil {
		t.Fatal(err)
	}

	if mustHash(t, a) != mustHash(t, b) {
		t.Error("reordered keys produced different hashes")
	}
}

func TestCanonicalize_Deterministic(t *testing.T) {
	doc := pod("x", nil)
	if mustHash(t, doc) != mustHash(t, doc) {
		t.Error("hashing the same document twice gave different results")
	}
}

func TestCanonicalize_SpecChangeAltersHash(t *testing.T) {
	changed := pod("x", func(doc map[string]interface{}) {
		doc["spec"] = map[string]interface{}{"containers": []interface{}{
			map[string]interface{}{"name": "web", "image": "nginx:1.26"},
		}}
	})
	if mustHash(t, pod("x", nil)) == mustHash(t, changed) {
		t.Error("spec change should change the hash")
	}
}

func TestCanonicalize_DoesNotMutateInput(t *testing.T) {
	doc := pod("x", nil)
	before, _ := json.Marshal(doc)

	canon, err := Canonicalize(doc)
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}

	after, _ := json.Marshal(doc)
	if string(before) != string(after) {
		t.Errorf("input mutated:\nbefore %s\nafter  %s", before, after)
	}
	if _, ok := canon.Cleaned["status"]; ok {
		t.Error("cleaned document still has status")
	}

	// editing the cleaned copy must not leak back
	canon.Cleaned["metadata"].(map[string]interface{})["name"] = "changed"
	if doc["metadata"].(map[string]interface{})["name"] != "x" {
		t.Error("cleaned copy shares maps with the input")
	}
}

func TestCanonicalize_NothingToStrip(t *testing.T) {
	doc := map[string]interface{}{
		"kind":     "ConfigMap",
		"metadata": map[string]interface{}{"name": "plain"},
		"data":     map[string]interface{}{"k": "v"},
	}
	canon, err := Canonicalize(doc)
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	if len(canon.Hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(canon.Hash))
	}
	if !reflect.DeepEqual(canon.Cleaned, doc) {
		t.Errorf("Cleaned = %v, want %v", canon.Cleaned, doc)
	}
}

func TestCanonicalize_InvalidDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]interface{}
	}{
		{"nil", nil},
		{"missing kind", map[string]interface{}{"metadata": map[string]interface{}{"name": "x"}}},
		{"empty kind", map[string]interface{}{"kind": "", "metadata": map[string]interface{}{"name": "x"}}},
		{"missing metadata", map[string]interface{}{"kind": "Pod"}},
		{"missing name", map[string]interface{}{"kind": "Pod", "metadata": map[string]interface{}{"namespace": "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.doc)
			if err == nil {
				t.Fatal("Canonicalize() expected error")
			}
			if !errors.IsInvalidDocument(err) {
				t.Errorf("Canonicalize() error code = %q, want %q", errors.CodeOf(err), errors.ErrCodeInvalidDocument)
			}
		})
	}
}

func TestCanonicalize_YAMLStyleMaps(t *testing.T) {
	yamlDoc := map[string]interface{}{
		"kind": "Pod",
		"metadata": map[interface{}]interface{}{
			"name":            "x",
			"resourceVersion": "5",
		},
	}
	jsonDoc := map[string]interface{}{
		"kind":     "Pod",
		"metadata": map[string]interface{}{"name": "x"},
	}

	if mustHash(t, yamlDoc) != mustHash(t, jsonDoc) {
		t.Error("map[interface{}]interface{} metadata should hash like its string-keyed form")
	}
}

func TestCanonicalize_LargeIntegersStayDistinct(t *testing.T) {
	withN := func(n interface{}) map[string]interface{} {
		return pod("x", func(doc map[string]interface{}) {
			doc["spec"].(map[string]interface{})["n"] = n
		})
	}

	tests := []struct {
		name string
		a, b interface{}
	}{
		{"int64 above 2^53", int64(9007199254740993), int64(9007199254740992)},
		{"int below -2^53", int(-9007199254740993), int(-9007199254740992)},
		{"uint64 near max", uint64(18446744073709551615), uint64(18446744073709551614)},
		{"json.Number", json.Number("9007199254740993"), json.Number("9007199254740992")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if mustHash(t, withN(tt.a)) == mustHash(t, withN(tt.b)) {
				t.Errorf("Canonicalize() hashes %v and %v equally", tt.a, tt.b)
			}
		})
	}
}

func TestCanonicalize_SafeIntegersMatchFloats(t *testing.T) {
	asInt := pod("x", func(doc map[string]interface{}) {
		doc["spec"].(map[string]interface{})["replicas"] = 3
	})
	asFloat := pod("x", func(doc map[string]interface{}) {
		doc["spec"].(map[string]interface{})["replicas"] = float64(3)
	})
	if mustHash(t, asInt) != mustHash(t, asFloat) {
		t.Error("int and float64 forms of the same small integer should hash equally")
	}
}
