package scan

import "testing"

func TestResourceKey_String(t *testing.T) {
	ns := "default"
	empty := ""

	tests := []struct {
		name string
		key  ResourceKey
		want string
	}{
		{"namespaced", NewKey("v1", "Pod", &ns, "web"), "v1/Pod/default/web"},
		{"cluster scoped", NewKey("v1", "Node", nil, "node-1"), "v1/Node/node-1"},
		{"empty namespace", NewKey("v1", "Pod", &empty, "web"), "v1/Pod//web"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResourceKey_ClusterScopedDistinctFromEmptyNamespace(t *testing.T) {
	empty := ""
	clusterScoped := NewKey("v1", "ConfigMap", nil, "x")
	emptyNS := NewKey("v1", "ConfigMap", &empty, "x")

	if clusterScoped == emptyNS {
		t.Fatal("cluster-scoped key must differ from empty-namespace key")
	}
	if clusterScoped.NamespacePtr() != nil {
		t.Error("NamespacePtr() on cluster-scoped key should be nil")
	}
	if p := emptyNS.NamespacePtr(); p == nil || *p != "" {
		t.Errorf("NamespacePtr() = %v, want pointer to empty string", p)
	}
}

func TestResourceKey_Compare(t *testing.T) {
	ns := "default"
	a := NewKey("v1", "ConfigMap", &ns, "a")
	b := NewKey("v1", "ConfigMap", &ns, "b")

	if a.Compare(b) >= 0 {
		t.Errorf("Compare(a, b) = %d, want < 0", a.Compare(b))
	}
	if b.Compare(a) <= 0 {
		t.Errorf("Compare(b, a) = %d, want > 0", b.Compare(a))
	}
	if a.Compare(a) != 0 {
		t.Errorf("Compare(a, a) = %d, want 0", a.Compare(a))
	}
}
