package canonical

import (
	"fmt"

	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

const (
	labelHelmRelease      = "helm.sh/release"
	labelManagedBy        = "app.kubernetes.io/managed-by"
	labelInstance         = "app.kubernetes.io/instance"
	annotationHelmRelease = "meta.helm.sh/release-name"
)

// Identity extracts the resource key, labels and annotations of doc.
func Identity(doc map[string]interface{}) (scan.ResourceKey, map[string]string, map[string]string) {
	apiVersion, _ := doc["apiVersion"].(string)
	kind, _ := doc["kind"].(string)

	meta, _ := asStringMap(doc["metadata"])
	name, _ := meta["name"].(string)

	var namespace *string
	if ns, ok := meta["namespace"].(string); ok {
		namespace = &ns
	}

	return scan.NewKey(apiVersion, kind, namespace, name),
		stringMap(meta["labels"]),
		stringMap(meta["annotations"])
}

// HelmRelease reports whether a resource is Helm managed and, if known, the
// release that owns it.
func HelmRelease(labels, annotations map[string]string) (bool, string) {
	if release, ok := annotations[annotationHelmRelease]; ok {
		return true, release
	}
	if release, ok := labels[labelHelmRelease]; ok {
		return true, release
	}
	if labels[labelManagedBy] == "Helm" {
		return true, labels[labelInstance]
	}
	return false, ""
}

// ToResource canonicalizes doc and fills in a scan.Resource ready for ingestion.
// The stored document is a deep copy of the raw input; the hash covers only
// the cleaned form.
func ToResource(doc map[string]interface{}) (*scan.Resource, error) {
	canon, err := Canonicalize(doc)
	if err != nil {
		return nil, err
	}

	key, labels, annotations := Identity(canon.Cleaned)
	helm, release := HelmRelease(labels, annotations)

	return &scan.Resource{
		ResourceKey: key,
		Document:    copyMap(doc),
		Hash:        canon.Hash,
		Labels:      labels,
		Annotations: annotations,
		HelmManaged: helm,
		HelmRelease: release,
	}, nil
}

func stringMap(v interface{}) map[string]string {
	m, ok := asStringMap(v)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
