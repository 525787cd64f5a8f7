package detector

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
)

// maxSummaryFields limits how many paths a summary spells out
const maxSummaryFields = 5

// FieldDetector compares two canonical resource documents path by path
type FieldDetector struct{}

// NewFieldDetector creates a new field detector
func NewFieldDetector() *FieldDetector {
	return &FieldDetector{}
}

// Diff returns every added, removed and modified leaf path between old and
// new, sorted by path. Nested maps are walked; slices are compared whole.
func (d *FieldDetector) Diff(old, new map[string]interface{}) []change.FieldChange {
	changes := d.compareConfigs(old, new, "")
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes
}

// compareConfigs recursively compares two configuration maps
func (d *FieldDetector) compareConfigs(baseline, current map[string]interface{}, path string) []change.FieldChange {
	var changes []change.FieldChange

	// Check for modified and removed fields
	for key, oldVal := range baseline {
		currentPath := joinPath(path, key)

		newVal, exists := current[key]
		if !exists {
			changes = append(changes, change.FieldChange{
				Path:     currentPath,
				Type:     change.FieldRemoved,
				OldValue: oldVal,
			})
			continue
		}

		oldMap, oldIsMap := oldVal.(map[string]interface{})
		newMap, newIsMap := newVal.(map[string]interface{})
		if oldIsMap && newIsMap {
			changes = append(changes, d.compareConfigs(oldMap, newMap, currentPath)...)
			continue
		}

		if !d.valuesEqual(oldVal, newVal) {
			changes = append(changes, change.FieldChange{
				Path:     currentPath,
				Type:     change.FieldModified,
				OldValue: oldVal,
				NewValue: newVal,
			})
		}
	}

	// Check for added fields
	for key, newVal := range current {
		if _, exists := baseline[key]; !exists {
			changes = append(changes, change.FieldChange{
				Path:     joinPath(path, key),
				Type:     change.FieldAdded,
				NewValue: newVal,
			})
		}
	}

	return changes
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// valuesEqual compares two decoded JSON values for equality
func (d *FieldDetector) valuesEqual(v1, v2 interface{}) bool {
	if v1 == nil && v2 == nil {
		return true
	}
	if v1 == nil || v2 == nil {
		return false
	}

	// YAML decodes integers as int, JSON as float64
	if n1, ok := toFloat(v1); ok {
		n2, ok := toFloat(v2)
		return ok && n1 == n2
	}

	switch v1Type := v1.(type) {
	case string:
		v2Str, ok := v2.(string)
		return ok && v1Type == v2Str
	case bool:
		v2Bool, ok := v2.(bool)
		return ok && v1Type == v2Bool
	}

	if v1Slice, ok := v1.([]interface{}); ok {
		v2Slice, ok := v2.([]interface{})
		if !ok || len(v1Slice) != len(v2Slice) {
			return false
		}
		for i := range v1Slice {
			if !d.valuesEqual(v1Slice[i], v2Slice[i]) {
				return false
			}
		}
		return true
	}

	if v1Map, ok := v1.(map[string]interface{}); ok {
		v2Map, ok := v2.(map[string]interface{})
		if !ok || len(v1Map) != len(v2Map) {
			return false
		}
		for key, val1 := range v1Map {
			val2, exists := v2Map[key]
			if !exists || !d.valuesEqual(val1, val2) {
				return false
			}
		}
		return true
	}

	j1, err1 := json.Marshal(v1)
	j2, err2 := json.Marshal(v2)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(j1) == string(j2)
}

// Summarize renders a one-line description of a field diff
func (d *FieldDetector) Summarize(changes []change.FieldChange) string {
	if len(changes) == 0 {
		return "no field changes"
	}

	counts := map[string]int{}
	for _, c := range changes {
		counts[c.Type]++
	}

	var parts []string
	for _, t := range []string{change.FieldAdded, change.FieldRemoved, change.FieldModified} {
		if counts[t] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
		}
	}

	paths := make([]string, 0, maxSummaryFields)
	for i, c := range changes {
		if i >= maxSummaryFields {
			paths = append(paths, fmt.Sprintf("and %d more", len(changes)-maxSummaryFields))
			break
		}
		paths = append(paths, c.Path)
	}

	return fmt.Sprintf("%s (%s)", strings.Join(parts, ", "), strings.Join(paths, ", "))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
