package reconciler

import (
	"sort"

	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
)

// Pair is one resource as seen in the older and the newer scan
type Pair struct {
	Old scan.Resource `json:"old"`
	New scan.Resource `json:"new"`
}

// Result partitions the union of two scans' resource keys. Every key lands
// in exactly one of the four lists, and each list is sorted by key.
type Result struct {
	Created   []scan.Resource    `json:"created"`
	Deleted   []scan.Resource    `json:"deleted"`
	Updated   []Pair             `json:"updated"`
	Unchanged []scan.ResourceKey `json:"unchanged"`
}

// ChangeCount is the number of keys that differ between the two scans
func (r Result) ChangeCount() int {
	return len(r.Created) + len(r.Deleted) + len(r.Updated)
}

// Diff compares two resource sets by key; equal hashes mean unchanged.
func Diff(old, new []scan.Resource) Result {
	before := index(old)
	after := index(new)

	result := Result{
		Created:   []scan.Resource{},
		Deleted:   []scan.Resource{},
		Updated:   []Pair{},
		Unchanged: []scan.ResourceKey{},
	}

	for key, cur := range after {
		prev, ok := before[key]
		switch {
		case !ok:
			result.Created = append(result.Created, cur)
		case prev.Hash != cur.Hash:
			result.Updated = append(result.Updated, Pair{Old: prev, New: cur})
		default:
			result.Unchanged = append(result.Unchanged, key)
		}
	}
	for key, prev := range before {
		if _, ok := after[key]; !ok {
			result.Deleted = append(result.Deleted, prev)
		}
	}

	sortResources(result.Created)
	sortResources(result.Deleted)
	sort.Slice(result.Updated, func(i, j int) bool {
		return result.Updated[i].New.ResourceKey.Compare(result.Updated[j].New.ResourceKey) < 0
	})
	sort.Slice(result.Unchanged, func(i, j int) bool {
		return result.Unchanged[i].Compare(result.Unchanged[j]) < 0
	})

	return result
}

// index maps resources by key; a repeated key keeps the last row.
func index(resources []scan.Resource) map[scan.ResourceKey]scan.Resource {
	m := make(map[scan.ResourceKey]scan.Resource, len(resources))
	for _, r := range resources {
		m[r.ResourceKey] = r
	}
	return m
}

func sortResources(resources []scan.Resource) {
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].ResourceKey.Compare(resources[j].ResourceKey) < 0
	})
}
