package components

import (
	"fmt"
	"sort"
)

// LoadOrder runs Kahn's algorithm over manifests' hard dependencies only,
// breaking ties between simultaneously-ready nodes by (load_order, name)
// so the result is deterministic across runs. Soft dependencies are not
// consulted at all: they add no edge and do not affect tie-breaking, so a
// soft-dependency-only cycle or a missing soft dependency is not an error.
func LoadOrder(manifests []*Manifest) ([]*Manifest, error) {
	byName := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		if _, dup := byName[m.Name]; dup {
			return nil, fmt.Errorf("components: duplicate component name %q", m.Name)
		}
		byName[m.Name] = m
	}

	// indegree counts edges dep -> m for hard dependencies only.
	indegree := make(map[string]int, len(manifests))
	dependents := make(map[string][]string, len(manifests))
	for _, m := range manifests {
		indegree[m.Name] = 0
	}
	for _, m := range manifests {
		for _, dep := range m.HardDependencies {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("components: %q depends on unknown component %q", m.Name, dep)
			}
			indegree[m.Name]++
			dependents[dep] = append(dependents[dep], m.Name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sortReady := func(names []string) {
		sort.Slice(names, func(i, j int) bool {
			mi, mj := byName[names[i]], byName[names[j]]
			if mi.LoadOrder != mj.LoadOrder {
				return mi.LoadOrder < mj.LoadOrder
			}
			return mi.Name < mj.Name
		})
	}
	sortReady(ready)

	var order []*Manifest
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, byName[name])

		var newlyReady []string
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		sortReady(newlyReady)
		ready = mergeSorted(ready, newlyReady, byName)
	}

	if len(order) != len(manifests) {
		return nil, fmt.Errorf("components: dependency cycle detected among: %s", cyclicNames(indegree))
	}
	return order, nil
}

// mergeSorted merges two already (load_order, name)-sorted slices, keeping
// the combined slice sorted the same way, rather than re-sorting the whole
// ready list on every pop.
func mergeSorted(a, b []string, byName map[string]*Manifest) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	less := func(x, y string) bool {
		mx, my := byName[x], byName[y]
		if mx.LoadOrder != my.LoadOrder {
			return mx.LoadOrder < my.LoadOrder
		}
		return mx.Name < my.Name
	}
	for i < len(a) && j < len(b) {
		if less(a[i], b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func cyclicNames(indegree map[string]int) string {
	var names []string
	for name, deg := range indegree {
		if deg > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
