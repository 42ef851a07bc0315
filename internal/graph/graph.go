// Package graph tracks the dependency edges between source units, generated
// factories and resource files, and answers the lookups that drive cascading
// recompilation.
package graph

import (
	"sort"
	"sync"
)

// Kind labels a dependency edge.
type Kind string

const (
	ModuleImport Kind = "module-import"
	LazyLoad     Kind = "lazy-load"
	FactoryOf    Kind = "factory-of-component"
	ResourceOf   Kind = "resource-of-unit"
)

// Edge is one directed dependency.
type Edge struct {
	From string
	To   string
	Kind Kind
}

// ExistsFunc reports whether a file is still present.
type ExistsFunc func(path string) bool

// Tracker holds the four dependency maps. Every lookup prunes entries whose
// target no longer exists before returning them.
type Tracker struct {
	mu     sync.Mutex
	exists ExistsFunc

	// unit -> local units it imports or lazy-loads
	modules map[string][]string
	// generated factory path (extension stripped) -> component sources whose
	// factories import it
	components map[string][]string
	// resource -> units referencing it
	resources map[string][]string
	// unit -> resources it references
	resourceSets map[string][]string

	lazy map[edgeKey]struct{}
}

type edgeKey struct{ from, to string }

// New returns an empty tracker. exists decides which recorded files survive
// pruning.
func New(exists ExistsFunc) *Tracker {
	return &Tracker{
		exists:       exists,
		modules:      make(map[string][]string),
		components:   make(map[string][]string),
		resources:    make(map[string][]string),
		resourceSets: make(map[string][]string),
		lazy:         make(map[edgeKey]struct{}),
	}
}

// RecordModuleDependency records that file imports dep. It reports whether
// the edge is new.
func (t *Tracker) RecordModuleDependency(file, dep string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(t.modules, file, dep)
}

// RecordLazyDependency records that file lazy-loads dep through a route
// declaration. It shares the module map, so cascades treat both alike.
func (t *Tracker) RecordLazyDependency(file, dep string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	added := t.add(t.modules, file, dep)
	if added {
		t.lazy[edgeKey{file, dep}] = struct{}{}
	}
	return added
}

// RecordComponentDependency records that the factory generated for component
// imports factory.
func (t *Tracker) RecordComponentDependency(factory, component string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(t.components, factory, component)
}

// RecordResourceUsage replaces the resource set of owner. Resources owner no
// longer references lose their edge back to owner.
func (t *Tracker) RecordResourceUsage(owner string, resources []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, old := range t.resourceSets[owner] {
		owners := remove(t.resources[old], owner)
		owners = t.prune(owners)
		if len(owners) == 0 {
			delete(t.resources, old)
			continue
		}
		t.resources[old] = owners
	}

	t.resourceSets[owner] = dedupe(resources)
	for _, r := range resources {
		t.add(t.resources, r, owner)
	}
}

// ModuleDependencies returns the units file imports or lazy-loads.
func (t *Tracker) ModuleDependencies(file string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(t.modules, file)
}

// ComponentDependents returns the component sources whose factories import
// the factory at path (extension stripped).
func (t *Tracker) ComponentDependents(factory string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(t.components, factory)
}

// ResourceOwners returns the units referencing resource.
func (t *Tracker) ResourceOwners(resource string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(t.resources, resource)
}

// IsResource reports whether path is a tracked resource.
func (t *Tracker) IsResource(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.resources[path]
	return ok
}

// DependentsOf returns the existing units that record file as a module
// dependency. file itself need not exist.
func (t *Tracker) DependentsOf(file string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dependents []string
	for from, deps := range t.modules {
		if contains(deps, file) && t.exists(from) {
			dependents = append(dependents, from)
		}
	}
	sort.Strings(dependents)
	return dependents
}

// Edges returns every recorded edge, sorted for deterministic output.
func (t *Tracker) Edges() []Edge {
	t.mu.Lock()
	defer t.mu.Unlock()

	var edges []Edge
	for from, deps := range t.modules {
		for _, to := range deps {
			kind := ModuleImport
			if _, ok := t.lazy[edgeKey{from, to}]; ok {
				kind = LazyLoad
			}
			edges = append(edges, Edge{From: from, To: to, Kind: kind})
		}
	}
	for factory, components := range t.components {
		for _, c := range components {
			edges = append(edges, Edge{From: factory, To: c, Kind: FactoryOf})
		}
	}
	for resource, owners := range t.resources {
		for _, o := range owners {
			edges = append(edges, Edge{From: resource, To: o, Kind: ResourceOf})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Kind < edges[j].Kind
	})
	return edges
}

func (t *Tracker) add(m map[string][]string, key, value string) bool {
	existing := m[key]
	if contains(existing, value) {
		return false
	}
	m[key] = t.prune(append(existing, value))
	return contains(m[key], value)
}

// lookup prunes the entry for key in place and returns a copy.
func (t *Tracker) lookup(m map[string][]string, key string) []string {
	values, ok := m[key]
	if !ok {
		return nil
	}
	values = t.prune(values)
	if len(values) == 0 {
		delete(m, key)
		return nil
	}
	m[key] = values
	return append([]string(nil), values...)
}

func (t *Tracker) prune(values []string) []string {
	kept := values[:0:0]
	for _, v := range values {
		if t.exists(v) {
			kept = append(kept, v)
		}
	}
	return kept
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

func remove(slice []string, s string) []string {
	kept := slice[:0:0]
	for _, v := range slice {
		if v != s {
			kept = append(kept, v)
		}
	}
	return kept
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
