package permissions

import (
	"fmt"
)

// UnknownPermissionError reports a toggle that referenced a permission
// absent from the catalog. This is a caller bug: the editor UI only ever
// presents catalog permissions, so an unknown name means stale or tampered
// client state and is surfaced as a hard failure.
type UnknownPermissionError struct {
	Name Permission
}

func (e *UnknownPermissionError) Error() string {
	return fmt.Sprintf("unknown permission %q", e.Name)
}

// Resolver applies single-permission toggles to a set while keeping the set
// closed under the decomposition rules. Resolution depends only on the
// input set, the toggled permission and the rules: there is no hidden state,
// so a UI may replay toggles in any order across distinct resources and
// reach the same result.
type Resolver struct {
	catalog *Catalog
	rules   Rules
}

// NewResolver creates a resolver over the given catalog and rules
func NewResolver(catalog *Catalog, rules Rules) *Resolver {
	return &Resolver{
		catalog: catalog,
		rules:   rules,
	}
}

// Rules returns the decomposition configuration the resolver was built with
func (r *Resolver) Rules() Rules {
	return r.rules
}

// Toggle flips the presence of p in the set and cascades the resource's
// aggregate so that the result stays closed. The input set is not modified.
//
// Toggling the aggregate on inserts it with both children (skipping names
// the catalog does not define); off removes all three. Toggling a child on
// inserts it and completes the aggregate when the sibling is already
// present; off removes the child and always breaks the aggregate. Any other
// permission toggles alone.
func (r *Resolver) Toggle(set Set, p Permission, on bool) (Set, error) {
	if !r.catalog.Exists(p) {
		return nil, &UnknownPermissionError{Name: p}
	}

	resource := p.Resource()
	aggregate := r.rules.AggregateFor(resource)
	children := r.rules.ChildrenFor(resource)

	out := set.Clone()

	switch {
	case p == aggregate:
		if on {
			for _, q := range []Permission{aggregate, children[0], children[1]} {
				if r.catalog.Exists(q) {
					out.Add(q)
				}
			}
		} else {
			out.Remove(aggregate)
			out.Remove(children[0])
			out.Remove(children[1])
		}

	case p == children[0] || p == children[1]:
		sibling := children[0]
		if p == children[0] {
			sibling = children[1]
		}
		if on {
			out.Add(p)
			if out.Has(sibling) && r.catalog.Exists(aggregate) {
				out.Add(aggregate)
			}
		} else {
			out.Remove(p)
			// a missing child always invalidates the aggregate
			out.Remove(aggregate)
		}

	default:
		if on {
			out.Add(p)
		} else {
			out.Remove(p)
		}
	}

	return out, nil
}

// Closed reports whether the set satisfies the closure invariant for every
// resource it touches: the aggregate is present iff all of its
// catalog-defined children are present. When the catalog defines only one
// of a resource's children, the iff weakens to an implication (aggregate
// present requires the defined children present), since the set of present
// children can never complete. Resources whose aggregate or children are
// not in the catalog are unconstrained.
func (r *Resolver) Closed(set Set) bool {
	seen := make(map[string]bool)
	for p := range set {
		resource := p.Resource()
		if seen[resource] {
			continue
		}
		seen[resource] = true

		aggregate := r.rules.AggregateFor(resource)
		if !r.catalog.Exists(aggregate) {
			continue
		}

		children := r.rules.ChildrenFor(resource)
		haveAll := true
		any := false
		partial := false
		for _, c := range children {
			if !r.catalog.Exists(c) {
				partial = true
				continue
			}
			any = true
			if !set.Has(c) {
				haveAll = false
			}
		}
		if !any {
			continue
		}

		if partial {
			// a child the catalog never defines cannot be granted, so
			// toggling the present child never completes the aggregate.
			// The aggregate may still be granted directly, which carries
			// the remaining children with it.
			if set.Has(aggregate) && !haveAll {
				return false
			}
			continue
		}

		if set.Has(aggregate) != haveAll {
			return false
		}
	}
	return true
}

// Normalize validates that every member of the set is a catalog permission
// and returns a copy. It does not repair closure: a set failing Closed is
// rejected by the role manager before persistence.
func (r *Resolver) Normalize(set Set) (Set, error) {
	for p := range set {
		if !r.catalog.Exists(p) {
			return nil, &UnknownPermissionError{Name: p}
		}
	}
	return set.Clone(), nil
}
