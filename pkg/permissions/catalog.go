package permissions

import (
	"fmt"
	"sort"
)

// Entry is one catalog permission with its display grouping metadata
type Entry struct {
	Name     Permission `json:"name"`
	Category string     `json:"category"`
}

// Catalog is the immutable set of known permissions. It is loaded once per
// process from the permission listing service and only ever read afterwards.
type Catalog struct {
	entries    []Entry
	byName     map[Permission]Entry
	byResource map[string][]Entry
}

// NewCatalog builds a catalog from the given entries. Malformed names and
// duplicates are rejected: the catalog is globally defined reference data,
// so a bad entry is a deployment bug, not user input.
func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries:    make([]Entry, 0, len(entries)),
		byName:     make(map[Permission]Entry, len(entries)),
		byResource: make(map[string][]Entry),
	}

	for _, e := range entries {
		if !e.Name.Valid() {
			return nil, fmt.Errorf("malformed permission name %q: want <resource>.<action>", e.Name)
		}
		if _, exists := c.byName[e.Name]; exists {
			return nil, fmt.Errorf("duplicate permission %q", e.Name)
		}
		c.entries = append(c.entries, e)
		c.byName[e.Name] = e
		res := e.Name.Resource()
		c.byResource[res] = append(c.byResource[res], e)
	}

	return c, nil
}

// ListAll returns all entries in load order
func (c *Catalog) ListAll() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByResource returns the entries for one resource, or nil if unknown
func (c *Catalog) ByResource(resource string) []Entry {
	entries := c.byResource[resource]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Exists reports whether the named permission is in the catalog
func (c *Catalog) Exists(name Permission) bool {
	_, ok := c.byName[name]
	return ok
}

// Len returns the number of catalog entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// ResourceGroup is one resource's entries in display order
type ResourceGroup struct {
	Resource string  `json:"resource"`
	Entries  []Entry `json:"entries"`
}

// CategoryGroup is one category's resources in display order
type CategoryGroup struct {
	Category  string          `json:"category"`
	Resources []ResourceGroup `json:"resources"`
}

// Grouped arranges the catalog for the permission editor: entries grouped
// by category (in first-seen order), resources alphabetical within a
// category, and within a resource the aggregate action first followed by
// the remaining actions alphabetically. This ordering is a presentation
// contract for the UI, not a correctness requirement.
func (c *Catalog) Grouped(rules Rules) []CategoryGroup {
	categoryOrder := make([]string, 0)
	byCategory := make(map[string]map[string][]Entry)

	for _, e := range c.entries {
		if _, seen := byCategory[e.Category]; !seen {
			byCategory[e.Category] = make(map[string][]Entry)
			categoryOrder = append(categoryOrder, e.Category)
		}
		res := e.Name.Resource()
		byCategory[e.Category][res] = append(byCategory[e.Category][res], e)
	}

	out := make([]CategoryGroup, 0, len(categoryOrder))
	for _, cat := range categoryOrder {
		resources := make([]string, 0, len(byCategory[cat]))
		for res := range byCategory[cat] {
			resources = append(resources, res)
		}
		sort.Strings(resources)

		group := CategoryGroup{Category: cat}
		for _, res := range resources {
			entries := byCategory[cat][res]
			aggregate := rules.For(res).Aggregate
			sort.Slice(entries, func(i, j int) bool {
				ai, aj := entries[i].Name.Action(), entries[j].Name.Action()
				if (ai == aggregate) != (aj == aggregate) {
					return ai == aggregate
				}
				return ai < aj
			})
			group.Resources = append(group.Resources, ResourceGroup{
				Resource: res,
				Entries:  entries,
			})
		}
		out = append(out, group)
	}

	return out
}
