package routes

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/canopysoft/atrium/pkg/permissions"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9-]+)*$`)

// Table is the ordered, immutable route table. It is built once at startup
// and only ever read afterwards.
type Table struct {
	routes []*Descriptor
}

// Routes returns the descriptors in table order
func (t *Table) Routes() []*Descriptor {
	return t.routes
}

// Len returns the number of routes
func (t *Table) Len() int {
	return len(t.routes)
}

// TableBuilder assembles a route table from portal groups and validates it.
// First path match wins at lookup time, so declaration order is a
// correctness contract; the builder rejects any table where a
// parameterized route would shadow a route declared after it.
type TableBuilder struct {
	groups  map[Portal][]*Descriptor
	catalog *permissions.Catalog
	errs    []error
}

// NewTableBuilder creates an empty builder
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{groups: make(map[Portal][]*Descriptor)}
}

// WithCatalog enables validation of permission-shaped authority entries
// (those containing a dot) against the permission catalog
func (b *TableBuilder) WithCatalog(catalog *permissions.Catalog) *TableBuilder {
	b.catalog = catalog
	return b
}

// Group appends descriptors to a portal group. Within a group, declaration
// order is preserved.
func (b *TableBuilder) Group(portal Portal, descriptors ...Descriptor) *TableBuilder {
	if !validPortal(portal) {
		b.errs = append(b.errs, fmt.Errorf("unknown portal group %q", portal))
		return b
	}
	for i := range descriptors {
		d := descriptors[i]
		d.Portal = portal
		b.groups[portal] = append(b.groups[portal], &d)
	}
	return b
}

// Build concatenates the portal groups in PortalOrder and validates the
// whole table
func (b *TableBuilder) Build() (*Table, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	var routes []*Descriptor
	for _, portal := range PortalOrder {
		routes = append(routes, b.groups[portal]...)
	}

	seenKeys := make(map[string]struct{}, len(routes))
	for _, d := range routes {
		if err := b.validateDescriptor(d); err != nil {
			return nil, err
		}
		if _, dup := seenKeys[d.Key]; dup {
			return nil, fmt.Errorf("duplicate route key %q", d.Key)
		}
		seenKeys[d.Key] = struct{}{}
		d.segments = parseSegments(d.Path)
	}

	// an earlier pattern that matches everything a later one matches makes
	// the later route unreachable
	for i, earlier := range routes {
		for _, later := range routes[i+1:] {
			if earlier.shadows(later) {
				return nil, fmt.Errorf(
					"route %q (%s) shadows %q (%s): declare the more specific route first",
					earlier.Key, earlier.Path, later.Key, later.Path)
			}
		}
	}

	return &Table{routes: routes}, nil
}

func (b *TableBuilder) validateDescriptor(d *Descriptor) error {
	if !keyPattern.MatchString(d.Key) {
		return fmt.Errorf("invalid route key %q: want dotted lowercase segments", d.Key)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("route %q: path %q must start with /", d.Key, d.Path)
	}
	if d.Portal == PortalPublic && len(d.Authority) > 0 {
		return fmt.Errorf("route %q: public routes cannot carry authority", d.Key)
	}
	for _, entry := range d.Authority {
		if entry == "" {
			return fmt.Errorf("route %q: empty authority entry", d.Key)
		}
		// dotted entries are permission strings; bare names are role names
		if b.catalog != nil && strings.Contains(entry, ".") {
			if !b.catalog.Exists(permissions.Permission(entry)) {
				return fmt.Errorf("route %q: authority %q is not a catalog permission", d.Key, entry)
			}
		}
	}
	return nil
}

func validPortal(portal Portal) bool {
	for _, p := range PortalOrder {
		if p == portal {
			return true
		}
	}
	return false
}

// tableFile is the YAML shape of a route table: portal groups in any file
// order, concatenated per PortalOrder at build time
type tableFile struct {
	Groups map[Portal][]Descriptor `yaml:"groups"`
}

// LoadTable reads a route table from a YAML file and builds it
func LoadTable(path string, catalog *permissions.Catalog) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route table: %w", err)
	}
	return ParseTable(data, catalog)
}

// ParseTable builds a route table from YAML bytes
func ParseTable(data []byte, catalog *permissions.Catalog) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}

	builder := NewTableBuilder()
	if catalog != nil {
		builder.WithCatalog(catalog)
	}
	for portal, descriptors := range file.Groups {
		builder.Group(portal, descriptors...)
	}
	return builder.Build()
}
