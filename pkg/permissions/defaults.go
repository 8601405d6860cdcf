package permissions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultCatalog returns the built-in permission catalog. Deployments can
// replace it with a YAML file via LoadCatalog.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog([]Entry{
		{Name: "shops.all", Category: "Commerce"},
		{Name: "shops.read", Category: "Commerce"},
		{Name: "shops.write", Category: "Commerce"},
		{Name: "orders.all", Category: "Commerce"},
		{Name: "orders.read", Category: "Commerce"},
		{Name: "orders.write", Category: "Commerce"},
		{Name: "programs.all", Category: "Commerce"},
		{Name: "programs.read", Category: "Commerce"},
		{Name: "programs.write", Category: "Commerce"},
		{Name: "accounting.all", Category: "Commerce"},
		{Name: "accounting.read", Category: "Commerce"},
		{Name: "accounting.write", Category: "Commerce"},
		{Name: "reports.all", Category: "Insights"},
		{Name: "reports.read", Category: "Insights"},
		{Name: "reports.write", Category: "Insights"},
		{Name: "system.all", Category: "Administration"},
		{Name: "system.logs", Category: "Administration"},
		{Name: "system.settings", Category: "Administration"},
		{Name: "roles.all", Category: "Administration"},
		{Name: "roles.read", Category: "Administration"},
		{Name: "roles.write", Category: "Administration"},
		{Name: "users.all", Category: "Administration"},
		{Name: "users.read", Category: "Administration"},
		{Name: "users.write", Category: "Administration"},
		{Name: "tenants.manage", Category: "Administration"},
		{Name: "audit.view", Category: "Administration"},
	})
	if err != nil {
		// the built-in entries are validated by tests
		panic(err)
	}
	return catalog
}

type catalogFile struct {
	Permissions []Entry `yaml:"permissions"`
}

// ParseCatalog builds a catalog from YAML of the form:
//
//	permissions:
//	  - name: shops.read
//	    category: Commerce
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewCatalog(file.Permissions)
}

// LoadCatalog reads a catalog from a YAML file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}
