package routes

import (
	"strings"
)

// Portal identifies which segment of the application a route belongs to.
// Groups are concatenated in a fixed order into one route table.
type Portal string

const (
	// PortalPublic routes are reachable without authentication
	PortalPublic Portal = "public"
	// PortalPlatform routes serve platform operators
	PortalPlatform Portal = "platform"
	// PortalTenantAdmin routes serve customer-success administrators
	PortalTenantAdmin Portal = "tenantadmin"
	// PortalCustomer routes serve customer-success users
	PortalCustomer Portal = "customer"
	// PortalApp routes serve tenant administrators and end users
	PortalApp Portal = "app"
	// PortalOthers holds shared routes such as the access-denied page
	PortalOthers Portal = "others"
)

// PortalOrder is the concatenation order of portal groups in the table
var PortalOrder = []Portal{
	PortalPublic,
	PortalPlatform,
	PortalTenantAdmin,
	PortalCustomer,
	PortalApp,
	PortalOthers,
}

// Descriptor binds a path pattern to an authorization requirement and a
// renderable unit. Authority entries are each either a role name or a
// permission string; a principal passes when any entry matches either its
// role names or its effective permissions. An empty authority list admits
// any authenticated principal.
type Descriptor struct {
	Key       string            `json:"key" yaml:"key"`
	Path      string            `json:"path" yaml:"path"`
	Authority []string          `json:"authority,omitempty" yaml:"authority,omitempty"`
	Component string            `json:"component" yaml:"component"`
	Meta      map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`

	// Portal is assigned by the table builder from the group the
	// descriptor was declared in
	Portal Portal `json:"portal" yaml:"-"`

	segments []segment
}

// Public reports whether the route is reachable without authentication
func (d *Descriptor) Public() bool {
	return d.Portal == PortalPublic
}

type segment struct {
	literal string
	param   bool
}

// splitPath breaks a path into its non-empty segments
func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}

// parseSegments compiles a path pattern, treating ":name" tokens as
// single-segment wildcards
func parseSegments(path string) []segment {
	parts := splitPath(path)
	out := make([]segment, len(parts))
	for i, part := range parts {
		if strings.HasPrefix(part, ":") {
			out[i] = segment{param: true}
		} else {
			out[i] = segment{literal: part}
		}
	}
	return out
}

// match reports whether a concrete path matches the compiled pattern. A
// parameter matches exactly one non-empty segment.
func (d *Descriptor) match(path string) bool {
	parts := splitPath(path)
	if len(parts) != len(d.segments) {
		return false
	}
	for i, seg := range d.segments {
		if seg.param {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if seg.literal != parts[i] {
			return false
		}
	}
	return true
}

// shadows reports whether this pattern would match every path the other
// pattern matches, hiding it when declared earlier in the table
func (d *Descriptor) shadows(other *Descriptor) bool {
	if len(d.segments) != len(other.segments) {
		return false
	}
	for i, seg := range d.segments {
		if seg.param {
			continue
		}
		o := other.segments[i]
		if o.param || o.literal != seg.literal {
			return false
		}
	}
	return true
}

// parameterized reports whether the pattern contains any wildcard segment
func (d *Descriptor) parameterized() bool {
	for _, seg := range d.segments {
		if seg.param {
			return true
		}
	}
	return false
}
