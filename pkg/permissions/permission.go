package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Permission identifies a single grantable capability as a
// "<resource>.<action>" string, e.g. "shops.read" or "system.logs".
type Permission string

// Resource returns the token before the first dot
func (p Permission) Resource() string {
	name := string(p)
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// Action returns the token after the first dot
func (p Permission) Action() string {
	name := string(p)
	if i := strings.Index(name, "."); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// Valid reports whether the name has a non-empty resource and action
func (p Permission) Valid() bool {
	return p.Resource() != "" && p.Action() != ""
}

func (p Permission) String() string {
	return string(p)
}

// Set is the canonical in-memory representation of a permission set.
// Membership is unordered; serialization is always a sorted list.
type Set map[Permission]struct{}

// NewSet builds a set from the given permissions
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports membership
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Add inserts a permission
func (s Set) Add(p Permission) {
	s[p] = struct{}{}
}

// Remove deletes a permission; removing an absent member is a no-op
func (s Set) Remove(p Permission) {
	delete(s, p)
}

// Clone returns an independent copy
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Union merges other into a new set
func (s Set) Union(other Set) Set {
	out := s.Clone()
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same members
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for p := range s {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted members as plain strings
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = string(p)
	}
	return out
}

// MarshalJSON encodes the set as a sorted JSON array
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts either a JSON array of permission strings or a
// single permission string. Legacy callers sent a bare string when a role
// held exactly one permission; the ambiguity is normalized here at the
// boundary and never propagates inward.
func (s *Set) UnmarshalJSON(data []byte) error {
	var list []Permission
	if err := json.Unmarshal(data, &list); err == nil {
		*s = NewSet(list...)
		return nil
	}

	var single Permission
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = NewSet()
		} else {
			*s = NewSet(single)
		}
		return nil
	}

	return fmt.Errorf("permissions must be a string or a list of strings")
}
