// Package permissions defines the portal permission vocabulary and the
// closure rules that keep a role's permission set internally consistent.
//
// A permission is a "<resource>.<action>" string. Most resources decompose
// into read and write actions aggregated by an "all" action; a resource may
// override that pair (the system resource aggregates logs and settings).
// The Resolver applies a single toggle to a set and cascades the aggregate
// so that the set stays closed: the aggregate is present if and only if
// both of its children are present.
//
// The catalog and decomposition rules are loaded once at startup and never
// mutated afterwards.
package permissions
