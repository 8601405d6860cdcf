package permissions

// DecompositionRule names the aggregate action for a resource and the two
// child actions it stands for. A set is closed for a resource when the
// aggregate is present exactly when both children are present.
type DecompositionRule struct {
	Aggregate string
	Children  [2]string
}

// Rules holds the decomposition configuration: one default rule applied to
// every resource, plus per-resource overrides. Keeping the override table
// explicit makes the special cases declared configuration instead of
// conditionals buried in the resolver.
type Rules struct {
	Default   DecompositionRule
	Overrides map[string]DecompositionRule
}

// For returns the decomposition rule for the given resource
func (r Rules) For(resource string) DecompositionRule {
	if rule, ok := r.Overrides[resource]; ok {
		return rule
	}
	return r.Default
}

// AggregateFor returns the full aggregate permission name for a resource
func (r Rules) AggregateFor(resource string) Permission {
	return Permission(resource + "." + r.For(resource).Aggregate)
}

// ChildrenFor returns the full child permission names for a resource
func (r Rules) ChildrenFor(resource string) [2]Permission {
	rule := r.For(resource)
	return [2]Permission{
		Permission(resource + "." + rule.Children[0]),
		Permission(resource + "." + rule.Children[1]),
	}
}

// DefaultRules returns the portal decomposition configuration: read/write
// under all for every resource, except the system resource whose aggregate
// covers logs and settings.
func DefaultRules() Rules {
	return Rules{
		Default: DecompositionRule{
			Aggregate: "all",
			Children:  [2]string{"read", "write"},
		},
		Overrides: map[string]DecompositionRule{
			"system": {
				Aggregate: "all",
				Children:  [2]string{"logs", "settings"},
			},
		},
	}
}
