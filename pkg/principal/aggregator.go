package principal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/roles"
)

// RoleLoader fetches stored roles by id. Missing ids are skipped, not
// errors.
type RoleLoader interface {
	GetMany(ctx context.Context, roleIDs []int64) ([]*roles.Role, error)
}

// Aggregator resolves a principal's effective authority from its role
// assignments. Assignment governs inclusion, not visibility: a role the
// principal could not load through the editing path still contributes its
// permissions when directly assigned.
//
// Snapshots are cached per role-id set with a short TTL so a burst of
// route checks during one page load resolves roles once.
type Aggregator struct {
	loader RoleLoader
	cache  *lru.LRU[string, *Snapshot]
}

// NewAggregator creates an aggregator with the given cache capacity and
// snapshot TTL. A zero TTL disables expiry-based invalidation.
func NewAggregator(loader RoleLoader, cacheSize int, ttl time.Duration) *Aggregator {
	if cacheSize < 16 {
		cacheSize = 16
	}
	return &Aggregator{
		loader: loader,
		cache:  lru.NewLRU[string, *Snapshot](cacheSize, nil, ttl),
	}
}

// Resolve computes the principal's snapshot: the union of all assigned
// roles' permissions plus direct grants, and the set of assigned role names
func (a *Aggregator) Resolve(ctx context.Context, p *Principal) (*Snapshot, error) {
	key := cacheKey(p)
	if snap, ok := a.cache.Get(key); ok {
		return snap, nil
	}

	assigned, err := a.loader.GetMany(ctx, p.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load assigned roles: %w", err)
	}

	snap := &Snapshot{
		Permissions: permissions.NewSet(),
		RoleNames:   make(map[string]struct{}, len(assigned)),
	}
	for _, role := range assigned {
		snap.Permissions = snap.Permissions.Union(role.Permissions)
		snap.RoleNames[role.Name] = struct{}{}
	}
	for _, grant := range p.Grants {
		snap.Permissions.Add(grant)
	}

	a.cache.Add(key, snap)
	return snap, nil
}

// Invalidate drops every cached snapshot. Called after any role save so
// changed permissions take effect on the next check.
func (a *Aggregator) Invalidate() {
	a.cache.Purge()
}

func cacheKey(p *Principal) string {
	ids := make([]int64, len(p.RoleIDs))
	copy(ids, p.RoleIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	grants := make([]string, len(p.Grants))
	for i, g := range p.Grants {
		grants[i] = string(g)
	}
	sort.Strings(grants)

	var b strings.Builder
	fmt.Fprintf(&b, "u%d", p.UserID)
	for _, id := range ids {
		fmt.Fprintf(&b, ":%d", id)
	}
	// newline separator: cannot occur in a permission name, so distinct
	// grant lists never collapse to one key
	for _, g := range grants {
		b.WriteByte('\n')
		b.WriteString(g)
	}
	return b.String()
}
