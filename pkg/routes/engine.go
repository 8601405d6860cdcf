package routes

import (
	"context"
	"time"

	"github.com/canopysoft/atrium/pkg/audit"
	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/principal"
)

// Outcome classifies an authorization decision
type Outcome string

const (
	// OutcomeAllowed means the route matched and the principal passed
	OutcomeAllowed Outcome = "allowed"
	// OutcomeDenied means the route matched but the principal lacks
	// authority over it
	OutcomeDenied Outcome = "denied"
	// OutcomeNotFound means no route matched the path
	OutcomeNotFound Outcome = "not_found"
)

// Decision is the result of authorizing one navigation. The two denial
// outcomes redirect to the same destination but stay distinct internally
// for audit.
type Decision struct {
	Outcome  Outcome
	Route    *Descriptor // nil when OutcomeNotFound
	Redirect string      // set on both denial outcomes
}

// Allowed reports whether the navigation may proceed
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

// SnapshotResolver resolves a principal's effective authority
type SnapshotResolver interface {
	Resolve(ctx context.Context, p *principal.Principal) (*principal.Snapshot, error)
}

// Engine evaluates route reachability. The same evaluation backs both menu
// filtering and access enforcement, so a menu can never show an entry the
// guard would reject.
type Engine struct {
	table      *Table
	resolver   SnapshotResolver
	logger     *observability.Logger
	metrics    *observability.Metrics
	denialPath string
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithMetrics wires decision counters into the engine
func WithMetrics(metrics *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = metrics }
}

// WithDenialPath overrides the redirect destination for denied navigations
func WithDenialPath(path string) EngineOption {
	return func(e *Engine) { e.denialPath = path }
}

// NewEngine creates a route authorization engine over a built table
func NewEngine(table *Table, resolver SnapshotResolver, logger *observability.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		table:      table,
		resolver:   resolver,
		logger:     logger,
		denialPath: "/access-denied",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DenialPath returns the redirect destination for denied navigations
func (e *Engine) DenialPath() string {
	return e.denialPath
}

// Match returns the first route in table order whose pattern matches the
// path
func (e *Engine) Match(path string) (*Descriptor, bool) {
	for _, d := range e.table.routes {
		if d.match(path) {
			return d, true
		}
	}
	return nil, false
}

// IsAuthorized reports whether a resolved principal passes a route's
// authority list. An empty list admits any authenticated principal. Each
// entry is matched as a role name or as a permission string, whichever
// hits first.
func (e *Engine) IsAuthorized(snap *principal.Snapshot, route *Descriptor) bool {
	if len(route.Authority) == 0 {
		return true
	}
	for _, entry := range route.Authority {
		if snap.HasRole(entry) {
			return true
		}
		if snap.HasPermission(permissions.Permission(entry)) {
			return true
		}
	}
	return false
}

// AccessibleRoutes filters the table to the routes the principal may open,
// in table order. A nil principal is an unauthenticated visitor and gets
// the public routes only. This feeds menu construction: every entry
// returned here would also pass Authorize.
func (e *Engine) AccessibleRoutes(ctx context.Context, p *principal.Principal) ([]*Descriptor, error) {
	var snap *principal.Snapshot
	if p != nil {
		resolved, err := e.resolver.Resolve(ctx, p)
		if err != nil {
			return nil, err
		}
		snap = resolved
	}

	var out []*Descriptor
	for _, route := range e.table.routes {
		if route.Public() || (snap != nil && e.IsAuthorized(snap, route)) {
			out = append(out, route)
		}
	}

	if e.metrics != nil {
		e.metrics.MenuRoutesReturned.Observe(float64(len(out)))
	}
	return out, nil
}

// Authorize matches the path and checks the principal's authority over the
// matched route. A nil principal is an unauthenticated visitor and may
// reach public routes only. Both denial outcomes redirect to the denial
// path; audit records them as distinct event types.
func (e *Engine) Authorize(ctx context.Context, p *principal.Principal, path string) (Decision, error) {
	start := time.Now()

	route, ok := e.Match(path)
	if !ok {
		e.observe(route, OutcomeNotFound, start)
		e.logger.WithFields(map[string]interface{}{
			"path": path,
		}).Info("navigation to unknown path")
		e.auditDenial(ctx, audit.EventTypeRouteNotFound, p, path, "")
		return Decision{Outcome: OutcomeNotFound, Redirect: e.denialPath}, nil
	}

	if route.Public() {
		e.observe(route, OutcomeAllowed, start)
		return Decision{Outcome: OutcomeAllowed, Route: route}, nil
	}

	if p == nil {
		e.observe(route, OutcomeDenied, start)
		e.auditDenial(ctx, audit.EventTypeRouteDenied, nil, path, route.Key)
		return Decision{Outcome: OutcomeDenied, Route: route, Redirect: e.denialPath}, nil
	}

	snap, err := e.resolver.Resolve(ctx, p)
	if err != nil {
		return Decision{}, err
	}

	if !e.IsAuthorized(snap, route) {
		e.observe(route, OutcomeDenied, start)
		e.logger.WithFields(map[string]interface{}{
			"path":      path,
			"route_key": route.Key,
			"user_id":   p.UserID,
		}).Warn("navigation denied")
		e.auditDenial(ctx, audit.EventTypeRouteDenied, p, path, route.Key)
		return Decision{Outcome: OutcomeDenied, Route: route, Redirect: e.denialPath}, nil
	}

	e.observe(route, OutcomeAllowed, start)
	return Decision{Outcome: OutcomeAllowed, Route: route}, nil
}

func (e *Engine) observe(route *Descriptor, outcome Outcome, start time.Time) {
	if e.metrics == nil {
		return
	}
	portal := "none"
	if route != nil {
		portal = string(route.Portal)
	}
	e.metrics.ObserveAuthzDecision(portal, string(outcome), time.Since(start))
}

func (e *Engine) auditDenial(ctx context.Context, eventType audit.EventType, p *principal.Principal, path, routeKey string) {
	var userID *int64
	var tenantID *string
	if p != nil {
		userID = &p.UserID
		tenantID = p.TenantID
	}
	if err := audit.RouteDecision(ctx, eventType, userID, tenantID, path, routeKey); err != nil {
		e.logger.WithError(err).Error("failed to record audit event")
	}
}
