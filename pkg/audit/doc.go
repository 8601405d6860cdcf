// Package audit records security-relevant events: logins, role changes,
// and route authorization denials.
//
// Denied navigations come in two flavors that look identical to the user
// (both redirect to the access-denied page) but are recorded as distinct
// event types: authz.route_denied means the principal lacked authority over
// a real route, authz.route_not_found means the path matched nothing. The
// first is a permission gap worth reviewing; the second is a stale link or
// a probe.
//
// Loggers write to PostgreSQL, to a rotating JSON-lines file, or to both
// via MultiLogger. Handlers reach the logger through the request context.
package audit
