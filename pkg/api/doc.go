// Package api assembles the portal's HTTP surface.
//
// # Handler groups
//
// Each concern gets its own handler struct with a RegisterRoutes method:
//
//   - AuthHandlers: the OIDC login flow and session lifecycle
//   - RoleHandlers: role listing, creation, and the edit session
//     open/toggle/save cycle
//   - AuthzHandlers: the menu endpoint and explicit path decision checks
//   - TenantHandlers: the platform-only tenant directory
//
// # Edit sessions
//
// Role edits are stateful on the server. Opening an edit returns a session
// id; toggle and save calls reference that id. Sessions are held in an
// expiring in-memory registry bound to the user who opened them, so an id
// leaking to another user is useless.
//
// # Middleware
//
// NewServer wraps the router with request id, logging, recovery, body
// limit, optional session authentication and tenant resolution. Handlers
// that need a principal enforce it themselves, which keeps public endpoints
// on the same router.
package api
