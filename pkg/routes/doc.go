// Package routes holds the declarative route table and the engine that
// decides, for an authenticated principal, which routes are reachable.
//
// The table is built once at startup from portal groups concatenated in a
// fixed order; within the table, the first pattern matching a path wins.
// Because that makes declaration order a correctness contract, the builder
// fails construction when a parameterized route would shadow any route
// declared after it, instead of leaving the later route silently
// unreachable.
//
// One evaluation path serves both menu filtering (AccessibleRoutes) and
// enforcement (Authorize, or the Guard middleware). A route's authority
// list mixes role names and permission strings with OR semantics; an empty
// list admits any authenticated principal.
package routes
