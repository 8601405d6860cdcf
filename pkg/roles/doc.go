// Package roles owns role lifecycle and tenant scoping for the portal.
//
// # Role kinds
//
// A role is either SYSTEM (no tenant, pre-seeded, visible to every
// principal) or TENANT (created by a tenant administrator, fixed to that
// tenant forever). Visibility is strict equality on tenant id. A platform
// user, with no tenant of its own, manages system roles only; tenant roles
// are opaque to it.
//
// # Editing flow
//
//	session, err := manager.LoadForEditing(ctx, viewer, roleID)
//	...
//	err = session.Toggle("shops.write", true) // cascades shops.all
//	...
//	saved, err := manager.Save(ctx, viewer, session)
//
// Save re-validates visibility and the tenant reference even though load
// already did: the role travelled through client-editable state in between.
// A save that would move the role to another tenant is always rejected, and
// only one save per session may be in flight at a time.
package roles
