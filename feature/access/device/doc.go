// Package device converts iDFace object collections into canonical entities.
//
// Adapter implements reconcile.Source on top of any Loader (normally an
// idface.Client). Each entity type maps to one device collection:
//
//	portals      -> areas
//	users        -> users
//	access_rules -> access_rules
//	time_zones   -> time_zones
//	access_logs  -> access_logs
//
// Records are validated before conversion: a missing or malformed id or name
// fails the whole collection with reconcile.ErrDeviceProtocol. Values are never
// coerced into the expected type.
package device
