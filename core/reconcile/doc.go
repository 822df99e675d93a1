// Package reconcile mirrors device collections into a relational store.
//
// A pass is driven by the Orchestrator, which visits entity types in a fixed
// order (portals, users, access rules, time zones, access logs) and runs the
// Reconciler once per type.
//
// The Reconciler works in two steps:
//
// 1. Plan: the device collection and the stored snapshot are loaded
// concurrently, duplicate device ids are collapsed (last one wins, with a
// warning) and every device entity is classified as a create, an update or
// unchanged. Stored rows the device no longer reports are left alone.
//
// 2. Apply: creates run before updates, each in ascending ExternalID order. A
// create that loses a race against another pass (ErrDuplicateExternalID) is
// re-read and turned into an update or counted as unchanged. Record level
// failures are reported and never abort the type.
//
// # Failure handling
//
// Type level errors are grouped with Classify. Transport failures
// (ErrDeviceUnreachable, ErrDeviceAuth) and store failures stop the pass and
// mark the remaining types skipped. Protocol failures (ErrDeviceProtocol) fail
// only their type under PolicyContinue, or stop the pass under PolicyAbort.
//
// # Usage Example
//
//	rec := reconcile.NewReconciler(deviceAdapter, storeGateway, logger)
//	orch := reconcile.NewOrchestrator(rec, logger, reconcile.WithPolicy(reconcile.PolicyContinue))
//	report := orch.Run(ctx, reconcile.RunOptions{Types: []reconcile.EntityType{reconcile.TypePortals}})
package reconcile
