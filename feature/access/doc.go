// Package access mirrors the state of an iDFace access-control device into
// the relational store.
//
// The feature wires the device adapter (feature/access/device), the store
// gateway (feature/access/store) and the orchestrator from core/reconcile,
// then exposes passes over HTTP:
//
//	POST /sync                run a pass ({"types":[...],"dry_run":bool,"policy":"continue"})
//	POST /sync/:type          run a pass over one type (?dry_run=true)
//	GET  /sync/history        recent passes (?limit=N)
//	GET  /sync/history/:id    full report of one pass, database first, archive second
//	GET  /sync/status         device connectivity
//	GET  /sync/schema         missing tables or columns
//	GET  /entities/:type      mirrored rows ordered by external id (?limit=&offset=)
//
// Every finished pass is written to the sync_runs table and, with
// sync.archive_enabled, uploaded to object storage as JSON.
package access
