// Package store is the gorm implementation of reconcile.Gateway for the
// mirrored tables, plus the sync_runs pass history.
//
// Uniqueness of external_id is left to the database: a concurrent insert
// surfaces as reconcile.ErrDuplicateExternalID and the reconciler falls back
// to the existing row.
package store
