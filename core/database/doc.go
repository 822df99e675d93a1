// Package database opens the relational store and inspects its schema.
//
// Connect supports MySQL (production) and SQLite (local runs and tests). Every
// connection is opened with TranslateError so callers can match unique key
// violations with gorm.ErrDuplicatedKey, and MySQL DSNs carry clientFoundRows
// so an UPDATE that rewrites identical values still reports a matched row.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns back the `migrate --check` command, which
// verifies that the mirrored tables carry the columns the sync engine writes.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return err
//	}
//
//	missing, err := database.MissingColumns(db, "portals", []string{"external_id", "name"})
package database
