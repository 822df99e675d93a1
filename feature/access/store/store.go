package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"access-sync/core/database"
	"access-sync/core/reconcile"
	"access-sync/feature/access/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// table is the per entity type access to one mirrored table.
type table interface {
	newRow() models.Row
	fetchAll(db *gorm.DB, limit, offset int) ([]models.Row, error)
	fetchOne(db *gorm.DB, externalID int64) (models.Row, error)
}

type tableOf[T any, P interface {
	*T
	models.Row
}] struct{}

func (tableOf[T, P]) newRow() models.Row {
	return P(new(T))
}

func (tableOf[T, P]) fetchAll(db *gorm.DB, limit, offset int) ([]models.Row, error) {
	var rows []T
	q := db.Order("external_id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Row, len(rows))
	for i := range rows {
		out[i] = P(&rows[i])
	}
	return out, nil
}

func (tableOf[T, P]) fetchOne(db *gorm.DB, externalID int64) (models.Row, error) {
	var row T
	if err := db.Where("external_id = ?", externalID).Take(&row).Error; err != nil {
		return nil, err
	}
	return P(&row), nil
}

var tables = map[reconcile.EntityType]table{
	reconcile.TypePortals:     tableOf[models.PortalRow, *models.PortalRow]{},
	reconcile.TypeUsers:       tableOf[models.UserRow, *models.UserRow]{},
	reconcile.TypeAccessRules: tableOf[models.AccessRuleRow, *models.AccessRuleRow]{},
	reconcile.TypeTimeZones:   tableOf[models.TimeZoneRow, *models.TimeZoneRow]{},
	reconcile.TypeAccessLogs:  tableOf[models.AccessLogRow, *models.AccessLogRow]{},
}

// Gateway implements reconcile.Gateway on gorm.
// Uniqueness of external_id is enforced by the database; the gateway holds no locks.
type Gateway struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a gateway. A nil logger disables logging.
func New(db *gorm.DB, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{db: db, logger: logger}
}

func tableFor(t reconcile.EntityType) (table, error) {
	tbl, ok := tables[t]
	if !ok {
		return nil, fmt.Errorf("no table for entity type %q", t)
	}
	return tbl, nil
}

// FetchExisting implements reconcile.Gateway. All rows are read inside one
// read-only transaction.
func (g *Gateway) FetchExisting(ctx context.Context, t reconcile.EntityType) (map[int64]reconcile.Record, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	var rows []models.Row
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = tbl.fetchAll(tx, 0, 0)
		return err
	}, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("read %s snapshot: %w", t, err)
	}

	out := make(map[int64]reconcile.Record, len(rows))
	for _, row := range rows {
		out[row.ExternalKey()] = reconcile.Record{LocalID: row.LocalID(), Attributes: row.Attributes()}
	}
	return out, nil
}

// FetchOne implements reconcile.Gateway.
func (g *Gateway) FetchOne(ctx context.Context, t reconcile.EntityType, externalID int64) (reconcile.Record, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return reconcile.Record{}, err
	}

	row, err := tbl.fetchOne(g.db.WithContext(ctx), externalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reconcile.Record{}, fmt.Errorf("%s external_id %d: %w", t, externalID, reconcile.ErrNotFound)
	}
	if err != nil {
		return reconcile.Record{}, fmt.Errorf("read %s external_id %d: %w", t, externalID, err)
	}
	return reconcile.Record{LocalID: row.LocalID(), Attributes: row.Attributes()}, nil
}

// Create implements reconcile.Gateway.
func (g *Gateway) Create(ctx context.Context, t reconcile.EntityType, externalID int64, attrs reconcile.Attributes) (int64, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return 0, err
	}

	row := tbl.newRow()
	row.SetExternalKey(externalID)
	if err := row.Assign(attrs); err != nil {
		return 0, err
	}

	if err := g.db.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicate(err) {
			return 0, fmt.Errorf("%s external_id %d: %w", t, externalID, reconcile.ErrDuplicateExternalID)
		}
		return 0, fmt.Errorf("insert %s external_id %d: %w", t, externalID, err)
	}

	g.logger.Debug("Row created",
		zap.String("table", row.TableName()),
		zap.Int64("external_id", externalID),
		zap.Int64("local_id", row.LocalID()),
	)
	return row.LocalID(), nil
}

// Update implements reconcile.Gateway.
func (g *Gateway) Update(ctx context.Context, t reconcile.EntityType, localID int64, attrs reconcile.Attributes) error {
	tbl, err := tableFor(t)
	if err != nil {
		return err
	}

	row := tbl.newRow()
	if err := row.Assign(attrs); err != nil {
		return err
	}

	res := g.db.WithContext(ctx).Model(tbl.newRow()).Where("id = ?", localID).Updates(row.Columns())
	if res.Error != nil {
		return fmt.Errorf("update %s local_id %d: %w", t, localID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s local_id %d: %w", t, localID, reconcile.ErrNotFound)
	}
	return nil
}

// List returns stored rows of t ordered by external id. A limit of zero returns every row.
func (g *Gateway) List(ctx context.Context, t reconcile.EntityType, limit, offset int) ([]models.Row, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	rows, err := tbl.fetchAll(g.db.WithContext(ctx), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}
	return rows, nil
}

// Migrate creates or updates every table used by the sync engine.
func (g *Gateway) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(models.AllTables()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// requiredColumns lists the columns each mirrored table must carry.
var requiredColumns = map[string][]string{
	"portals":      {"id", "external_id", "name"},
	"users":        {"id", "external_id", "name", "registration", "begin_time", "end_time"},
	"access_rules": {"id", "external_id", "name", "type", "priority"},
	"time_zones":   {"id", "external_id", "name"},
	"access_logs":  {"id", "external_id", "time", "event", "user_id", "portal_id", "card_value"},
	"sync_runs":    {"id", "status", "started_at", "finished_at", "report"},
}

// CheckSchema returns, per table, the required columns that are missing.
// An empty result means the schema is usable.
func (g *Gateway) CheckSchema() (map[string][]string, error) {
	problems := make(map[string][]string)
	for name, cols := range requiredColumns {
		missing, err := database.MissingColumns(g.db, name, cols)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			problems[name] = missing
		}
	}
	return problems, nil
}

// isDuplicate reports unique key violations. gorm translates them to
// ErrDuplicatedKey when TranslateError is on; the message checks cover
// connections opened without it.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate entry")
}
