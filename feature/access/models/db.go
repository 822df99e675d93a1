package models

import (
	"fmt"
	"time"

	"access-sync/core/reconcile"
)

// Row is implemented by every mirrored table.
// ExternalKey is the device identifier and is unique per table.
type Row interface {
	TableName() string
	LocalID() int64
	ExternalKey() int64
	SetExternalKey(id int64)
	Attributes() reconcile.Attributes
	// Assign copies attrs into the row; it fails when attrs has the wrong concrete type.
	Assign(attrs reconcile.Attributes) error
	// Columns returns the attribute columns written on update.
	Columns() map[string]any
}

// PortalRow represents the 'portals' table.
type PortalRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID int64     `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PortalRow) TableName() string { return "portals" }
func (r *PortalRow) LocalID() int64 { return r.ID }
func (r *PortalRow) ExternalKey() int64 { return r.ExternalID }
func (r *PortalRow) SetExternalKey(id int64) { r.ExternalID = id }
func (r *PortalRow) Attributes() reconcile.Attributes { return Portal{Name: r.Name} }
func (r *PortalRow) Columns() map[string]any { return map[string]any{"name": r.Name} }

func (r *PortalRow) Assign(attrs reconcile.Attributes) error {
	p, ok := attrs.(Portal)
	if !ok {
		return wrongKind(r, attrs)
	}
	r.Name = p.Name
	return nil
}

// UserRow represents the 'users' table.
type UserRow struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID   int64     `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Name         string    `gorm:"column:name;size:255;not null" json:"name"`
	Registration string    `gorm:"column:registration;size:64" json:"registration"`
	BeginTime    int64     `gorm:"column:begin_time" json:"begin_time"`
	EndTime      int64     `gorm:"column:end_time" json:"end_time"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UserRow) TableName() string { return "users" }
func (r *UserRow) LocalID() int64 { return r.ID }
func (r *UserRow) ExternalKey() int64 { return r.ExternalID }
func (r *UserRow) SetExternalKey(id int64) { r.ExternalID = id }

func (r *UserRow) Attributes() reconcile.Attributes {
	return User{Name: r.Name, Registration: r.Registration, BeginTime: r.BeginTime, EndTime: r.EndTime}
}

func (r *UserRow) Columns() map[string]any {
	return map[string]any{
		"name":         r.Name,
		"registration": r.Registration,
		"begin_time":   r.BeginTime,
		"end_time":     r.EndTime,
	}
}

func (r *UserRow) Assign(attrs reconcile.Attributes) error {
	u, ok := attrs.(User)
	if !ok {
		return wrongKind(r, attrs)
	}
	r.Name, r.Registration, r.BeginTime, r.EndTime = u.Name, u.Registration, u.BeginTime, u.EndTime
	return nil
}

// AccessRuleRow represents the 'access_rules' table.
type AccessRuleRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID int64     `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	Type       int       `gorm:"column:type" json:"type"`
	Priority   int       `gorm:"column:priority" json:"priority"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AccessRuleRow) TableName() string { return "access_rules" }
func (r *AccessRuleRow) LocalID() int64 { return r.ID }
func (r *AccessRuleRow) ExternalKey() int64 { return r.ExternalID }
func (r *AccessRuleRow) SetExternalKey(id int64) { r.ExternalID = id }

func (r *AccessRuleRow) Attributes() reconcile.Attributes {
	return AccessRule{Name: r.Name, Type: r.Type, Priority: r.Priority}
}

func (r *AccessRuleRow) Columns() map[string]any {
	return map[string]any{"name": r.Name, "type": r.Type, "priority": r.Priority}
}

func (r *AccessRuleRow) Assign(attrs reconcile.Attributes) error {
	a, ok := attrs.(AccessRule)
	if !ok {
		return wrongKind(r, attrs)
	}
	r.Name, r.Type, r.Priority = a.Name, a.Type, a.Priority
	return nil
}

// TimeZoneRow represents the 'time_zones' table.
type TimeZoneRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID int64     `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (TimeZoneRow) TableName() string { return "time_zones" }
func (r *TimeZoneRow) LocalID() int64 { return r.ID }
func (r *TimeZoneRow) ExternalKey() int64 { return r.ExternalID }
func (r *TimeZoneRow) SetExternalKey(id int64) { r.ExternalID = id }
func (r *TimeZoneRow) Attributes() reconcile.Attributes { return TimeZone{Name: r.Name} }
func (r *TimeZoneRow) Columns() map[string]any { return map[string]any{"name": r.Name} }

func (r *TimeZoneRow) Assign(attrs reconcile.Attributes) error {
	z, ok := attrs.(TimeZone)
	if !ok {
		return wrongKind(r, attrs)
	}
	r.Name = z.Name
	return nil
}

// AccessLogRow represents the 'access_logs' table.
type AccessLogRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID int64     `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	Time       int64     `gorm:"column:time;index" json:"time"`
	Event      string    `gorm:"column:event;size:32" json:"event"`
	UserID     int64     `gorm:"column:user_id" json:"user_id"`
	PortalID   int64     `gorm:"column:portal_id" json:"portal_id"`
	CardValue  string    `gorm:"column:card_value;size:64" json:"card_value"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AccessLogRow) TableName() string { return "access_logs" }
func (r *AccessLogRow) LocalID() int64 { return r.ID }
func (r *AccessLogRow) ExternalKey() int64 { return r.ExternalID }
func (r *AccessLogRow) SetExternalKey(id int64) { r.ExternalID = id }

func (r *AccessLogRow) Attributes() reconcile.Attributes {
	return AccessLog{Time: r.Time, Event: r.Event, UserID: r.UserID, PortalID: r.PortalID, CardValue: r.CardValue}
}

func (r *AccessLogRow) Columns() map[string]any {
	return map[string]any{
		"time":       r.Time,
		"event":      r.Event,
		"user_id":    r.UserID,
		"portal_id":  r.PortalID,
		"card_value": r.CardValue,
	}
}

func (r *AccessLogRow) Assign(attrs reconcile.Attributes) error {
	l, ok := attrs.(AccessLog)
	if !ok {
		return wrongKind(r, attrs)
	}
	r.Time, r.Event, r.UserID, r.PortalID, r.CardValue = l.Time, l.Event, l.UserID, l.PortalID, l.CardValue
	return nil
}

// SyncRun represents the 'sync_runs' table: one row per finished pass.
type SyncRun struct {
	ID         string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Status     string    `gorm:"column:status;size:32;index" json:"status"`
	Types      string    `gorm:"column:types;size:255" json:"types"`
	DryRun     bool      `gorm:"column:dry_run" json:"dry_run"`
	Cancelled  bool      `gorm:"column:cancelled" json:"cancelled"`
	Created    int       `gorm:"column:created" json:"created"`
	Updated    int       `gorm:"column:updated" json:"updated"`
	Unchanged  int       `gorm:"column:unchanged" json:"unchanged"`
	Failed     int       `gorm:"column:failed" json:"failed"`
	Error      string    `gorm:"column:error;type:text" json:"error,omitempty"`
	StartedAt  time.Time `gorm:"column:started_at;index" json:"started_at"`
	FinishedAt time.Time `gorm:"column:finished_at" json:"finished_at"`
	DurationMS int64     `gorm:"column:duration_ms" json:"duration_ms"`
	Report     string    `gorm:"column:report;type:text" json:"-"`
}

// TableName overrides the table name for SyncRun.
func (SyncRun) TableName() string {
	return "sync_runs"
}

// AllTables lists every table managed by this feature, for migrations.
func AllTables() []any {
	return []any{&PortalRow{}, &UserRow{}, &AccessRuleRow{}, &TimeZoneRow{}, &AccessLogRow{}, &SyncRun{}}
}

func wrongKind(row Row, attrs reconcile.Attributes) error {
	return fmt.Errorf("%s: cannot assign attributes of kind %T", row.TableName(), attrs)
}
