package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// EntityType selects one device collection (portals, users, ...).
type EntityType string

const (
	// TypePortals mirrors the device areas.
	TypePortals EntityType = "portals"
	// TypeUsers mirrors the device users.
	TypeUsers EntityType = "users"
	// TypeAccessRules mirrors the device access rules.
	TypeAccessRules EntityType = "access_rules"
	// TypeTimeZones mirrors the device time zones.
	TypeTimeZones EntityType = "time_zones"
	// TypeAccessLogs mirrors the device access log entries.
	TypeAccessLogs EntityType = "access_logs"
)

// Order is the fixed order in which a pass visits entity types.
// Rules and time zones may refer to portals, so portals come first.
var Order = []EntityType{TypePortals, TypeUsers, TypeAccessRules, TypeTimeZones, TypeAccessLogs}

// ParseEntityType converts a user supplied name into an EntityType.
// Dashes are accepted in place of underscores ("access-rules").
func ParseEntityType(s string) (EntityType, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, t := range Order {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// ParseEntityTypes parses a list of names, skipping empty entries.
func ParseEntityTypes(names []string) ([]EntityType, error) {
	types := make([]EntityType, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		t, err := ParseEntityType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// Attributes is the mutable part of a canonical entity.
// Each entity type has exactly one concrete implementation.
type Attributes interface {
	// Label returns a human readable name for reports.
	Label() string

	// Diff compares device attributes (the receiver) against the stored ones and
	// returns one description per differing field, e.g. `name: device="a" store="b"`.
	// An empty result means the two are structurally equal.
	Diff(stored Attributes) []string
}

// Entity is the canonical in-memory form of one device record.
// It only lives for the duration of a single pass.
type Entity struct {
	// ExternalID is the device assigned identifier; the join key with the store.
	ExternalID int64

	// Attributes holds the entity specific fields.
	Attributes Attributes
}

// Record is the store side of an ExternalID mapping.
type Record struct {
	// LocalID is the store assigned primary key.
	LocalID int64

	// Attributes holds the persisted fields.
	Attributes Attributes
}

// Action is the change recorded for a report entry.
type Action string

const (
	// ActionCreated means a new store row was inserted.
	ActionCreated Action = "created"
	// ActionUpdated means an existing store row was overwritten.
	ActionUpdated Action = "updated"
)

// Entry describes one created or updated entity.
type Entry struct {
	ExternalID int64  `json:"external_id"`
	LocalID    int64  `json:"local_id"`
	Label      string `json:"label"`
	Action     Action `json:"action"`
	// Changes lists the fields that drifted; empty for creates.
	Changes []string `json:"changes,omitempty"`
}

// Failure describes one entity that could not be written.
type Failure struct {
	ExternalID int64  `json:"external_id"`
	Label      string `json:"label"`
	Error      string `json:"error"`
}

// TypeStatus is the outcome of one entity type within a pass.
type TypeStatus string

const (
	// TypeSuccess means every record converged.
	TypeSuccess TypeStatus = "success"
	// TypeCompletedWithErrors means the type ran to the end but some records failed.
	TypeCompletedWithErrors TypeStatus = "completed_with_errors"
	// TypeFailed means the type aborted before it could reconcile.
	TypeFailed TypeStatus = "failed"
	// TypeSkipped means the pass stopped before reaching this type.
	TypeSkipped TypeStatus = "skipped"
)

// TypeReport is the outcome of reconciling one entity type.
type TypeReport struct {
	Type   EntityType `json:"type"`
	Status TypeStatus `json:"status"`

	// Total is the number of distinct ExternalIDs observed on the device.
	Total     int `json:"total"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`

	// Entries lists creates then updates, each in ascending ExternalID order.
	Entries  []Entry   `json:"entries"`
	Failures []Failure `json:"failures,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`

	// Error holds the type level failure, if any.
	Error string `json:"error,omitempty"`

	DryRun     bool  `json:"dry_run,omitempty"`
	DurationMS int64 `json:"duration_ms"`
}

// PassStatus is the overall outcome of a reconciliation pass.
type PassStatus string

const (
	// PassSuccess means every type fully succeeded.
	PassSuccess PassStatus = "success"
	// PassPartialSuccess means the pass completed but some records or types failed.
	PassPartialSuccess PassStatus = "partial_success"
	// PassFailed means a fatal error stopped the pass before completion.
	PassFailed PassStatus = "failed"
)

// PassReport aggregates the type reports of one pass.
type PassReport struct {
	ID         string       `json:"id"`
	Status     PassStatus   `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DryRun     bool         `json:"dry_run,omitempty"`
	Cancelled  bool         `json:"cancelled,omitempty"`
	Error      string       `json:"error,omitempty"`
	Types      []TypeReport `json:"types"`
}

// Totals sums the per type counters.
func (p *PassReport) Totals() (created, updated, unchanged, failed int) {
	for _, t := range p.Types {
		created += t.Created
		updated += t.Updated
		unchanged += t.Unchanged
		failed += t.Failed
	}
	return created, updated, unchanged, failed
}

// Type returns the report for t, if the pass visited it.
func (p *PassReport) Type(t EntityType) (TypeReport, bool) {
	for _, r := range p.Types {
		if r.Type == t {
			return r, true
		}
	}
	return TypeReport{}, false
}

// Policy controls what a pass does after a type level protocol error.
type Policy string

const (
	// PolicyContinue records the failed type and moves on to the next one.
	PolicyContinue Policy = "continue"
	// PolicyAbort stops the whole pass.
	PolicyAbort Policy = "abort"
)

// ParsePolicy validates a policy name. Empty means PolicyContinue.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyContinue:
		return PolicyContinue, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown protocol error policy %q (want continue or abort)", s)
	}
}
