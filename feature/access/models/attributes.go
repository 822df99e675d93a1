package models

import (
	"fmt"
	"strconv"

	"access-sync/core/reconcile"
)

// Portal is a physical access point (an "area" on the device).
type Portal struct {
	Name string `json:"name"`
}

// Label implements reconcile.Attributes.
func (p Portal) Label() string { return p.Name }

// Diff implements reconcile.Attributes.
func (p Portal) Diff(stored reconcile.Attributes) []string {
	s, ok := stored.(Portal)
	if !ok {
		return kindMismatch(p, stored)
	}
	return diffField(nil, "name", p.Name, s.Name)
}

// User is a person enrolled on the device.
// BeginTime and EndTime are unix seconds; zero means unbounded.
type User struct {
	Name         string `json:"name"`
	Registration string `json:"registration"`
	BeginTime    int64  `json:"begin_time"`
	EndTime      int64  `json:"end_time"`
}

// Label implements reconcile.Attributes.
func (u User) Label() string { return u.Name }

// Diff implements reconcile.Attributes.
func (u User) Diff(stored reconcile.Attributes) []string {
	s, ok := stored.(User)
	if !ok {
		return kindMismatch(u, stored)
	}
	var out []string
	out = diffField(out, "name", u.Name, s.Name)
	out = diffField(out, "registration", u.Registration, s.Registration)
	out = diffField(out, "begin_time", u.BeginTime, s.BeginTime)
	out = diffField(out, "end_time", u.EndTime, s.EndTime)
	return out
}

// AccessRule grants or denies access; Type 1 is allow, 0 is deny.
type AccessRule struct {
	Name     string `json:"name"`
	Type     int    `json:"type"`
	Priority int    `json:"priority"`
}

// Label implements reconcile.Attributes.
func (r AccessRule) Label() string { return r.Name }

// Diff implements reconcile.Attributes.
func (r AccessRule) Diff(stored reconcile.Attributes) []string {
	s, ok := stored.(AccessRule)
	if !ok {
		return kindMismatch(r, stored)
	}
	var out []string
	out = diffField(out, "name", r.Name, s.Name)
	out = diffField(out, "type", r.Type, s.Type)
	out = diffField(out, "priority", r.Priority, s.Priority)
	return out
}

// TimeZone is a named schedule referenced by access rules.
type TimeZone struct {
	Name string `json:"name"`
}

// Label implements reconcile.Attributes.
func (z TimeZone) Label() string { return z.Name }

// Diff implements reconcile.Attributes.
func (z TimeZone) Diff(stored reconcile.Attributes) []string {
	s, ok := stored.(TimeZone)
	if !ok {
		return kindMismatch(z, stored)
	}
	return diffField(nil, "name", z.Name, s.Name)
}

// AccessLog is one access event recorded by the device.
type AccessLog struct {
	Time      int64  `json:"time"`
	Event     string `json:"event"`
	UserID    int64  `json:"user_id"`
	PortalID  int64  `json:"portal_id"`
	CardValue string `json:"card_value"`
}

// Label implements reconcile.Attributes.
func (l AccessLog) Label() string {
	return fmt.Sprintf("%s@%d", l.Event, l.Time)
}

// Diff implements reconcile.Attributes.
func (l AccessLog) Diff(stored reconcile.Attributes) []string {
	s, ok := stored.(AccessLog)
	if !ok {
		return kindMismatch(l, stored)
	}
	var out []string
	out = diffField(out, "time", l.Time, s.Time)
	out = diffField(out, "event", l.Event, s.Event)
	out = diffField(out, "user_id", l.UserID, s.UserID)
	out = diffField(out, "portal_id", l.PortalID, s.PortalID)
	out = diffField(out, "card_value", l.CardValue, s.CardValue)
	return out
}

// eventNames maps device event codes to readable names.
var eventNames = map[int]string{
	0: "access_granted",
	1: "access_denied",
	2: "unknown_user",
	3: "invalid_credential",
	4: "expired_access",
	5: "time_restriction",
	6: "door_forced",
	7: "door_left_open",
}

// EventName returns the readable name of a device event code.
func EventName(code int) string {
	if name, ok := eventNames[code]; ok {
		return name
	}
	return "unknown"
}

func diffField[T comparable](out []string, label string, device, store T) []string {
	if device == store {
		return out
	}
	return append(out, fmt.Sprintf("%s: device=%s store=%s", label, formatValue(device), formatValue(store)))
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}

func kindMismatch(device, stored reconcile.Attributes) []string {
	return []string{fmt.Sprintf("kind: device=%T store=%T", device, stored)}
}
