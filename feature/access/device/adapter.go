package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"access-sync/core/reconcile"
	"access-sync/core/utils"
	"access-sync/feature/access/models"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Loader fetches one raw object collection from the device.
type Loader interface {
	LoadObjects(ctx context.Context, object string) ([]byte, error)
}

// objectNames maps entity types to the device collection names.
var objectNames = map[reconcile.EntityType]string{
	reconcile.TypePortals:     "areas",
	reconcile.TypeUsers:       "users",
	reconcile.TypeAccessRules: "access_rules",
	reconcile.TypeTimeZones:   "time_zones",
	reconcile.TypeAccessLogs:  "access_logs",
}

// ObjectName returns the device collection name for t.
func ObjectName(t reconcile.EntityType) (string, bool) {
	name, ok := objectNames[t]
	return name, ok
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// recordValidator returns the shared validator; field errors use json names.
func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Adapter converts raw device collections into canonical entities.
type Adapter struct {
	loader   Loader
	validate *validator.Validate
}

// NewAdapter creates an adapter over loader.
func NewAdapter(loader Loader) *Adapter {
	return &Adapter{loader: loader, validate: recordValidator()}
}

// Fetch implements reconcile.Source. Records missing a required field, or
// carrying a malformed one, fail the whole collection with ErrDeviceProtocol.
func (a *Adapter) Fetch(ctx context.Context, t reconcile.EntityType) ([]reconcile.Entity, error) {
	object, ok := objectNames[t]
	if !ok {
		return nil, fmt.Errorf("%w: no device collection for type %q", reconcile.ErrDeviceProtocol, t)
	}

	body, err := a.loader.LoadObjects(ctx, object)
	if err != nil {
		return nil, err
	}

	switch t {
	case reconcile.TypePortals:
		return decode(a.validate, body, object, rawArea.entity)
	case reconcile.TypeUsers:
		return decode(a.validate, body, object, rawUser.entity)
	case reconcile.TypeAccessRules:
		return decode(a.validate, body, object, rawAccessRule.entity)
	case reconcile.TypeTimeZones:
		return decode(a.validate, body, object, rawTimeZone.entity)
	default:
		return decode(a.validate, body, object, rawAccessLog.entity)
	}
}

type rawArea struct {
	ID   *int64  `json:"id" validate:"required,gt=0"`
	Name *string `json:"name" validate:"required"`
}

func (r rawArea) entity() reconcile.Entity {
	return reconcile.Entity{ExternalID: *r.ID, Attributes: models.Portal{Name: *r.Name}}
}

type rawUser struct {
	ID           *int64  `json:"id" validate:"required,gt=0"`
	Name         *string `json:"name" validate:"required"`
	Registration *string `json:"registration"`
	BeginTime    *int64  `json:"begin_time"`
	EndTime      *int64  `json:"end_time"`
}

func (r rawUser) entity() reconcile.Entity {
	user := models.User{Name: *r.Name}
	if r.Registration != nil {
		user.Registration = *r.Registration
	}
	if r.BeginTime != nil {
		user.BeginTime = *r.BeginTime
	}
	if r.EndTime != nil {
		user.EndTime = *r.EndTime
	}
	return reconcile.Entity{ExternalID: *r.ID, Attributes: user}
}

type rawAccessRule struct {
	ID       *int64  `json:"id" validate:"required,gt=0"`
	Name     *string `json:"name" validate:"required"`
	Type     *int    `json:"type"`
	Priority *int    `json:"priority"`
}

func (r rawAccessRule) entity() reconcile.Entity {
	rule := models.AccessRule{Name: *r.Name}
	if r.Type != nil {
		rule.Type = *r.Type
	}
	if r.Priority != nil {
		rule.Priority = *r.Priority
	}
	return reconcile.Entity{ExternalID: *r.ID, Attributes: rule}
}

type rawTimeZone struct {
	ID   *int64  `json:"id" validate:"required,gt=0"`
	Name *string `json:"name" validate:"required"`
}

func (r rawTimeZone) entity() reconcile.Entity {
	return reconcile.Entity{ExternalID: *r.ID, Attributes: models.TimeZone{Name: *r.Name}}
}

// rawAccessLog has no name; the event time stands in as the required display field.
type rawAccessLog struct {
	ID        *int64 `json:"id" validate:"required,gt=0"`
	Time      *int64 `json:"time" validate:"required"`
	Event     any    `json:"event"`
	UserID    *int64 `json:"user_id"`
	PortalID  *int64 `json:"portal_id"`
	CardValue any    `json:"card_value"`
}

func (r rawAccessLog) entity() reconcile.Entity {
	log := models.AccessLog{
		Time:      *r.Time,
		Event:     models.EventName(int(utils.ToInt64(r.Event))),
		CardValue: utils.ToString(r.CardValue),
	}
	if r.UserID != nil {
		log.UserID = *r.UserID
	}
	if r.PortalID != nil {
		log.PortalID = *r.PortalID
	}
	return reconcile.Entity{ExternalID: *r.ID, Attributes: log}
}

// decode unwraps {"<object>": [...]}, validates every record and converts it.
func decode[R any](v *validator.Validate, body []byte, object string, convert func(R) reconcile.Entity) ([]reconcile.Entity, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", reconcile.ErrDeviceProtocol, object, err)
	}

	raw, ok := envelope[object]
	if !ok {
		return nil, fmt.Errorf("%w: response has no %q collection", reconcile.ErrDeviceProtocol, object)
	}

	var records []R
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode %s records: %v", reconcile.ErrDeviceProtocol, object, err)
	}

	entities := make([]reconcile.Entity, 0, len(records))
	for i, rec := range records {
		if err := v.Struct(rec); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %s", reconcile.ErrDeviceProtocol, object, i, describe(err))
		}
		entities = append(entities, convert(rec))
	}
	return entities, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return fmt.Sprintf("missing required field %q", fe.Field())
	}
	return fmt.Sprintf("field %q failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
}
