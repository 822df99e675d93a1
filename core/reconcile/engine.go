package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PlannedUpdate is a stored record whose attributes drifted from the device.
type PlannedUpdate struct {
	Entity  Entity
	LocalID int64
	Changes []string
}

// Plan is the computed difference between the device and the store for one type.
// It holds no store handle and is discarded after Apply.
type Plan struct {
	Type EntityType

	// ToCreate holds device entities with no stored counterpart, ascending by ExternalID.
	ToCreate []Entity

	// ToUpdate holds drifted entities, ascending by ExternalID.
	ToUpdate []PlannedUpdate

	// Unchanged counts entities whose stored attributes already match.
	Unchanged int

	// Total counts distinct ExternalIDs observed on the device.
	Total int

	Warnings []string
}

// Reconciler converges the store to the device for one entity type at a time.
// It is stateless between calls and safe for concurrent use.
type Reconciler struct {
	source  Source
	gateway Gateway
	logger  *zap.Logger
}

// NewReconciler creates a reconciler. A nil logger disables logging.
func NewReconciler(source Source, gateway Gateway, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{source: source, gateway: gateway, logger: logger}
}

// Reconcile plans and applies one entity type. The report is always populated;
// the returned error is the type level failure, if any, and is classified with Classify.
func (r *Reconciler) Reconcile(ctx context.Context, t EntityType, dryRun bool) (*TypeReport, error) {
	start := time.Now()

	plan, err := r.Plan(ctx, t)
	if err != nil {
		report := &TypeReport{
			Type:       t,
			Status:     TypeFailed,
			Entries:    []Entry{},
			Error:      err.Error(),
			DryRun:     dryRun,
			DurationMS: time.Since(start).Milliseconds(),
		}
		r.logger.Error("Reconcile failed",
			zap.String("type", string(t)),
			zap.String("class", Classify(err).String()),
			zap.Error(err),
		)
		return report, err
	}

	var report *TypeReport
	if dryRun {
		report = plan.Preview()
	} else {
		report = r.Apply(ctx, plan)
	}
	report.DurationMS = time.Since(start).Milliseconds()

	r.logger.Info("Reconciled",
		zap.String("type", string(t)),
		zap.String("status", string(report.Status)),
		zap.Int("total", report.Total),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Bool("dry_run", dryRun),
	)
	return report, nil
}

// Plan loads the device collection and the stored snapshot concurrently and
// partitions the device entities into creates, updates and unchanged.
// Store rows missing from the device are ignored.
func (r *Reconciler) Plan(ctx context.Context, t EntityType) (*Plan, error) {
	var (
		entities  []Entity
		existing  map[int64]Record
		deviceErr error
		storeErr  error
		wg        sync.WaitGroup
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		entities, deviceErr = r.source.Fetch(ctx, t)
	}()

	go func() {
		defer wg.Done()
		existing, storeErr = r.gateway.FetchExisting(ctx, t)
	}()

	wg.Wait()

	if deviceErr != nil {
		if Classify(deviceErr) == ClassStore && ctx.Err() == nil && !isContextErr(deviceErr) {
			deviceErr = fmt.Errorf("%w: %v", ErrDeviceUnreachable, deviceErr)
		}
		return nil, fmt.Errorf("fetch %s from device: %w", t, deviceErr)
	}
	if storeErr != nil {
		return nil, fmt.Errorf("load stored %s: %w", t, storeErr)
	}

	latest, warnings := dedupe(entities)

	plan := &Plan{
		Type:     t,
		Total:    len(latest),
		Warnings: warnings,
	}

	for _, id := range sortedKeys(latest) {
		entity := latest[id]
		stored, ok := existing[id]
		if !ok {
			plan.ToCreate = append(plan.ToCreate, entity)
			continue
		}
		if changes := entity.Attributes.Diff(stored.Attributes); len(changes) > 0 {
			plan.ToUpdate = append(plan.ToUpdate, PlannedUpdate{
				Entity:  entity,
				LocalID: stored.LocalID,
				Changes: changes,
			})
			continue
		}
		plan.Unchanged++
	}

	return plan, nil
}

// Apply executes a plan: creates first, then updates, each in ascending ExternalID order.
// Cancellation of ctx is ignored so that a started type always finishes its writes.
// Per-record failures are collected in the report and never stop the type.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan) *TypeReport {
	ctx = context.WithoutCancel(ctx)

	report := newTypeReport(plan)
	report.Unchanged = plan.Unchanged

	for _, entity := range plan.ToCreate {
		r.applyCreate(ctx, plan.Type, entity, report)
	}

	for _, upd := range plan.ToUpdate {
		r.applyUpdate(ctx, plan.Type, upd, report)
	}

	report.Status = statusOf(report)
	return report
}

func (r *Reconciler) applyCreate(ctx context.Context, t EntityType, entity Entity, report *TypeReport) {
	label := entity.Attributes.Label()

	localID, err := r.gateway.Create(ctx, t, entity.ExternalID, entity.Attributes)
	if err == nil {
		report.Created++
		report.Entries = append(report.Entries, Entry{
			ExternalID: entity.ExternalID,
			LocalID:    localID,
			Label:      label,
			Action:     ActionCreated,
		})
		return
	}

	if !errors.Is(err, ErrDuplicateExternalID) {
		r.fail(t, entity.ExternalID, label, fmt.Errorf("create: %w", err), report)
		return
	}

	// Another pass inserted the row after our snapshot was taken.
	stored, err := r.gateway.FetchOne(ctx, t, entity.ExternalID)
	if err != nil {
		r.fail(t, entity.ExternalID, label, fmt.Errorf("refetch after duplicate create: %w", err), report)
		return
	}

	report.Warnings = append(report.Warnings,
		fmt.Sprintf("external_id %d was created concurrently; matched local_id %d", entity.ExternalID, stored.LocalID))

	changes := entity.Attributes.Diff(stored.Attributes)
	if len(changes) == 0 {
		report.Unchanged++
		return
	}

	r.applyUpdate(ctx, t, PlannedUpdate{Entity: entity, LocalID: stored.LocalID, Changes: changes}, report)
}

func (r *Reconciler) applyUpdate(ctx context.Context, t EntityType, upd PlannedUpdate, report *TypeReport) {
	label := upd.Entity.Attributes.Label()

	if err := r.gateway.Update(ctx, t, upd.LocalID, upd.Entity.Attributes); err != nil {
		r.fail(t, upd.Entity.ExternalID, label, fmt.Errorf("update local_id %d: %w", upd.LocalID, err), report)
		return
	}

	report.Updated++
	report.Entries = append(report.Entries, Entry{
		ExternalID: upd.Entity.ExternalID,
		LocalID:    upd.LocalID,
		Label:      label,
		Action:     ActionUpdated,
		Changes:    upd.Changes,
	})
}

func (r *Reconciler) fail(t EntityType, externalID int64, label string, err error, report *TypeReport) {
	report.Failed++
	report.Failures = append(report.Failures, Failure{
		ExternalID: externalID,
		Label:      label,
		Error:      err.Error(),
	})
	r.logger.Warn("Record failed",
		zap.String("type", string(t)),
		zap.Int64("external_id", externalID),
		zap.Error(err),
	)
}

// Preview reports what Apply would do without writing anything.
// Planned creates carry no LocalID.
func (p *Plan) Preview() *TypeReport {
	report := newTypeReport(p)
	report.DryRun = true
	report.Unchanged = p.Unchanged
	report.Created = len(p.ToCreate)
	report.Updated = len(p.ToUpdate)

	for _, entity := range p.ToCreate {
		report.Entries = append(report.Entries, Entry{
			ExternalID: entity.ExternalID,
			Label:      entity.Attributes.Label(),
			Action:     ActionCreated,
		})
	}
	for _, upd := range p.ToUpdate {
		report.Entries = append(report.Entries, Entry{
			ExternalID: upd.Entity.ExternalID,
			LocalID:    upd.LocalID,
			Label:      upd.Entity.Attributes.Label(),
			Action:     ActionUpdated,
			Changes:    upd.Changes,
		})
	}

	report.Status = TypeSuccess
	return report
}

func newTypeReport(p *Plan) *TypeReport {
	report := &TypeReport{
		Type:    p.Type,
		Total:   p.Total,
		Entries: make([]Entry, 0, len(p.ToCreate)+len(p.ToUpdate)),
	}
	if len(p.Warnings) > 0 {
		report.Warnings = append(report.Warnings, p.Warnings...)
	}
	return report
}

func statusOf(report *TypeReport) TypeStatus {
	if report.Failed > 0 {
		return TypeCompletedWithErrors
	}
	return TypeSuccess
}

// dedupe keeps the last entity seen for each ExternalID and returns one
// warning per duplicated id.
func dedupe(entities []Entity) (map[int64]Entity, []string) {
	latest := make(map[int64]Entity, len(entities))
	seen := make(map[int64]int, len(entities))

	for _, entity := range entities {
		latest[entity.ExternalID] = entity
		seen[entity.ExternalID]++
	}

	var warnings []string
	for _, id := range sortedKeys(seen) {
		if n := seen[id]; n > 1 {
			warnings = append(warnings,
				fmt.Sprintf("external_id %d reported %d times by the device; kept the last occurrence", id, n))
		}
	}
	return latest, warnings
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
