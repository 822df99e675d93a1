package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunOptions controls a single pass.
type RunOptions struct {
	// Types limits the pass to these entity types. Empty means the orchestrator defaults.
	Types []EntityType

	// DryRun plans every type without writing.
	DryRun bool

	// Policy overrides the orchestrator policy for protocol errors when set.
	Policy Policy
}

// Orchestrator runs the Reconciler over entity types in a fixed order and
// aggregates the outcome into a PassReport.
type Orchestrator struct {
	reconciler *Reconciler
	types      []EntityType
	policy     Policy
	observer   Observer
	logger     *zap.Logger
	now        func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDefaultTypes sets the types visited when RunOptions.Types is empty.
func WithDefaultTypes(types ...EntityType) OrchestratorOption {
	return func(o *Orchestrator) {
		o.types = types
	}
}

// WithPolicy sets the protocol error policy.
func WithPolicy(p Policy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithObserver registers an observer for type and pass reports.
func WithObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an orchestrator. By default it visits portals, users,
// access rules and time zones and continues after protocol errors.
func NewOrchestrator(reconciler *Reconciler, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		reconciler: reconciler,
		types:      []EntityType{TypePortals, TypeUsers, TypeAccessRules, TypeTimeZones},
		policy:     PolicyContinue,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one pass. It never returns an error: every failure is reflected
// in the report status. Cancellation of ctx is honored before each type.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) *PassReport {
	types := opts.Types
	if len(types) == 0 {
		types = o.types
	}
	types = ordered(types)

	policy := o.policy
	if opts.Policy != "" {
		policy = opts.Policy
	}

	report := &PassReport{
		ID:        uuid.NewString(),
		StartedAt: o.now().UTC(),
		DryRun:    opts.DryRun,
		Types:     make([]TypeReport, 0, len(types)),
	}

	log := o.logger.With(zap.String("pass_id", report.ID))
	log.Info("Sync pass started",
		zap.Int("types", len(types)),
		zap.Bool("dry_run", opts.DryRun),
		zap.String("policy", string(policy)),
	)

	degraded := false
	for i, t := range types {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			report.Error = fmt.Sprintf("pass cancelled before %s: %v", t, err)
			report.Types = append(report.Types, skipped(types[i:])...)
			break
		}

		tr, err := o.reconciler.Reconcile(ctx, t, opts.DryRun)
		report.Types = append(report.Types, *tr)
		o.observeType(tr)

		if err == nil {
			if tr.Status != TypeSuccess {
				degraded = true
			}
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Cancelled = true
			report.Error = fmt.Sprintf("pass cancelled during %s: %v", t, ctxErr)
			report.Types = append(report.Types, skipped(types[i+1:])...)
			break
		}

		if Classify(err) == ClassShape && policy == PolicyContinue {
			degraded = true
			log.Warn("Type failed, continuing", zap.String("type", string(t)), zap.Error(err))
			continue
		}

		report.Error = err.Error()
		report.Types = append(report.Types, skipped(types[i+1:])...)
		break
	}

	switch {
	case report.Error != "":
		report.Status = PassFailed
	case degraded:
		report.Status = PassPartialSuccess
	default:
		report.Status = PassSuccess
	}
	report.FinishedAt = o.now().UTC()

	created, updated, unchanged, failed := report.Totals()
	log.Info("Sync pass finished",
		zap.String("status", string(report.Status)),
		zap.Bool("cancelled", report.Cancelled),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("unchanged", unchanged),
		zap.Int("failed", failed),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	if o.observer != nil {
		o.observer.ObservePass(report)
	}
	return report
}

func (o *Orchestrator) observeType(tr *TypeReport) {
	if o.observer != nil {
		o.observer.ObserveType(tr)
	}
}

// ordered de-duplicates types and sorts them into Order.
func ordered(types []EntityType) []EntityType {
	want := make(map[EntityType]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	out := make([]EntityType, 0, len(want))
	for _, t := range Order {
		if _, ok := want[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func skipped(types []EntityType) []TypeReport {
	out := make([]TypeReport, 0, len(types))
	for _, t := range types {
		out = append(out, TypeReport{Type: t, Status: TypeSkipped, Entries: []Entry{}})
	}
	return out
}
