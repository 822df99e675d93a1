package access

import (
	"context"
	"errors"
	"time"

	"access-sync/core/reconcile"
	"access-sync/feature/access/models"

	"go.uber.org/zap"
)

// Runner executes one sync pass.
type Runner interface {
	Run(ctx context.Context, opts reconcile.RunOptions) *reconcile.PassReport
}

// Store is the read side of the mirrored tables plus the pass history.
type Store interface {
	RecordPass(ctx context.Context, report *reconcile.PassReport) error
	ListPasses(ctx context.Context, limit int) ([]models.SyncRun, error)
	GetPass(ctx context.Context, id string) (*reconcile.PassReport, error)
	List(ctx context.Context, t reconcile.EntityType, limit, offset int) ([]models.Row, error)
	CheckSchema() (map[string][]string, error)
}

// Archiver keeps full pass reports outside the database.
type Archiver interface {
	EnsureBucket(ctx context.Context) error
	Save(ctx context.Context, report *reconcile.PassReport) error
	Load(ctx context.Context, id string) (*reconcile.PassReport, error)
}

// Device reports device health.
type Device interface {
	SystemInfo(ctx context.Context) (map[string]any, error)
	BreakerState() string
}

// DeviceStatus is the answer of the status endpoint.
type DeviceStatus struct {
	Online         bool           `json:"online"`
	ResponseTimeMS int64          `json:"response_time_ms"`
	Breaker        string         `json:"breaker"`
	Info           map[string]any `json:"info,omitempty"`
	Error          string         `json:"error,omitempty"`
	CheckedAt      time.Time      `json:"checked_at"`
}

// SchemaReport lists missing columns per table.
type SchemaReport struct {
	Matched bool                `json:"matched"`
	Tables  map[string][]string `json:"missing_columns"`
}

// Service runs sync passes and serves their history.
type Service struct {
	runner       Runner
	store        Store
	archive      Archiver
	device       Device
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a sync service. archive may be nil.
func NewService(runner Runner, store Store, archive Archiver, device Device, historyLimit int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Service{
		runner:       runner,
		store:        store,
		archive:      archive,
		device:       device,
		historyLimit: historyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// Prepare creates the archive bucket when archiving is enabled.
func (s *Service) Prepare(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	return s.archive.EnsureBucket(ctx)
}

// RunSync executes a pass and records it. Recording failures are logged and
// never change the returned report.
func (s *Service) RunSync(ctx context.Context, opts reconcile.RunOptions) *reconcile.PassReport {
	report := s.runner.Run(ctx, opts)

	l := s.logger.With(zap.String("pass_id", report.ID))
	// Recording ignores cancellation of ctx.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.RecordPass(persistCtx, report); err != nil {
		l.Warn("Failed to record sync pass", zap.Error(err))
	}
	if s.archive != nil {
		if err := s.archive.Save(persistCtx, report); err != nil {
			l.Warn("Failed to archive sync pass", zap.Error(err))
		}
	}
	return report
}

// History returns recent pass summaries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.store.ListPasses(ctx, limit)
}

// Pass returns the full report of one pass, falling back to the archive when
// the database no longer has it.
func (s *Service) Pass(ctx context.Context, id string) (*reconcile.PassReport, error) {
	report, err := s.store.GetPass(ctx, id)
	if err == nil || !errors.Is(err, reconcile.ErrNotFound) || s.archive == nil {
		return report, err
	}
	return s.archive.Load(ctx, id)
}

// Entities lists mirrored rows of t ordered by external id.
func (s *Service) Entities(ctx context.Context, t reconcile.EntityType, limit, offset int) ([]models.Row, error) {
	return s.store.List(ctx, t, limit, offset)
}

// Status probes the device.
func (s *Service) Status(ctx context.Context) DeviceStatus {
	started := s.now()
	info, err := s.device.SystemInfo(ctx)
	status := DeviceStatus{
		Online:         err == nil,
		ResponseTimeMS: s.now().Sub(started).Milliseconds(),
		Breaker:        s.device.BreakerState(),
		Info:           info,
		CheckedAt:      started.UTC(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// Schema inspects the mirrored tables for missing columns.
func (s *Service) Schema() (*SchemaReport, error) {
	problems, err := s.store.CheckSchema()
	if err != nil {
		return nil, err
	}
	return &SchemaReport{Matched: len(problems) == 0, Tables: problems}, nil
}
