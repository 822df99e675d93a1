package access

import (
	"context"
	"sync"
	"time"

	"access-sync/core/reconcile"
	"access-sync/feature/access/models"
)

type fakeRunner struct {
	mu     sync.Mutex
	report *reconcile.PassReport
	opts   []reconcile.RunOptions
}

func (r *fakeRunner) Run(_ context.Context, opts reconcile.RunOptions) *reconcile.PassReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, opts)
	out := *r.report
	out.DryRun = opts.DryRun
	return &out
}

func (r *fakeRunner) last() reconcile.RunOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts[len(r.opts)-1]
}

type fakeStore struct {
	recorded   []*reconcile.PassReport
	recordCtx  error
	recordErr  error
	runs       []models.SyncRun
	listLimit  int
	passes     map[string]*reconcile.PassReport
	getErr     error
	rows       []models.Row
	listErr    error
	listedType reconcile.EntityType
	missing    map[string][]string
}

func (s *fakeStore) RecordPass(ctx context.Context, report *reconcile.PassReport) error {
	s.recordCtx = ctx.Err()
	s.recorded = append(s.recorded, report)
	return s.recordErr
}

func (s *fakeStore) ListPasses(_ context.Context, limit int) ([]models.SyncRun, error) {
	s.listLimit = limit
	return s.runs, nil
}

func (s *fakeStore) GetPass(_ context.Context, id string) (*reconcile.PassReport, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if p, ok := s.passes[id]; ok {
		return p, nil
	}
	return nil, reconcile.ErrNotFound
}

func (s *fakeStore) List(_ context.Context, t reconcile.EntityType, _, _ int) ([]models.Row, error) {
	s.listedType = t
	return s.rows, s.listErr
}

func (s *fakeStore) CheckSchema() (map[string][]string, error) {
	return s.missing, nil
}

type fakeArchive struct {
	saved   []string
	saveErr error
	stored  map[string]*reconcile.PassReport
	ensured int
}

func (a *fakeArchive) EnsureBucket(context.Context) error {
	a.ensured++
	return nil
}

func (a *fakeArchive) Save(_ context.Context, report *reconcile.PassReport) error {
	a.saved = append(a.saved, report.ID)
	return a.saveErr
}

func (a *fakeArchive) Load(_ context.Context, id string) (*reconcile.PassReport, error) {
	if p, ok := a.stored[id]; ok {
		return p, nil
	}
	return nil, reconcile.ErrNotFound
}

type fakeDevice struct {
	info   map[string]any
	err    error
	bodies map[string]string
}

func (d *fakeDevice) SystemInfo(context.Context) (map[string]any, error) {
	return d.info, d.err
}

func (d *fakeDevice) BreakerState() string {
	return "closed"
}

func (d *fakeDevice) LoadObjects(_ context.Context, object string) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []byte(d.bodies[object]), nil
}

func passReport(id string, status reconcile.PassStatus) *reconcile.PassReport {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &reconcile.PassReport{
		ID:         id,
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Types:      []reconcile.TypeReport{},
	}
}
