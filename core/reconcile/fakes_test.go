package reconcile

import (
	"context"
	"fmt"
	"sync"
)

// nameAttrs is a single-field attribute set used across the tests.
type nameAttrs struct {
	name string
}

func (a nameAttrs) Label() string { return a.name }

func (a nameAttrs) Diff(stored Attributes) []string {
	s, ok := stored.(nameAttrs)
	if !ok {
		return []string{fmt.Sprintf("type: device=%T store=%T", a, stored)}
	}
	if a.name != s.name {
		return []string{fmt.Sprintf("name: device=%q store=%q", a.name, s.name)}
	}
	return nil
}

func portal(id int64, name string) Entity {
	return Entity{ExternalID: id, Attributes: nameAttrs{name: name}}
}

// fakeSource serves fixed collections per type.
type fakeSource struct {
	mu    sync.Mutex
	data  map[EntityType][]Entity
	errs  map[EntityType]error
	calls []EntityType
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		data: make(map[EntityType][]Entity),
		errs: make(map[EntityType]error),
	}
}

func (s *fakeSource) Fetch(_ context.Context, t EntityType) ([]Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, t)
	if err := s.errs[t]; err != nil {
		return nil, err
	}
	out := make([]Entity, len(s.data[t]))
	copy(out, s.data[t])
	return out, nil
}

func (s *fakeSource) set(t EntityType, entities ...Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[t] = entities
}

func (s *fakeSource) fetched() []EntityType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EntityType(nil), s.calls...)
}

type fakeRow struct {
	localID    int64
	externalID int64
	attrs      Attributes
}

// fakeGateway is an in-memory store enforcing external id uniqueness per type.
type fakeGateway struct {
	mu     sync.Mutex
	nextID int64
	rows   map[EntityType]map[int64]*fakeRow

	// snapshotBarrier, when set, holds every FetchExisting call after its
	// snapshot is taken until all participants have taken theirs.
	snapshotBarrier *sync.WaitGroup

	fetchErr  error
	createErr map[int64]error
	updateErr map[int64]error

	creates int
	updates int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:    100,
		rows:      make(map[EntityType]map[int64]*fakeRow),
		createErr: make(map[int64]error),
		updateErr: make(map[int64]error),
	}
}

func (g *fakeGateway) FetchExisting(_ context.Context, t EntityType) (map[int64]Record, error) {
	g.mu.Lock()
	if g.fetchErr != nil {
		g.mu.Unlock()
		return nil, g.fetchErr
	}
	out := make(map[int64]Record, len(g.rows[t]))
	for ext, row := range g.rows[t] {
		out[ext] = Record{LocalID: row.localID, Attributes: row.attrs}
	}
	barrier := g.snapshotBarrier
	g.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	return out, nil
}

func (g *fakeGateway) FetchOne(_ context.Context, t EntityType, externalID int64) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	row, ok := g.rows[t][externalID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{LocalID: row.localID, Attributes: row.attrs}, nil
}

func (g *fakeGateway) Create(_ context.Context, t EntityType, externalID int64, attrs Attributes) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.createErr[externalID]; err != nil {
		return 0, err
	}
	if _, ok := g.rows[t][externalID]; ok {
		return 0, fmt.Errorf("%s %d: %w", t, externalID, ErrDuplicateExternalID)
	}
	if g.rows[t] == nil {
		g.rows[t] = make(map[int64]*fakeRow)
	}
	g.nextID++
	g.rows[t][externalID] = &fakeRow{localID: g.nextID, externalID: externalID, attrs: attrs}
	g.creates++
	return g.nextID, nil
}

func (g *fakeGateway) Update(_ context.Context, t EntityType, localID int64, attrs Attributes) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.updateErr[localID]; err != nil {
		return err
	}
	for _, row := range g.rows[t] {
		if row.localID == localID {
			row.attrs = attrs
			g.updates++
			return nil
		}
	}
	return ErrNotFound
}

// seed stores a row directly and returns its local id.
func (g *fakeGateway) seed(t EntityType, externalID int64, name string) int64 {
	id, err := g.Create(context.Background(), t, externalID, nameAttrs{name: name})
	if err != nil {
		panic(err)
	}
	g.mu.Lock()
	g.creates--
	g.mu.Unlock()
	return id
}

// remove deletes a row behind the reconciler's back.
func (g *fakeGateway) remove(t EntityType, externalID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rows[t], externalID)
}

func (g *fakeGateway) count(t EntityType) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows[t])
}

func (g *fakeGateway) get(t EntityType, externalID int64) (fakeRow, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	row, ok := g.rows[t][externalID]
	if !ok {
		return fakeRow{}, false
	}
	return *row, true
}

// racingGateway inserts a competing row right before the first Create call,
// simulating another pass winning the race after our snapshot.
type racingGateway struct {
	*fakeGateway
	once  sync.Once
	other Attributes
}

func (g *racingGateway) Create(ctx context.Context, t EntityType, externalID int64, attrs Attributes) (int64, error) {
	g.once.Do(func() {
		_, _ = g.fakeGateway.Create(ctx, t, externalID, g.other)
	})
	return g.fakeGateway.Create(ctx, t, externalID, attrs)
}

// recordingObserver collects observed reports.
type recordingObserver struct {
	mu     sync.Mutex
	types  []TypeReport
	passes []PassReport
}

func (o *recordingObserver) ObserveType(r *TypeReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.types = append(o.types, *r)
}

func (o *recordingObserver) ObservePass(r *PassReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.passes = append(o.passes, *r)
}

// cancellingSource cancels the pass from inside Fetch and returns once the
// context is done, like a device request interrupted mid-flight.
type cancellingSource struct {
	cancel context.CancelFunc
}

func (s cancellingSource) Fetch(ctx context.Context, _ EntityType) ([]Entity, error) {
	s.cancel()
	<-ctx.Done()
	return nil, fmt.Errorf("load_objects.fcgi: %w", ctx.Err())
}
