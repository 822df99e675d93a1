package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_CreatesAgainstEmptyStore(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	src.set(TypePortals, portal(2, "Saída"), portal(1, "Entrada"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, TypeSuccess, report.Status)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Unchanged)
	assert.Equal(t, 0, report.Failed)

	require.Len(t, report.Entries, 2)
	assert.Equal(t, int64(1), report.Entries[0].ExternalID)
	assert.Equal(t, "Entrada", report.Entries[0].Label)
	assert.Equal(t, ActionCreated, report.Entries[0].Action)
	assert.Equal(t, int64(2), report.Entries[1].ExternalID)
	assert.Equal(t, "Saída", report.Entries[1].Label)
	assert.Equal(t, ActionCreated, report.Entries[1].Action)

	for _, e := range report.Entries {
		row, ok := gw.get(TypePortals, e.ExternalID)
		require.True(t, ok)
		assert.Equal(t, row.localID, e.LocalID)
	}
}

func TestReconcile_CreateThenMatch(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	src.set(TypePortals, portal(7, "Entrada"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	stored, err := gw.FetchExisting(context.Background(), TypePortals)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, report.Entries[0].LocalID, stored[7].LocalID)
	assert.Equal(t, nameAttrs{name: "Entrada"}, stored[7].Attributes)
}

func TestReconcile_Idempotent(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	src.set(TypePortals, portal(1, "A"), portal(2, "B"), portal(3, "C"))
	rec := NewReconciler(src, gw, nil)

	first, err := rec.Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)

	second, err := rec.Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, first.Total, second.Unchanged)
	assert.Empty(t, second.Entries)
}

func TestReconcile_UpdateOnDrift(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	localID := gw.seed(TypePortals, 7, "Entrada")
	src.set(TypePortals, portal(7, "Entrada Principal"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Created)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, ActionUpdated, report.Entries[0].Action)
	assert.Equal(t, localID, report.Entries[0].LocalID)
	assert.Equal(t, []string{`name: device="Entrada Principal" store="Entrada"`}, report.Entries[0].Changes)

	row, ok := gw.get(TypePortals, 7)
	require.True(t, ok)
	assert.Equal(t, localID, row.localID)
	assert.Equal(t, nameAttrs{name: "Entrada Principal"}, row.attrs)
	assert.Equal(t, 1, gw.updates)
}

func TestReconcile_NoDelete(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	gw.seed(TypePortals, 9, "Old")
	src.set(TypePortals, portal(1, "New"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Created)
	for _, e := range report.Entries {
		assert.NotEqual(t, int64(9), e.ExternalID)
	}
	row, ok := gw.get(TypePortals, 9)
	require.True(t, ok)
	assert.Equal(t, nameAttrs{name: "Old"}, row.attrs)
}

func TestReconcile_EmptyCollectionLeavesStoreUntouched(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	gw.seed(TypePortals, 1, "A")
	gw.seed(TypePortals, 2, "B")

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, TypeSuccess, report.Status)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0, report.Created+report.Updated+report.Unchanged+report.Failed)
	assert.Equal(t, 2, gw.count(TypePortals))
}

func TestReconcile_DuplicateDeviceIDsKeepLast(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	src.set(TypePortals, portal(5, "First"), portal(6, "Other"), portal(5, "Second"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, TypeSuccess, report.Status)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Created)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "external_id 5")

	assert.Equal(t, 2, gw.count(TypePortals))
	row, ok := gw.get(TypePortals, 5)
	require.True(t, ok)
	assert.Equal(t, nameAttrs{name: "Second"}, row.attrs)
}

func TestReconcile_CreatesBeforeUpdatesInAscendingOrder(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	gw.seed(TypePortals, 10, "x")
	gw.seed(TypePortals, 4, "y")
	src.set(TypePortals,
		portal(10, "X"), portal(8, "H"), portal(4, "Y"), portal(2, "B"), portal(6, "F"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	var got []string
	for _, e := range report.Entries {
		got = append(got, fmt.Sprintf("%s:%d", e.Action, e.ExternalID))
	}
	assert.Equal(t, []string{"created:2", "created:6", "created:8", "updated:4", "updated:10"}, got)
}

func TestReconcile_DuplicateCreateFallsBackToUnchanged(t *testing.T) {
	src := newFakeSource()
	gw := &racingGateway{fakeGateway: newFakeGateway(), other: nameAttrs{name: "Entrada"}}
	src.set(TypePortals, portal(3, "Entrada"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, TypeSuccess, report.Status)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, report.Entries)
	assert.Len(t, report.Warnings, 1)
	assert.Equal(t, 1, gw.count(TypePortals))
}

func TestReconcile_DuplicateCreateDemotesToUpdate(t *testing.T) {
	src := newFakeSource()
	gw := &racingGateway{fakeGateway: newFakeGateway(), other: nameAttrs{name: "Stale"}}
	src.set(TypePortals, portal(3, "Entrada"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, ActionUpdated, report.Entries[0].Action)

	row, ok := gw.get(TypePortals, 3)
	require.True(t, ok)
	assert.Equal(t, row.localID, report.Entries[0].LocalID)
	assert.Equal(t, nameAttrs{name: "Entrada"}, row.attrs)
}

func TestReconcile_UpdateNotFoundIsRecordFailure(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	gw.seed(TypePortals, 1, "a")
	gw.seed(TypePortals, 2, "b")
	src.set(TypePortals, portal(1, "A"), portal(2, "B"), portal(3, "C"))

	// Row 1 vanishes between the snapshot and the update.
	rec := NewReconciler(src, gw, nil)
	plan, err := rec.Plan(context.Background(), TypePortals)
	require.NoError(t, err)
	gw.remove(TypePortals, 1)

	report := rec.Apply(context.Background(), plan)

	assert.Equal(t, TypeCompletedWithErrors, report.Status)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(1), report.Failures[0].ExternalID)
	assert.Contains(t, report.Failures[0].Error, ErrNotFound.Error())
}

func TestReconcile_CreateErrorIsRecordFailure(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	gw.createErr[2] = errors.New("disk full")
	src.set(TypePortals, portal(1, "A"), portal(2, "B"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.NoError(t, err)

	assert.Equal(t, TypeCompletedWithErrors, report.Status)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "B", report.Failures[0].Label)
}

func TestReconcile_DeviceErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class Class
	}{
		{name: "unreachable", err: fmt.Errorf("dial: %w", ErrDeviceUnreachable), class: ClassTransport},
		{name: "auth", err: fmt.Errorf("login: %w", ErrDeviceAuth), class: ClassTransport},
		{name: "protocol", err: fmt.Errorf("decode: %w", ErrDeviceProtocol), class: ClassShape},
		{name: "unclassified", err: errors.New("boom"), class: ClassTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			gw := newFakeGateway()
			src.errs[TypeUsers] = tt.err

			report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypeUsers, false)
			require.Error(t, err)
			assert.Equal(t, tt.class, Classify(err))
			assert.Equal(t, TypeFailed, report.Status)
			assert.NotEmpty(t, report.Error)
			assert.Equal(t, 0, gw.count(TypeUsers))
		})
	}
}

func TestReconcile_CancelledFetchIsNotUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw := newFakeGateway()

	report, err := NewReconciler(cancellingSource{cancel: cancel}, gw, nil).Reconcile(ctx, TypePortals, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDeviceUnreachable)
	assert.Equal(t, TypeFailed, report.Status)
	assert.Equal(t, 0, gw.count(TypePortals))
}

func TestReconcile_StoreSnapshotError(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	gw.fetchErr = errors.New("connection refused")
	src.set(TypePortals, portal(1, "A"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
	require.Error(t, err)
	assert.Equal(t, ClassStore, Classify(err))
	assert.Equal(t, TypeFailed, report.Status)
	assert.Contains(t, err.Error(), "load stored portals")
}

func TestReconcile_DryRunWritesNothing(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	localID := gw.seed(TypePortals, 2, "b")
	gw.seed(TypePortals, 3, "C")
	src.set(TypePortals, portal(1, "A"), portal(2, "B"), portal(3, "C"))

	report, err := NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, int64(0), report.Entries[0].LocalID)
	assert.Equal(t, localID, report.Entries[1].LocalID)

	assert.Equal(t, 0, gw.creates)
	assert.Equal(t, 0, gw.updates)
	assert.Equal(t, 2, gw.count(TypePortals))
}

func TestReconcile_ApplyIgnoresCancellation(t *testing.T) {
	src := newFakeSource()
	gw := newFakeGateway()
	src.set(TypePortals, portal(1, "A"), portal(2, "B"))
	rec := NewReconciler(src, gw, nil)

	plan, err := rec.Plan(context.Background(), TypePortals)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := rec.Apply(ctx, plan)

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, gw.count(TypePortals))
}

func TestReconcile_ConcurrentPassesRaceOnCreate(t *testing.T) {
	gw := newFakeGateway()
	var barrier sync.WaitGroup
	barrier.Add(2)
	gw.snapshotBarrier = &barrier

	srcA := newFakeSource()
	srcA.set(TypePortals, portal(3, "Entrada"))
	srcB := newFakeSource()
	srcB.set(TypePortals, portal(3, "Entrada"))

	var (
		wg      sync.WaitGroup
		reports [2]*TypeReport
		errs    [2]error
	)
	for i, src := range []*fakeSource{srcA, srcB} {
		wg.Add(1)
		go func(i int, src *fakeSource) {
			defer wg.Done()
			reports[i], errs[i] = NewReconciler(src, gw, nil).Reconcile(context.Background(), TypePortals, false)
		}(i, src)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, gw.count(TypePortals))

	created := reports[0].Created + reports[1].Created
	unchanged := reports[0].Unchanged + reports[1].Unchanged
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, unchanged)
	assert.Equal(t, 0, reports[0].Failed+reports[1].Failed)
}

func TestParseEntityTypes(t *testing.T) {
	types, err := ParseEntityTypes([]string{"portals", " Users ", "access-rules", "", "time_zones"})
	require.NoError(t, err)
	assert.Equal(t, []EntityType{TypePortals, TypeUsers, TypeAccessRules, TypeTimeZones}, types)

	_, err = ParseEntityTypes([]string{"doors"})
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyContinue, p)

	p, err = ParsePolicy("ABORT")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassTransport, Classify(fmt.Errorf("x: %w", ErrDeviceUnreachable)))
	assert.Equal(t, ClassTransport, Classify(fmt.Errorf("x: %w", ErrDeviceAuth)))
	assert.Equal(t, ClassShape, Classify(fmt.Errorf("x: %w", ErrDeviceProtocol)))
	assert.Equal(t, ClassRecord, Classify(fmt.Errorf("x: %w", ErrDuplicateExternalID)))
	assert.Equal(t, ClassRecord, Classify(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, ClassStore, Classify(errors.New("sql: database is closed")))
	assert.Equal(t, "shape", ClassShape.String())
}
