package access

import (
	"context"
	"errors"
	"testing"

	"access-sync/core/reconcile"
	"access-sync/feature/access/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestService_RunSyncRecordsAndArchives(t *testing.T) {
	runner := &fakeRunner{report: passReport("p1", reconcile.PassSuccess)}
	st := &fakeStore{}
	arch := &fakeArchive{}
	svc := NewService(runner, st, arch, &fakeDevice{}, 0, nil)

	report := svc.RunSync(context.Background(), reconcile.RunOptions{DryRun: true})

	assert.Equal(t, "p1", report.ID)
	assert.True(t, report.DryRun)
	require.Len(t, st.recorded, 1)
	assert.Same(t, report, st.recorded[0])
	assert.Equal(t, []string{"p1"}, arch.saved)
}

func TestService_RunSyncRecordingFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	runner := &fakeRunner{report: passReport("p2", reconcile.PassPartialSuccess)}
	st := &fakeStore{recordErr: errors.New("disk full")}
	arch := &fakeArchive{saveErr: errors.New("bucket gone")}
	svc := NewService(runner, st, arch, &fakeDevice{}, 0, zap.New(core))

	report := svc.RunSync(context.Background(), reconcile.RunOptions{})

	assert.Equal(t, reconcile.PassPartialSuccess, report.Status)
	assert.Equal(t, 1, logs.FilterMessage("Failed to record sync pass").Len())
	assert.Equal(t, 1, logs.FilterMessage("Failed to archive sync pass").Len())
}

func TestService_RunSyncRecordsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{report: passReport("p3", reconcile.PassFailed)}
	st := &fakeStore{}
	NewService(runner, st, nil, &fakeDevice{}, 0, nil).RunSync(ctx, reconcile.RunOptions{})

	require.Len(t, st.recorded, 1)
	assert.NoError(t, st.recordCtx)
}

func TestService_Pass(t *testing.T) {
	ctx := context.Background()
	st := &fakeStore{passes: map[string]*reconcile.PassReport{"db": passReport("db", reconcile.PassSuccess)}}
	arch := &fakeArchive{stored: map[string]*reconcile.PassReport{"old": passReport("old", reconcile.PassFailed)}}

	svc := NewService(&fakeRunner{}, st, arch, &fakeDevice{}, 0, nil)

	got, err := svc.Pass(ctx, "db")
	require.NoError(t, err)
	assert.Equal(t, "db", got.ID)

	got, err = svc.Pass(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, reconcile.PassFailed, got.Status)

	_, err = svc.Pass(ctx, "missing")
	assert.ErrorIs(t, err, reconcile.ErrNotFound)

	t.Run("NoArchive", func(t *testing.T) {
		_, err := NewService(&fakeRunner{}, st, nil, &fakeDevice{}, 0, nil).Pass(ctx, "old")
		assert.ErrorIs(t, err, reconcile.ErrNotFound)
	})

	t.Run("StoreErrorSkipsArchive", func(t *testing.T) {
		failing := &fakeStore{getErr: errors.New("connection refused")}
		_, err := NewService(&fakeRunner{}, failing, arch, &fakeDevice{}, 0, nil).Pass(ctx, "old")
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestService_History(t *testing.T) {
	st := &fakeStore{runs: []models.SyncRun{{ID: "a"}, {ID: "b"}}}
	svc := NewService(&fakeRunner{}, st, nil, &fakeDevice{}, 7, nil)

	runs, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, 7, st.listLimit)

	_, err = svc.History(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, st.listLimit)
}

func TestService_Status(t *testing.T) {
	online := NewService(&fakeRunner{}, &fakeStore{}, nil, &fakeDevice{info: map[string]any{"serial": "0M0200"}}, 0, nil)
	status := online.Status(context.Background())
	assert.True(t, status.Online)
	assert.Equal(t, "closed", status.Breaker)
	assert.Equal(t, "0M0200", status.Info["serial"])
	assert.Empty(t, status.Error)
	assert.False(t, status.CheckedAt.IsZero())

	offline := NewService(&fakeRunner{}, &fakeStore{}, nil, &fakeDevice{err: reconcile.ErrDeviceUnreachable}, 0, nil)
	status = offline.Status(context.Background())
	assert.False(t, status.Online)
	assert.Contains(t, status.Error, "unreachable")
}

func TestService_Prepare(t *testing.T) {
	assert.NoError(t, NewService(&fakeRunner{}, &fakeStore{}, nil, &fakeDevice{}, 0, nil).Prepare(context.Background()))

	arch := &fakeArchive{}
	require.NoError(t, NewService(&fakeRunner{}, &fakeStore{}, arch, &fakeDevice{}, 0, nil).Prepare(context.Background()))
	assert.Equal(t, 1, arch.ensured)
}

func TestConfig(t *testing.T) {
	cfg := Config{Types: "users, portals,,time-zones", OnProtocolError: "Abort"}

	types, err := cfg.EntityTypes()
	require.NoError(t, err)
	assert.Equal(t, []reconcile.EntityType{reconcile.TypeUsers, reconcile.TypePortals, reconcile.TypeTimeZones}, types)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, reconcile.PolicyAbort, policy)

	_, err = Config{Types: "doors"}.EntityTypes()
	assert.Error(t, err)
	_, err = Config{OnProtocolError: "retry"}.Policy()
	assert.Error(t, err)
}
