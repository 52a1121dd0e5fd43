package sweeper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"teamfeed/pkg/config"
	"teamfeed/pkg/directory"
	"teamfeed/pkg/models"
	"teamfeed/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { require.NoError(t, store.Close()) })
}

func TestRunOnceDropsOrphanedReadMarkers(t *testing.T) {
	openStore(t)
	scope := models.Scope{EntityType: models.EntityContact, EntityID: "c1"}
	owner := store.Actor{ID: "u1", Role: models.RoleOwner}

	_, err := store.Append(scope, owner, "Marina", "hello")
	require.NoError(t, err)
	require.NoError(t, store.MarkRead(scope, "u1"))
	require.NoError(t, store.MarkRead(scope, "ghost"))

	dir := directory.New(directory.StaticUsers{{ID: "u1", Name: "Marina"}}, directory.StaticProjects{})
	require.NoError(t, RunOnce(context.Background(), dir))

	users, err := store.ReadMarkerUsers(scope)
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, users, "only directory members keep their markers")
}

func TestRunOnceKeepsPinAuditQuiet(t *testing.T) {
	openStore(t)
	scope := models.Scope{EntityType: models.EntityProject, EntityID: "p1"}
	owner := store.Actor{ID: "u1", Role: models.RoleOwner}

	m1, err := store.Append(scope, owner, "Marina", "first")
	require.NoError(t, err)
	m2, err := store.Append(scope, owner, "Marina", "second")
	require.NoError(t, err)
	_, err = store.Pin(scope, m1.ID, owner)
	require.NoError(t, err)
	_, err = store.Pin(scope, m2.ID, owner)
	require.NoError(t, err)

	dir := directory.New(directory.StaticUsers{{ID: "u1", Name: "Marina"}}, directory.StaticProjects{})
	require.NoError(t, RunOnce(context.Background(), dir))
}

func TestStartRejectsInvalidCron(t *testing.T) {
	dir := directory.New(directory.StaticUsers{}, directory.StaticProjects{})
	_, err := Start(context.Background(), config.SweeperConfig{Enabled: true, Cron: "not a cron"}, dir)
	require.Error(t, err)
}

func TestStartDisabledIsNoop(t *testing.T) {
	dir := directory.New(directory.StaticUsers{}, directory.StaticProjects{})
	cancel, err := Start(context.Background(), config.SweeperConfig{Enabled: false}, dir)
	require.NoError(t, err)
	cancel()
}
