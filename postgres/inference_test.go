package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/eventgraph"
)

var _ eventgraph.Store = (*PGStore)(nil)

// newTestStore connects to EVENTGRAPH_TEST_DATABASE_URL and starts from an
// empty schema. The test is skipped when the variable is unset.
func newTestStore(t *testing.T) *PGStore {
	t.Helper()
	url := os.Getenv("EVENTGRAPH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("EVENTGRAPH_TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.DropSchema(ctx))
	require.NoError(t, s.CreateSchema(ctx))
	t.Cleanup(func() { _ = s.DropSchema(context.Background()) })
	return s
}

func TestPGStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := eventgraph.Payload{Version: eventgraph.SchemaVersion, Configs: []eventgraph.EventSetting{
		{EventType: eventgraph.WireROI, ID: "z", Name: "Zone", Points: []eventgraph.Point{{0, 0}, {1, 0}, {1, 1}}},
		{EventType: eventgraph.WireFilter, ID: "t", ParentID: "z", Filter: eventgraph.TimeoutFilter{Seconds: 5}},
	}}

	first, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app", CameraID: "cam1", Settings: p, Accepted: true})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	got, err := s.GetInference(ctx, "app", "cam1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Configs, got.Settings.Configs)
	assert.True(t, got.Accepted)

	second, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{
		AppID: "app", CameraID: "cam1", Settings: eventgraph.Payload{Version: eventgraph.SchemaVersion},
		Message: "rejected",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.Settings.Configs)
	assert.False(t, second.Accepted)

	missing, err := s.GetInference(ctx, "app", "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app", CameraID: "cam0", Settings: p})
	require.NoError(t, err)
	list, err := s.ListInferences(ctx, "app")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cam0", list[0].CameraID)

	require.NoError(t, s.DeleteInference(ctx, "app", "cam0"))
	require.NoError(t, s.DeleteInference(ctx, "app", "cam0"))
	list, err = s.ListInferences(ctx, "app")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.SaveInference(ctx, &eventgraph.InferenceRecord{CameraID: "cam"})
	assert.ErrorIs(t, err, eventgraph.ErrInvalidRecord)
}
