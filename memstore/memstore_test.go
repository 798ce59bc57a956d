package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/eventgraph"
)

func payload(ids ...string) eventgraph.Payload {
	p := eventgraph.Payload{Version: eventgraph.SchemaVersion}
	for _, id := range ids {
		p.Configs = append(p.Configs, eventgraph.EventSetting{EventType: eventgraph.WireSpeed, ID: id, Name: id})
	}
	return p
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save then get", func(t *testing.T) {
		s := New()
		saved, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{
			AppID: "app", CameraID: "cam1", Settings: payload("a"), Accepted: true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.False(t, saved.UpdatedAt.IsZero())

		got, err := s.GetInference(ctx, "app", "cam1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, saved.ID, got.ID)
		assert.True(t, got.Accepted)
		assert.Equal(t, payload("a").Configs, got.Settings.Configs)
	})

	t.Run("missing record is nil, nil", func(t *testing.T) {
		got, err := New().GetInference(ctx, "app", "cam")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save replaces and keeps id", func(t *testing.T) {
		s := New()
		first, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app", CameraID: "cam", Settings: payload("a")})
		require.NoError(t, err)
		second, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app", CameraID: "cam", Settings: payload("b", "c")})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		got, _ := s.GetInference(ctx, "app", "cam")
		assert.Len(t, got.Settings.Configs, 2)
	})

	t.Run("stored payload is detached from caller", func(t *testing.T) {
		s := New()
		rec := &eventgraph.InferenceRecord{AppID: "app", CameraID: "cam", Settings: payload("a")}
		_, err := s.SaveInference(ctx, rec)
		require.NoError(t, err)
		rec.Settings.Configs[0].Name = "mutated"

		got, _ := s.GetInference(ctx, "app", "cam")
		assert.Equal(t, "a", got.Settings.Configs[0].Name)
	})

	t.Run("returned record is detached from store", func(t *testing.T) {
		s := New()
		p := payload("a")
		p.Configs[0].Target = &eventgraph.Target{Label: "person"}
		saved, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app", CameraID: "cam", Settings: p})
		require.NoError(t, err)
		saved.Settings.Configs[0].Name = "from save"

		got, err := s.GetInference(ctx, "app", "cam")
		require.NoError(t, err)
		got.Settings.Configs[0].Name = "mutated"
		got.Settings.Configs[0].Target.Label = "car"

		list, err := s.ListInferences(ctx, "app")
		require.NoError(t, err)
		require.Len(t, list, 1)
		list[0].Settings.Configs[0].Name = "from list"

		again, err := s.GetInference(ctx, "app", "cam")
		require.NoError(t, err)
		assert.Equal(t, "a", again.Settings.Configs[0].Name)
		assert.Equal(t, "person", again.Settings.Configs[0].Target.Label)
	})

	t.Run("list and delete", func(t *testing.T) {
		s := New()
		for _, cam := range []string{"c2", "c1"} {
			_, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app", CameraID: cam, Settings: payload()})
			require.NoError(t, err)
		}
		_, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "other", CameraID: "c1", Settings: payload()})
		require.NoError(t, err)

		list, err := s.ListInferences(ctx, "app")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "c1", list[0].CameraID)
		assert.NotNil(t, list[0].Settings.Configs)

		require.NoError(t, s.DeleteInference(ctx, "app", "c1"))
		require.NoError(t, s.DeleteInference(ctx, "app", "c1"))
		list, _ = s.ListInferences(ctx, "app")
		assert.Len(t, list, 1)

		require.NoError(t, s.DropSchema(ctx))
		list, _ = s.ListInferences(ctx, "other")
		assert.Empty(t, list)
		assert.NotNil(t, list)
	})

	t.Run("invalid record", func(t *testing.T) {
		_, err := New().SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app"})
		assert.ErrorIs(t, err, eventgraph.ErrInvalidRecord)
	})

	t.Run("clock is used for updatedAt", func(t *testing.T) {
		s := New()
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return at }
		saved, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "a", CameraID: "c", Settings: payload()})
		require.NoError(t, err)
		assert.Equal(t, at, saved.UpdatedAt)
	})
}

func TestStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cam := []string{"c1", "c2"}[i%2]
			_, err := s.SaveInference(ctx, &eventgraph.InferenceRecord{AppID: "app", CameraID: cam, Settings: payload("x")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	list, err := s.ListInferences(ctx, "app")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
