package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/eventgraph"
	"github.com/meikuraledutech/eventgraph/logging"
	"github.com/meikuraledutech/eventgraph/memstore"
)

type failingCompositor struct{}

func (failingCompositor) Accept(context.Context, string, string, eventgraph.Payload) (bool, string, error) {
	return false, "", errors.New("compositor offline")
}

func newApp(t *testing.T, opts Options) *fiber.App {
	t.Helper()
	if opts.Store == nil {
		opts.Store = memstore.New()
	}
	opts.Logger = logging.Discard()
	app, err := New(opts)
	require.NoError(t, err)
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func sampleGraph(t *testing.T) *eventgraph.Graph {
	t.Helper()
	g := eventgraph.New()
	obj, err := g.AddNode(eventgraph.KindObject, eventgraph.Position{})
	require.NoError(t, err)
	zone, err := g.AddNode(eventgraph.KindZone, eventgraph.Position{Y: 120})
	require.NoError(t, err)
	alarm, err := g.AddNode(eventgraph.KindAlarm, eventgraph.Position{Y: 240})
	require.NoError(t, err)
	require.NoError(t, g.UpdateNode(obj.ID, "Person", eventgraph.NodeData{Classes: []string{"person"}}))
	_, _, err = g.Connect(obj.ID, zone.ID)
	require.NoError(t, err)
	_, _, err = g.Connect(zone.ID, alarm.ID)
	require.NoError(t, err)
	return g
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestInferenceRoutes(t *testing.T) {
	app := newApp(t, Options{})
	const path = "/apps/app1/cameras/cam1/inference"

	resp, _ := do(t, app, http.MethodGet, path, nil)
	assert.Equal(t, 404, resp.StatusCode)

	payload := sampleGraph(t).Compile().Payload
	resp, body := do(t, app, http.MethodPut, path, payload)
	require.Equal(t, 200, resp.StatusCode, string(body))
	var res eventgraph.SaveResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Accepted)

	resp, body = do(t, app, http.MethodGet, path, nil)
	require.Equal(t, 200, resp.StatusCode)
	var rec eventgraph.InferenceRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, "cam1", rec.CameraID)
	assert.Equal(t, payload.Configs, rec.Settings.Configs)

	t.Run("rejected payload is stored with the message", func(t *testing.T) {
		bad := eventgraph.Payload{Version: "0.1"}
		resp, body := do(t, app, http.MethodPut, "/apps/app1/cameras/cam2/inference", bad)
		require.Equal(t, 200, resp.StatusCode)
		var res eventgraph.SaveResult
		require.NoError(t, json.Unmarshal(body, &res))
		assert.False(t, res.Accepted)
		assert.Contains(t, res.Message, "schema version")

		_, body = do(t, app, http.MethodGet, "/apps/app1/inferences", nil)
		var recs []eventgraph.InferenceRecord
		require.NoError(t, json.Unmarshal(body, &recs))
		require.Len(t, recs, 2)
		assert.False(t, recs[1].Accepted)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := do(t, app, http.MethodDelete, path, nil)
		assert.Equal(t, 204, resp.StatusCode)
		resp, _ = do(t, app, http.MethodGet, path, nil)
		assert.Equal(t, 404, resp.StatusCode)
	})
}

func TestCompositorFailure(t *testing.T) {
	store := memstore.New()
	app := newApp(t, Options{Store: store, Compositor: failingCompositor{}})

	resp, _ := do(t, app, http.MethodPut, "/apps/a/cameras/c/inference", eventgraph.Payload{Version: eventgraph.SchemaVersion})
	assert.Equal(t, 502, resp.StatusCode)

	rec, err := store.GetInference(context.Background(), "a", "c")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGraphRoutes(t *testing.T) {
	app := newApp(t, Options{})
	g := sampleGraph(t)

	t.Run("validate", func(t *testing.T) {
		lone := eventgraph.New()
		obj, err := lone.AddNode(eventgraph.KindObject, eventgraph.Position{})
		require.NoError(t, err)
		resp, body := do(t, app, http.MethodPost, "/graph/validate", lone)
		require.Equal(t, 200, resp.StatusCode)
		var w eventgraph.Warnings
		require.NoError(t, json.Unmarshal(body, &w))
		assert.Equal(t, eventgraph.WarnObjectUnconnected, w[obj.ID])
	})

	t.Run("compile", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/graph/compile", g)
		require.Equal(t, 200, resp.StatusCode)
		var out eventgraph.Compiled
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Payload.Configs, 2)
		require.NotNil(t, out.Payload.Configs[0].Target)
		assert.Equal(t, "person", out.Payload.Configs[0].Target.Label)
		assert.Equal(t, []string{g.Nodes[0].ID}, out.Elided)
	})

	t.Run("decompile", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/graph/decompile", g.Compile().Payload)
		require.Equal(t, 200, resp.StatusCode)
		var out eventgraph.Decompiled
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Len(t, out.Graph.Nodes, 2)
		assert.Len(t, out.Graph.Edges, 1)
	})

	t.Run("dot", func(t *testing.T) {
		resp, body := do(t, app, http.MethodPost, "/graph/dot", g)
		require.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "text/vnd.graphviz", resp.Header.Get("Content-Type"))
		assert.Contains(t, string(body), "digraph pipeline")
	})
}

func TestTemplateRoutes(t *testing.T) {
	app := newApp(t, Options{})

	resp, body := do(t, app, http.MethodGet, "/templates", nil)
	require.Equal(t, 200, resp.StatusCode)
	var list []eventgraph.Template
	require.NoError(t, json.Unmarshal(body, &list))
	assert.NotEmpty(t, list)

	resp, body = do(t, app, http.MethodPost, "/templates/basic_detection/expand?area=Line", nil)
	require.Equal(t, 201, resp.StatusCode, string(body))
	var frag eventgraph.Fragment
	require.NoError(t, json.Unmarshal(body, &frag))
	require.Len(t, frag.Nodes, 4)
	assert.Len(t, frag.Edges, 3)
	assert.Equal(t, eventgraph.KindLine, frag.Nodes[1].Kind)
	assert.Equal(t, eventgraph.TemplateOriginX, frag.Nodes[0].Position.X)

	t.Run("placed beside the current graph", func(t *testing.T) {
		g := eventgraph.New()
		_, err := g.AddNode(eventgraph.KindZone, eventgraph.Position{X: 400})
		require.NoError(t, err)
		resp, body := do(t, app, http.MethodPost, "/templates/counting/expand", g)
		require.Equal(t, 201, resp.StatusCode)
		var frag eventgraph.Fragment
		require.NoError(t, json.Unmarshal(body, &frag))
		assert.Equal(t, 400+eventgraph.TemplateColumnGap, frag.Nodes[0].Position.X)
		assert.Equal(t, eventgraph.KindZone, frag.Nodes[1].Kind)
	})

	t.Run("bad area", func(t *testing.T) {
		resp, _ := do(t, app, http.MethodPost, "/templates/counting/expand?area=Count", nil)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("unknown template", func(t *testing.T) {
		resp, _ := do(t, app, http.MethodPost, "/templates/nope/expand", nil)
		assert.Equal(t, 404, resp.StatusCode)
	})
}
