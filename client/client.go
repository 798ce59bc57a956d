// Package client talks to an eventgraphd server. It implements
// editor.Saver and editor.Loader so a session can save over HTTP.
package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v3/client"

	"github.com/meikuraledutech/eventgraph"
)

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: server returned %d: %s", e.Code, e.Message)
}

// Client is an eventgraphd API client.
type Client struct {
	http *client.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{http: client.New().SetBaseURL(baseURL)}
}

func inferencePath(appID, cameraID string) string {
	return "/apps/" + url.PathEscape(appID) + "/cameras/" + url.PathEscape(cameraID) + "/inference"
}

// SaveInference stores p for the camera. A false Accepted in the result is
// the compositor's verdict, not an error.
func (c *Client) SaveInference(ctx context.Context, appID, cameraID string, p eventgraph.Payload) (eventgraph.SaveResult, error) {
	var res eventgraph.SaveResult
	resp, err := c.http.Put(inferencePath(appID, cameraID), client.Config{Ctx: ctx, Body: p})
	if err != nil {
		return res, fmt.Errorf("client: save inference: %w", err)
	}
	defer resp.Close()
	if err := decode(resp, &res); err != nil {
		return res, err
	}
	return res, nil
}

// LoadInference returns the stored record, or nil, nil if there is none.
func (c *Client) LoadInference(ctx context.Context, appID, cameraID string) (*eventgraph.InferenceRecord, error) {
	resp, err := c.http.Get(inferencePath(appID, cameraID), client.Config{Ctx: ctx})
	if err != nil {
		return nil, fmt.Errorf("client: load inference: %w", err)
	}
	defer resp.Close()
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	var rec eventgraph.InferenceRecord
	if err := decode(resp, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteInference removes the stored record of the camera.
func (c *Client) DeleteInference(ctx context.Context, appID, cameraID string) error {
	resp, err := c.http.Delete(inferencePath(appID, cameraID), client.Config{Ctx: ctx})
	if err != nil {
		return fmt.Errorf("client: delete inference: %w", err)
	}
	defer resp.Close()
	return decode(resp, nil)
}

// Validate asks the server for the warnings of g.
func (c *Client) Validate(ctx context.Context, g *eventgraph.Graph) (eventgraph.Warnings, error) {
	resp, err := c.http.Post("/graph/validate", client.Config{Ctx: ctx, Body: g})
	if err != nil {
		return nil, fmt.Errorf("client: validate: %w", err)
	}
	defer resp.Close()
	w := eventgraph.Warnings{}
	if err := decode(resp, &w); err != nil {
		return nil, err
	}
	return w, nil
}

// Templates lists the server's template catalogue.
func (c *Client) Templates(ctx context.Context) ([]eventgraph.Template, error) {
	resp, err := c.http.Get("/templates", client.Config{Ctx: ctx})
	if err != nil {
		return nil, fmt.Errorf("client: templates: %w", err)
	}
	defer resp.Close()
	var out []eventgraph.Template
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decode maps non-2xx responses to *StatusError and unmarshals the body
// into v when v is non-nil.
func decode(resp *client.Response, v any) error {
	if code := resp.StatusCode(); code < 200 || code > 299 {
		var body struct {
			Error string `json:"error"`
		}
		if err := resp.JSON(&body); err != nil || body.Error == "" {
			body.Error = string(resp.Body())
		}
		return &StatusError{Code: code, Message: body.Error}
	}
	if v == nil {
		return nil
	}
	if err := resp.JSON(v); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
