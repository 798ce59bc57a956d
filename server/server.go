// Package server exposes the pipeline compiler and the inference record
// store over HTTP.
package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/eventgraph"
	"github.com/meikuraledutech/eventgraph/dot"
	"github.com/meikuraledutech/eventgraph/editor"
	"github.com/meikuraledutech/eventgraph/templates"
)

// Options wires the server's collaborators. Compositor defaults to a
// CheckingCompositor, Templates to the built-in catalogue and Logger to
// slog.Default().
type Options struct {
	Store      eventgraph.Store
	Compositor eventgraph.Compositor
	Templates  *templates.Catalogue
	Logger     *slog.Logger
}

// New builds the fiber app with every route registered.
func New(opts Options) (*fiber.App, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Compositor == nil {
		opts.Compositor = eventgraph.CheckingCompositor{}
	}
	if opts.Templates == nil {
		c, err := templates.Builtin()
		if err != nil {
			return nil, err
		}
		opts.Templates = c
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	store, catalogue, logger := opts.Store, opts.Templates, opts.Logger
	saver := editor.Local{Store: opts.Store, Compositor: opts.Compositor}

	app := fiber.New(fiber.Config{UnescapePath: true})

	app.Use(func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start))
		return err
	})

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Inference records ─────────────────────────────────────────────
	app.Get("/apps/:appId/inferences", func(c fiber.Ctx) error {
		recs, err := store.ListInferences(c.Context(), c.Params("appId"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(recs)
	})

	app.Get("/apps/:appId/cameras/:cameraId/inference", func(c fiber.Ctx) error {
		rec, err := store.GetInference(c.Context(), c.Params("appId"), c.Params("cameraId"))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if rec == nil {
			return c.Status(404).JSON(fiber.Map{"error": "inference not found"})
		}
		return c.JSON(rec)
	})

	app.Put("/apps/:appId/cameras/:cameraId/inference", func(c fiber.Ctx) error {
		var p eventgraph.Payload
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		appID, cameraID := c.Params("appId"), c.Params("cameraId")

		res, err := saver.SaveInference(c.Context(), appID, cameraID, p)
		if errors.Is(err, editor.ErrCompositorUnavailable) {
			logger.Error("compositor unavailable", "app", appID, "camera", cameraID, "error", err)
			return c.Status(502).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, eventgraph.ErrInvalidRecord) {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if res.Accepted {
			logger.Info("inference saved", "app", appID, "camera", cameraID, "records", len(p.Configs))
		} else {
			logger.Warn("inference rejected", "app", appID, "camera", cameraID, "message", res.Message)
		}
		return c.JSON(res)
	})

	app.Delete("/apps/:appId/cameras/:cameraId/inference", func(c fiber.Ctx) error {
		if err := store.DeleteInference(c.Context(), c.Params("appId"), c.Params("cameraId")); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendStatus(204)
	})

	// ── Graph tools ───────────────────────────────────────────────────
	app.Post("/graph/validate", func(c fiber.Ctx) error {
		var g eventgraph.Graph
		if err := c.Bind().JSON(&g); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return c.JSON(g.Validate())
	})

	app.Post("/graph/compile", func(c fiber.Ctx) error {
		var g eventgraph.Graph
		if err := c.Bind().JSON(&g); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return c.JSON(g.Compile())
	})

	app.Post("/graph/decompile", func(c fiber.Ctx) error {
		var p eventgraph.Payload
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return c.JSON(p.Decompile())
	})

	app.Post("/graph/dot", func(c fiber.Ctx) error {
		var g eventgraph.Graph
		if err := c.Bind().JSON(&g); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		src, err := dot.Render(&g, g.Validate())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		c.Set(fiber.HeaderContentType, "text/vnd.graphviz")
		return c.SendString(src)
	})

	// ── Templates ─────────────────────────────────────────────────────
	app.Get("/templates", func(c fiber.Ctx) error {
		return c.JSON(catalogue.List())
	})

	app.Post("/templates/:name/expand", func(c fiber.Ctx) error {
		t, err := catalogue.Get(c.Params("name"))
		if errors.Is(err, eventgraph.ErrTemplateNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "template not found"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		// The body optionally carries the current graph so the fragment is
		// placed beside it.
		var g eventgraph.Graph
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&g); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		area := eventgraph.Kind(c.Query("area", string(eventgraph.KindZone)))
		frag, err := eventgraph.ExpandTemplate(t, area, g.Nodes)
		if errors.Is(err, eventgraph.ErrInvalidArea) {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(frag)
	})

	return app, nil
}
