package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/eventgraph"
	"github.com/meikuraledutech/eventgraph/editor"
	"github.com/meikuraledutech/eventgraph/logging"
	"github.com/meikuraledutech/eventgraph/postgres"
	"github.com/meikuraledutech/eventgraph/templates"
)

func main() {
	logger := logging.New("info", "text", os.Stderr)
	ctx := logging.WithLogger(context.Background(), logger)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	// Wire up the postgres implementation behind the Store interface.
	var store eventgraph.Store = postgres.New(pool)
	backend := editor.Local{Store: store, Compositor: eventgraph.CheckingCompositor{MaxRecords: 32}}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Build a pipeline from a template ──────────────────────────────
	catalogue, err := templates.Builtin()
	if err != nil {
		log.Fatalf("templates: %v", err)
	}
	loitering, err := catalogue.Get("loitering")
	if err != nil {
		log.Fatalf("template: %v", err)
	}

	bus := editor.NewBus()
	bus.Subscribe(func(ev editor.Event) {
		if ev.Type == editor.EdgeRemoved {
			fmt.Printf("edge removed: %s -> %s\n", ev.Edge.Source, ev.Edge.Target)
		}
	})

	session := editor.NewSession("people-counter", "gate-cam-1", bus)
	frag, err := session.ApplyTemplate(loitering, eventgraph.KindZone)
	if err != nil {
		log.Fatalf("apply template: %v", err)
	}
	object, zone, alarm := frag.Nodes[0], frag.Nodes[1], frag.Nodes[3]

	outputs := []eventgraph.AppOutput{{Label: "person", Classifiers: []string{"helmet", "vest"}}}
	classes := eventgraph.ClassOptions(outputs)
	if err := session.UpdateNode(object.ID, "Workers", eventgraph.NodeData{
		Classes:     classes,
		Classifiers: eventgraph.ClassifierOptions(outputs, classes)[:1],
	}); err != nil {
		log.Fatalf("update object: %v", err)
	}
	if err := session.UpdateNode(alarm.ID, "Gate siren", eventgraph.NodeData{
		Sensors: []eventgraph.SensorBinding{{SensorID: 12, SensorTypeID: 3, AlarmChannel: 1, AlarmValue: 1, DurationSeconds: 5, Priority: 2}},
	}); err != nil {
		log.Fatalf("update alarm: %v", err)
	}

	// ── Insert a speed stage between zone and dwell ───────────────────
	speed, err := session.AddNode(eventgraph.KindSpeed, eventgraph.Position{X: zone.Position.X + 200, Y: zone.Position.Y})
	if err != nil {
		log.Fatalf("add node: %v", err)
	}
	if _, err := session.Connect(zone.ID, speed.ID); err != nil {
		log.Fatalf("connect: %v", err)
	}
	if _, err := session.Connect(speed.ID, frag.Nodes[2].ID); err != nil {
		log.Fatalf("connect: %v", err)
	}
	fmt.Printf("warnings: %v\n", session.Warnings())

	// ── Save ──────────────────────────────────────────────────────────
	compiled, err := session.Save(ctx, backend)
	var rejected *editor.RejectedError
	switch {
	case errors.As(err, &rejected):
		fmt.Printf("stored, but rejected by compositor: %s\n", rejected.Message)
	case err != nil:
		log.Fatalf("save: %v", err)
	default:
		fmt.Println("\npipeline saved:")
		printJSON(compiled.Payload)
	}

	// ── Reload in a fresh session ─────────────────────────────────────
	reopened := editor.NewSession("people-counter", "gate-cam-1", nil)
	dec, err := reopened.Load(ctx, backend)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	fmt.Printf("\nreloaded graph (%d nodes, %d edges, object nodes are not restored):\n",
		len(dec.Graph.Nodes), len(dec.Graph.Edges))
	printJSON(dec.Graph)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteInference(ctx, "people-counter", "gate-cam-1"); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\ninference deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
