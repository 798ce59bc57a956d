package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/eventgraph"
	"github.com/meikuraledutech/eventgraph/client"
	"github.com/meikuraledutech/eventgraph/dot"
	"github.com/meikuraledutech/eventgraph/editor"
	"github.com/meikuraledutech/eventgraph/logging"
	"github.com/meikuraledutech/eventgraph/templates"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "eventgraph",
		Short: "Detection pipeline compiler",
		Long: `eventgraph converts detection pipelines between the editor graph
(JSON or DOT) and the flat record list consumed by the inference compositor.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := logging.New(logLevel, logFormat, cmd.ErrOrStderr())
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(lintCmd())
	root.AddCommand(compileCmd())
	root.AddCommand(decompileCmd())
	root.AddCommand(dotCmd())
	root.AddCommand(templatesCmd())
	root.AddCommand(pushCmd())
	root.AddCommand(pullCmd())
	return root
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <graph.json|graph.dot>",
		Short: "Report per-node warnings of a pipeline graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGraph(cmd, args[0])
			if err != nil {
				return err
			}
			warnings := g.Validate()
			if len(warnings) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "OK: %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
				return nil
			}
			ids := make([]string, 0, len(warnings))
			for id := range warnings {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				n, _ := g.Node(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s %q): %s\n", id, n.Kind, n.Name, warnings[id])
			}
			return fmt.Errorf("%d node(s) with warnings", len(warnings))
		},
	}
}

// ─── compile / decompile ─────────────────────────────────────────────────────

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <graph.json|graph.dot>",
		Short: "Compile a pipeline graph to the compositor payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGraph(cmd, args[0])
			if err != nil {
				return err
			}
			compiled := g.Compile()
			if len(compiled.Elided) > 0 {
				logging.FromContext(cmd.Context()).Warn("nodes without a wire record", "ids", compiled.Elided)
			}
			if len(compiled.Invalid) > 0 {
				logging.FromContext(cmd.Context()).Warn("nodes without a wire payload", "ids", compiled.Invalid)
			}
			return writeJSON(cmd.OutOrStdout(), compiled.Payload)
		},
	}
}

func decompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompile <payload.json>",
		Short: "Rebuild a pipeline graph from a compositor payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var p eventgraph.Payload
			if err := json.Unmarshal(src, &p); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}
			dec := p.Decompile()
			if dec.Lost() {
				logging.FromContext(cmd.Context()).Warn("records left out of the graph",
					"dropped", dec.Dropped, "unplaced", dec.Unplaced)
			}
			return writeJSON(cmd.OutOrStdout(), dec.Graph)
		},
	}
}

// ─── dot ─────────────────────────────────────────────────────────────────────

func dotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dot <graph.json>",
		Short: "Render a pipeline graph as Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGraph(cmd, args[0])
			if err != nil {
				return err
			}
			src, err := dot.Render(g, g.Validate())
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), src)
			return err
		},
	}
}

// ─── templates ───────────────────────────────────────────────────────────────

func templatesCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and expand pipeline templates",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "directory with extra .hcl template files")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := templates.Load(dir)
			if err != nil {
				return err
			}
			for _, t := range c.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %-18s %s\n", t.Key, t.Name, t.Description)
			}
			return nil
		},
	}

	var area string
	expand := &cobra.Command{
		Use:   "expand <template> [graph.json]",
		Short: "Append a template to a graph (or an empty one) and print it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := templates.Load(dir)
			if err != nil {
				return err
			}
			t, err := c.Get(args[0])
			if err != nil {
				return err
			}
			g := eventgraph.New()
			if len(args) == 2 {
				if g, err = readGraph(cmd, args[1]); err != nil {
					return err
				}
			}
			if _, err := g.ApplyTemplate(t, eventgraph.Kind(area)); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), g)
		},
	}
	expand.Flags().StringVar(&area, "area", string(eventgraph.KindZone), "area kind for the template (Zone or Line)")

	cmd.AddCommand(list, expand)
	return cmd
}

// ─── push / pull ─────────────────────────────────────────────────────────────

type target struct {
	server, app, camera string
}

func (t *target) flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.server, "server", "http://localhost:3000", "eventgraphd base URL")
	cmd.Flags().StringVar(&t.app, "app", "", "vision app id")
	cmd.Flags().StringVar(&t.camera, "camera", "", "camera id")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("camera")
}

func pushCmd() *cobra.Command {
	var to target
	cmd := &cobra.Command{
		Use:   "push <graph.json|graph.dot>",
		Short: "Compile a graph and save it for a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGraph(cmd, args[0])
			if err != nil {
				return err
			}
			s := editor.OpenSession(to.app, to.camera, g, nil)
			compiled, err := s.Save(cmd.Context(), client.New(to.server))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d record(s) for %s/%s\n",
				len(compiled.Payload.Configs), to.app, to.camera)
			return nil
		},
	}
	to.flags(cmd)
	return cmd
}

func pullCmd() *cobra.Command {
	var from target
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Load the saved pipeline of a camera as a graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := editor.NewSession(from.app, from.camera, nil)
			if _, err := s.Load(cmd.Context(), client.New(from.server)); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s.Graph())
		},
	}
	from.flags(cmd)
	return cmd
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return src, nil
}

// readGraph decodes a graph from JSON, or from DOT for .dot/.gv files.
func readGraph(cmd *cobra.Command, path string) (*eventgraph.Graph, error) {
	src, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".dot", ".gv":
		return dot.Parse(string(src))
	}
	g := eventgraph.New()
	if err := json.Unmarshal(src, g); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	return g, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
