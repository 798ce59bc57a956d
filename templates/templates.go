// Package templates loads pipeline templates from HCL files.
//
// A catalogue file holds any number of template blocks:
//
//	template "counting" {
//	  name = "Counting"
//	  step {
//	    kind = "Object"
//	  }
//	  step {
//	    kind = "Area"
//	  }
//	  step {
//	    kind      = "Count"
//	    condition = ">=3"
//	  }
//	}
//
// Steps are chained in file order. The "Area" kind is a placeholder for the
// Zone or Line chosen when the template is applied.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/meikuraledutech/eventgraph"
)

//go:embed builtin.hcl
var builtinHCL []byte

type fileRoot struct {
	Templates []*templateBlock `hcl:"template,block"`
}

type templateBlock struct {
	Key         string       `hcl:"key,label"`
	Name        string       `hcl:"name"`
	Description string       `hcl:"description,optional"`
	Steps       []*stepBlock `hcl:"step,block"`
}

type stepBlock struct {
	Kind      string      `hcl:"kind"`
	Name      string      `hcl:"name,optional"`
	Condition string      `hcl:"condition,optional"`
	Seconds   *float64    `hcl:"seconds,optional"`
	Direction string      `hcl:"direction,optional"`
	Classes   []string    `hcl:"classes,optional"`
	Points    [][]float64 `hcl:"points,optional"`
}

// Catalogue is an ordered, keyed set of templates.
type Catalogue struct {
	byKey map[string]eventgraph.Template
	keys  []string
}

// Builtin parses the embedded catalogue.
func Builtin() (*Catalogue, error) {
	c := &Catalogue{byKey: map[string]eventgraph.Template{}}
	if err := c.parse(hclparse.NewParser(), builtinHCL, "builtin.hcl"); err != nil {
		return nil, err
	}
	return c, nil
}

// Load returns the built-in catalogue extended with every .hcl file found
// under paths. A template key defined again replaces the earlier one.
// Missing paths are skipped.
func Load(paths ...string) (*Catalogue, error) {
	c, err := Builtin()
	if err != nil {
		return nil, err
	}
	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	parser := hclparse.NewParser()
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("templates: read %s: %w", file, err)
		}
		if err := c.parse(parser, src, file); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalogue) parse(parser *hclparse.Parser, src []byte, filename string) error {
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("templates: parse %s: %w", filename, diags)
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("templates: decode %s: %w", filename, diags)
	}
	for _, block := range root.Templates {
		t, err := translate(block)
		if err != nil {
			return fmt.Errorf("templates: %s: %w", filename, err)
		}
		if _, exists := c.byKey[t.Key]; !exists {
			c.keys = append(c.keys, t.Key)
		}
		c.byKey[t.Key] = t
	}
	return nil
}

func translate(b *templateBlock) (eventgraph.Template, error) {
	t := eventgraph.Template{Key: b.Key, Name: b.Name, Description: b.Description}
	if len(b.Steps) == 0 {
		return t, fmt.Errorf("template %q: %w", b.Key, eventgraph.ErrEmptyTemplate)
	}
	for i, s := range b.Steps {
		kind := eventgraph.Kind(s.Kind)
		if kind != eventgraph.KindArea && !kind.Valid() {
			return t, fmt.Errorf("template %q step %d: %w: %q", b.Key, i, eventgraph.ErrUnknownKind, s.Kind)
		}
		step := eventgraph.TemplateStep{
			Kind: kind,
			Name: s.Name,
			Data: eventgraph.NodeData{
				Condition: s.Condition,
				Seconds:   s.Seconds,
				Direction: eventgraph.Direction(s.Direction),
				Classes:   s.Classes,
			},
		}
		for _, p := range s.Points {
			if len(p) != 2 {
				return t, fmt.Errorf("template %q step %d: point needs 2 coordinates, got %d", b.Key, i, len(p))
			}
			step.Data.Points = append(step.Data.Points, eventgraph.Point{p[0], p[1]})
		}
		t.Steps = append(t.Steps, step)
	}
	return t, nil
}

// Get looks a template up by key or, case-insensitively, by display name.
func (c *Catalogue) Get(name string) (eventgraph.Template, error) {
	if t, ok := c.byKey[name]; ok {
		return t, nil
	}
	for _, key := range c.keys {
		if strings.EqualFold(c.byKey[key].Name, name) {
			return c.byKey[key], nil
		}
	}
	return eventgraph.Template{}, fmt.Errorf("%w: %q", eventgraph.ErrTemplateNotFound, name)
}

// List returns every template in definition order.
func (c *Catalogue) List() []eventgraph.Template {
	out := make([]eventgraph.Template, 0, len(c.keys))
	for _, key := range c.keys {
		out = append(out, c.byKey[key])
	}
	return out
}

// findHCLFiles walks all given paths and returns a sorted list of .hcl files.
func findHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	add := func(p string) {
		if filepath.Ext(p) == ".hcl" && !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("templates: access %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
