package eventgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Compositor decides whether a saved payload can run on the remote
// inference pipeline. A rejection is not an error.
type Compositor interface {
	Accept(ctx context.Context, appID, cameraID string, p Payload) (accepted bool, message string, err error)
}

// CheckingCompositor accepts payloads that satisfy the wire invariants.
// MaxRecords of zero means unlimited.
type CheckingCompositor struct {
	MaxRecords int
}

// Accept implements Compositor.
func (c CheckingCompositor) Accept(_ context.Context, _, _ string, p Payload) (bool, string, error) {
	if c.MaxRecords > 0 && len(p.Configs) > c.MaxRecords {
		return false, fmt.Sprintf("pipeline has %d records, limit is %d", len(p.Configs), c.MaxRecords), nil
	}
	if errs := CheckPayload(p); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return false, strings.Join(msgs, "; "), nil
	}
	return true, "", nil
}

// RecordError describes a wire invariant violated by one record.
type RecordError struct {
	RecordID string
	Message  string
}

func (e RecordError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("record %q: %s", e.RecordID, e.Message)
	}
	return e.Message
}

var errVersion = errors.New("unsupported schema version")

// CheckPayload returns every wire invariant violated by p, not just the first.
func CheckPayload(p Payload) []error {
	var errs []error
	if p.Version != SchemaVersion {
		errs = append(errs, fmt.Errorf("%w %q, want %q", errVersion, p.Version, SchemaVersion))
	}

	ids := make(map[string]int, len(p.Configs))
	for _, rec := range p.Configs {
		ids[rec.ID]++
	}

	for _, rec := range p.Configs {
		fail := func(format string, args ...any) {
			errs = append(errs, RecordError{RecordID: rec.ID, Message: fmt.Sprintf(format, args...)})
		}
		if rec.ID == "" {
			fail("missing eventSettingId")
		} else if ids[rec.ID] > 1 {
			fail("duplicate eventSettingId")
		}
		if rec.ParentID != "" {
			if rec.ParentID == rec.ID {
				fail("record is its own parent")
			} else if ids[rec.ParentID] == 0 {
				fail("parentId %q not in payload", rec.ParentID)
			}
		}

		switch rec.EventType {
		case WireROI:
			if len(rec.Points) < 3 {
				fail("ROI needs at least 3 points, got %d", len(rec.Points))
			}
		case WireLine:
			if len(rec.Points) != 2 {
				fail("Line needs exactly 2 points, got %d", len(rec.Points))
			}
			if !rec.Direction.Valid() {
				fail("invalid direction %q", rec.Direction)
			}
		case WireFilter:
			switch f := rec.Filter.(type) {
			case nil:
				fail("Filter needs ncond or timeout")
			case TimeoutFilter:
				if !finite(f.Seconds) || f.Seconds < 0 {
					fail("invalid timeout %v", f.Seconds)
				}
			}
		case WireAlarm:
			if _, err := DecodeSensors(rec.Ext); err != nil {
				fail("%v", err)
			}
		case WireSpeed, WireAnd:
		default:
			fail("unknown eventType %q", rec.EventType)
		}

		for _, pt := range rec.Points {
			if !inUnitRange(pt) {
				fail("point %v outside [0,1]", pt)
				break
			}
		}
	}
	if err := validateAcyclic(p.Configs); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// validateAcyclic checks that the parentId links don't form a cycle using
// DFS. Self parents are reported per record and skipped here.
func validateAcyclic(configs []EventSetting) error {
	adj := make(map[string][]string)
	for _, rec := range configs {
		if rec.ParentID != "" && rec.ParentID != rec.ID {
			adj[rec.ParentID] = append(adj[rec.ParentID], rec.ID)
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int)
	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	for _, rec := range configs {
		if state[rec.ID] == unvisited && dfs(rec.ID) {
			return fmt.Errorf("%w: parentId chain through %q", ErrCycleDetected, rec.ID)
		}
	}
	return nil
}
