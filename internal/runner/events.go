package runner

import (
	"fmt"
	"time"

	"github.com/torosent/provbench/internal/stats"
)

// State is the lifecycle of a run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "running":
		*s = StateRunning
	case "completed":
		*s = StateCompleted
	case "stopped":
		*s = StateStopped
	case "failed":
		*s = StateFailed
	default:
		return fmt.Errorf("unknown run state %q", text)
	}
	return nil
}

// RunSnapshot is the point-in-time state of a run. Providers maps provider
// id to scenario id to summary; pairs without any landed outcome are absent.
type RunSnapshot struct {
	ID                    string                                      `json:"id" yaml:"id"`
	State                 State                                       `json:"state" yaml:"state"`
	Providers             map[string]map[string]stats.ScenarioSummary `json:"providers" yaml:"providers"`
	Skipped               map[string]string                           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Timestamp             time.Time                                   `json:"timestamp" yaml:"timestamp"`
	StartedAt             time.Time                                   `json:"started_at" yaml:"started_at"`
	IterationsPerScenario int                                         `json:"iterations_per_scenario" yaml:"iterations_per_scenario"`
	InProgress            bool                                        `json:"in_progress" yaml:"in_progress"`
	Completed             int                                         `json:"completed" yaml:"completed"`
	Total                 int                                         `json:"total" yaml:"total"`
	PairsCompleted        int                                         `json:"pairs_completed" yaml:"pairs_completed"`
	PairsTotal            int                                         `json:"pairs_total" yaml:"pairs_total"`
}

// Summaries returns every summary ordered by provider then scenario id.
func (s RunSnapshot) Summaries() []stats.ScenarioSummary {
	var out []stats.ScenarioSummary
	for _, p := range sortedKeys(s.Providers) {
		scenarios := s.Providers[p]
		for _, sc := range sortedKeys(scenarios) {
			out = append(out, scenarios[sc])
		}
	}
	return out
}

// Summary looks up one pair.
func (s RunSnapshot) Summary(providerID, scenario string) (stats.ScenarioSummary, bool) {
	summary, ok := s.Providers[providerID][scenario]
	return summary, ok
}

// Event is delivered on RunHandle.Events: a ProgressEvent, ResultEvent or
// SnapshotEvent.
type Event interface {
	event()
}

// ProgressEvent fires for every landed outcome.
type ProgressEvent struct {
	Provider      string
	Scenario      string
	PairCompleted int
	PairTotal     int
	Completed     int
	Total         int
	Outcome       stats.CallOutcome
}

// ResultEvent fires once per pair when its summary is final.
type ResultEvent struct {
	Summary stats.ScenarioSummary
}

// SnapshotEvent carries a partial snapshot after each landed outcome and the
// final one (InProgress false) exactly once.
type SnapshotEvent struct {
	Snapshot RunSnapshot
}

func (ProgressEvent) event() {}
func (ResultEvent) event()   {}
func (SnapshotEvent) event() {}
