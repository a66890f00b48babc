package detector

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
)

// EvaluateFunc derives candidate alerts from a snapshot. It must not mutate
// the snapshot or perform I/O.
type EvaluateFunc func(snap *asset.Snapshot, now time.Time) []*alert.Alert

// Evaluator is one named alert rule
type Evaluator struct {
	Name     string
	Sources  []asset.Source
	Produces []alert.Type
	Evaluate EvaluateFunc
}

// Failure records an evaluator that did not run to completion
type Failure struct {
	Evaluator string
	Err       error
}

// Result is the outcome of running every evaluator once
type Result struct {
	Alerts   []*alert.Alert
	Failures []Failure
	// Succeeded holds the names of evaluators that ran to completion
	Succeeded map[string]bool
}

// Engine runs a fixed set of evaluators
type Engine struct {
	evaluators []Evaluator
}

// NewEngine creates an engine with the given evaluators, or the default rule
// set when none are passed.
func NewEngine(evaluators ...Evaluator) *Engine {
	if len(evaluators) == 0 {
		evaluators = DefaultEvaluators()
	}
	return &Engine{evaluators: evaluators}
}

// Run evaluates every rule against snap. Evaluators whose sources failed are
// skipped and a panicking evaluator is reported instead of aborting the run.
func (e *Engine) Run(snap *asset.Snapshot, now time.Time) *Result {
	res := &Result{Succeeded: make(map[string]bool, len(e.evaluators))}
	seen := make(map[string]bool)

	for _, ev := range e.evaluators {
		if !snap.Available(ev.Sources...) {
			res.Failures = append(res.Failures, Failure{
				Evaluator: ev.Name,
				Err:       fmt.Errorf("snapshot sources unavailable: %v", missing(snap, ev.Sources)),
			})
			continue
		}

		alerts, err := runGuarded(ev, snap, now)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Evaluator: ev.Name, Err: err})
			continue
		}

		res.Succeeded[ev.Name] = true
		for _, a := range alerts {
			if a == nil || seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			res.Alerts = append(res.Alerts, a)
		}
	}

	return res
}

// Owner returns the evaluator that produces alert type t for the given
// subject, if any.
func (e *Engine) Owner(t alert.Type, subject string) (Evaluator, bool) {
	for _, ev := range e.evaluators {
		for _, produced := range ev.Produces {
			if produced != t {
				continue
			}
			// Issue aggregates share the asset_damaged type with the condition rule
			if t == alert.TypeAssetDamaged && (subject == IssuesSubject) != (ev.Name == EvaluatorUnresolvedIssues) {
				continue
			}
			return ev, true
		}
	}
	return Evaluator{}, false
}

func runGuarded(ev Evaluator, snap *asset.Snapshot, now time.Time) (alerts []*alert.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator %s panicked: %v\n%s", ev.Name, r, debug.Stack())
		}
	}()
	return ev.Evaluate(snap, now), nil
}

func missing(snap *asset.Snapshot, sources []asset.Source) []asset.Source {
	var out []asset.Source
	for _, s := range sources {
		if !snap.Available(s) {
			out = append(out, s)
		}
	}
	return out
}
