// internal/probe/probe.go

// Package probe runs invariant experiments against a live deployment. Each
// experiment drives the public API the way a hostile client would and then
// checks the database for invariant violations: duplicate open matches,
// resurrected terminal matches, orphaned rows after cascades.
package probe

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jagadesh17/exchangeease/internal/clients"
)

// ErrSteadyStateInvalid aborts an experiment whose preconditions fail.
var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Metric is a measurable system property with an acceptable range.
type Metric struct {
	Name  string
	Query func(context.Context) (float64, error)
	Want  func(float64) bool
}

// Action is one step of an experiment's method.
type Action struct {
	Name    string
	Execute func(context.Context) error
}

// Assertion validates an invariant after the method has run.
type Assertion struct {
	Name    string
	Check   func(context.Context) (bool, string)
	Message string
}

// Experiment describes one invariant test end to end.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Validation  []Assertion
}

// Violation records an assertion or metric that did not hold.
type Violation struct {
	Name      string    `json:"name"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Result captures one experiment run.
type Result struct {
	ExperimentName string        `json:"experiment_name"`
	StartTime      time.Time     `json:"start_time"`
	Duration       time.Duration `json:"duration"`
	HypothesisHeld bool          `json:"hypothesis_held"`
	Violations     []Violation   `json:"violations"`
}

// Runner executes experiments against one deployment.
type Runner struct {
	tracer      trace.Tracer
	db          *sql.DB
	profiles    *clients.ProfileClient
	catalogURL  string
	exchangeURL string

	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

// NewRunner wires a probe against the given service endpoints. The
// database handle is for invariant scans only; all mutations go through
// the HTTP surface.
func NewRunner(db *sql.DB, profileURL, catalogURL, exchangeURL string) *Runner {
	return &Runner{
		tracer:      otel.Tracer("exchangeease/probe"),
		db:          db,
		profiles:    clients.NewProfileClient(profileURL),
		catalogURL:  catalogURL,
		exchangeURL: exchangeURL,
	}
}

// Register adds an experiment to the suite.
func (r *Runner) Register(exp Experiment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experiments = append(r.experiments, exp)
}

// Experiments returns the registered suite.
func (r *Runner) Experiments() []Experiment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.experiments
}

// Results returns every run recorded so far.
func (r *Runner) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

// Run executes a single experiment: verify steady state, run the method,
// then validate the invariants.
func (r *Runner) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "probe.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)))
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
	}

	span.AddEvent("validating_steady_state")
	for _, metric := range exp.SteadyState {
		value, err := metric.Query(ctx)
		if err != nil || !metric.Want(value) {
			detail := "metric out of range"
			if err != nil {
				detail = err.Error()
			}
			result.Violations = append(result.Violations, Violation{
				Name:      metric.Name,
				Detail:    detail,
				Timestamp: time.Now(),
			})
		}
	}
	if len(result.Violations) > 0 {
		result.Duration = time.Since(result.StartTime)
		return result, ErrSteadyStateInvalid
	}

	span.AddEvent("running_method")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
			result.Violations = append(result.Violations, Violation{
				Name:      action.Name,
				Detail:    err.Error(),
				Timestamp: time.Now(),
			})
		}
	}

	span.AddEvent("validating_assertions")
	result.HypothesisHeld = true
	for _, assertion := range exp.Validation {
		ok, detail := assertion.Check(ctx)
		if !ok {
			result.HypothesisHeld = false
			if detail == "" {
				detail = assertion.Message
			}
			result.Violations = append(result.Violations, Violation{
				Name:      assertion.Name,
				Detail:    detail,
				Timestamp: time.Now(),
			})
		}
	}
	result.Duration = time.Since(result.StartTime)

	r.mu.Lock()
	r.results = append(r.results, *result)
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// RunAll executes the registered suite in order and reports the first
// hard failure.
func (r *Runner) RunAll(ctx context.Context) ([]Result, error) {
	var out []Result
	for _, exp := range r.Experiments() {
		result, err := r.Run(ctx, exp)
		if result != nil {
			out = append(out, *result)
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
