// Package validate orchestrates the patch-then-check pipeline: it sequences
// the Patcher and the rules Engine and assembles the results the API and MCP
// surfaces hand back to callers.
package validate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/patch"
	"github.com/rmax-ai/netlord/pkg/rules"
)

// ValidationUnavailableError signals that a mutation (if any) succeeded but
// validation could not run — unknown rule set, or the validation deadline
// expired. The caller decides whether to proceed unvalidated or revert via
// the inverse batch.
type ValidationUnavailableError struct {
	Version int64
	Cause   error
}

func (e *ValidationUnavailableError) Error() string {
	return fmt.Sprintf("validate: validation unavailable for version %d: %v", e.Version, e.Cause)
}

func (e *ValidationUnavailableError) Unwrap() error { return e.Cause }

// Result bundles the outcome of an apply-and-validate call. Report is nil
// when validation was unavailable; Version and Inverse are always set once
// the commit succeeded.
type Result struct {
	Version *graph.Version
	Report  *rules.Report
	Inverse *patch.Batch
}

// Validator is the façade over the graph store, patcher, and rules engine.
// Patch application and rule evaluation are decoupled failure domains: a
// commit never depends on whether validation can run afterwards.
type Validator struct {
	store   *graph.Store
	patcher *patch.Patcher
	engine  *rules.Engine
}

// New creates a Validator over a graph store and a configured engine.
func New(store *graph.Store, engine *rules.Engine) *Validator {
	return &Validator{
		store:   store,
		patcher: patch.New(store),
		engine:  engine,
	}
}

// Store exposes the underlying graph store (read paths of the API).
func (v *Validator) Store() *graph.Store { return v.store }

// Engine exposes the configured rules engine.
func (v *Validator) Engine() *rules.Engine { return v.engine }

// ApplyAndValidate applies the batch against base, then runs the named rule
// set on the new version. A patch failure short-circuits: validation is never
// attempted and the patch error is returned untouched. If the rule set is
// unknown or the context expires during evaluation, the returned Result still
// carries the committed version and inverse batch, alongside a
// *ValidationUnavailableError.
func (v *Validator) ApplyAndValidate(ctx context.Context, base int64, batch *patch.Batch, ruleSet string) (*Result, error) {
	start := time.Now()
	version, inverse, err := v.patcher.Apply(base, batch)
	if err != nil {
		observeCommit(err)
		return nil, err
	}
	observeCommit(nil)
	commitSeconds.Observe(time.Since(start).Seconds())
	graphNodes.Set(float64(len(version.Nodes)))
	graphEdges.Set(float64(len(version.Edges)))

	result := &Result{Version: version, Inverse: inverse}
	report, err := v.run(ctx, version, ruleSet)
	if err != nil {
		return result, &ValidationUnavailableError{Version: version.N, Cause: err}
	}
	result.Report = report
	return result, nil
}

// ValidateOnly re-checks an existing version without mutation ("re-run ERC").
func (v *Validator) ValidateOnly(ctx context.Context, versionN int64, ruleSet string) (*rules.Report, error) {
	version, err := v.store.Get(versionN)
	if err != nil {
		return nil, err
	}
	return v.run(ctx, version, ruleSet)
}

// run executes the engine under the caller's deadline. The engine itself has
// no blocking I/O; the context only caps total wall time.
func (v *Validator) run(ctx context.Context, version *graph.Version, ruleSet string) (*rules.Report, error) {
	type outcome struct {
		report *rules.Report
		err    error
	}
	ch := make(chan outcome, 1)
	start := time.Now()
	go func() {
		report, err := v.engine.Run(version, ruleSet)
		ch <- outcome{report: report, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		if out.err != nil {
			return nil, out.err
		}
		ruleRunSeconds.WithLabelValues(ruleSet).Observe(time.Since(start).Seconds())
		counts := make(map[rules.Severity]int)
		for _, viol := range out.report.Violations {
			counts[viol.Severity]++
		}
		for sev := rules.SeverityInfo; sev <= rules.SeverityFatal; sev++ {
			violationsGauge.WithLabelValues(sev.String()).Set(float64(counts[sev]))
		}
		return out.report, nil
	}
}

// observeCommit maps a commit outcome onto the commit counter labels.
func observeCommit(err error) {
	switch {
	case err == nil:
		commitsTotal.WithLabelValues("committed").Inc()
	case isStale(err):
		commitsTotal.WithLabelValues("stale_base").Inc()
	case isStructural(err):
		commitsTotal.WithLabelValues("structural").Inc()
	case isSchema(err):
		commitsTotal.WithLabelValues("schema").Inc()
	default:
		commitsTotal.WithLabelValues("error").Inc()
	}
}

func isStale(err error) bool {
	var e *graph.StaleBaseError
	return errors.As(err, &e)
}

func isStructural(err error) bool {
	var e *graph.StructuralError
	return errors.As(err, &e)
}

func isSchema(err error) bool {
	var e *patch.SchemaError
	return errors.As(err, &e)
}
