// Package engine evaluates parsed manifests against a rule registry and
// assembles the Report. It performs no I/O: sources arrive as bytes from an
// external loader and the Report is handed to a separate renderer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/pankaj-dahiya-devops/manifest-policy/internal/manifest"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/models"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/policy"
	"github.com/pankaj-dahiya-devops/manifest-policy/internal/rules"
)

// Rule IDs of the findings the engine itself produces for sources.
const (
	// SourceParseErrorRuleID marks a source that could not be parsed. None of
	// its documents are evaluated.
	SourceParseErrorRuleID = "SOURCE_PARSE_ERROR"

	// SourceEmptyRuleID marks a source that contains no documents.
	SourceEmptyRuleID = "SOURCE_EMPTY"
)

// Engine orchestrates one evaluation run: parse sources, run every applicable
// rule against every document, apply the policy, and build the Report.
//
// Rules are independent of each other, so (document, rule) evaluations run on
// a bounded worker pool. Findings are collected per document and merged in
// canonical order (source order, document index, rule registration order),
// so the Report does not depend on the number of workers.
type Engine struct {
	registry rules.RuleRegistry
	options  *policy.Options
	policy   *policy.PolicyConfig
	workers  int
}

// NewEngine constructs an Engine. opts may be nil (default standards); cfg
// may be nil (no per-rule overrides). workers <= 0 uses GOMAXPROCS.
func NewEngine(registry rules.RuleRegistry, opts *policy.Options, cfg *policy.PolicyConfig, workers int) *Engine {
	if opts == nil {
		opts = policy.DefaultOptions()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		registry: registry,
		options:  opts,
		policy:   cfg,
		workers:  workers,
	}
}

// Run parses every source and evaluates the resulting documents.
//
// A source that fails to parse yields one SOURCE_PARSE_ERROR finding and is
// otherwise skipped; a source with no documents yields one SOURCE_EMPTY
// warning. Neither aborts the run. The only error Run returns is the
// context's, when the run is cancelled between documents.
func (e *Engine) Run(ctx context.Context, sources []manifest.Source) (*models.Report, error) {
	var (
		docs        []*manifest.Document
		sourceLevel = make(map[string][]models.Finding)
		sourceOrder = make([]string, 0, len(sources))
		seenSource  = make(map[string]struct{}, len(sources))
	)
	for _, src := range sources {
		if _, seen := seenSource[src.ID]; !seen {
			seenSource[src.ID] = struct{}{}
			sourceOrder = append(sourceOrder, src.ID)
		}

		parsed, err := manifest.Parse(src.Content, src.ID)
		if err != nil {
			klog.V(2).InfoS("Source rejected", "source", src.ID, "err", err)
			sourceLevel[src.ID] = append(sourceLevel[src.ID], parseErrorFinding(src.ID, err))
			continue
		}
		if len(parsed) == 0 {
			klog.V(2).InfoS("Source has no documents", "source", src.ID)
			sourceLevel[src.ID] = append(sourceLevel[src.ID], emptySourceFinding(src.ID))
			continue
		}
		klog.V(2).InfoS("Source parsed", "source", src.ID, "documents", len(parsed))
		docs = append(docs, parsed...)
	}

	perDoc, rulesRun, err := e.evaluateAll(ctx, docs)
	if err != nil {
		return nil, err
	}

	// Source-level findings lead their source; document findings follow in
	// document order. docs is already grouped by source in input order.
	var findings []models.Finding
	next := 0
	for _, id := range sourceOrder {
		findings = append(findings, sourceLevel[id]...)
		for next < len(docs) && docs[next].SourceID == id {
			findings = append(findings, perDoc[next]...)
			next++
		}
	}
	// Documents whose source ID repeats out of order still belong in the report.
	for ; next < len(docs); next++ {
		findings = append(findings, perDoc[next]...)
	}

	return e.buildReport(len(sources), len(docs), rulesRun, findings), nil
}

// Evaluate runs every applicable rule against docs, which must already be in
// canonical order. SourcesScanned is the number of distinct source IDs.
func (e *Engine) Evaluate(ctx context.Context, docs []*manifest.Document) (*models.Report, error) {
	perDoc, rulesRun, err := e.evaluateAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	var findings []models.Finding
	sources := make(map[string]struct{})
	for i, doc := range docs {
		sources[doc.SourceID] = struct{}{}
		findings = append(findings, perDoc[i]...)
	}
	return e.buildReport(len(sources), len(docs), rulesRun, findings), nil
}

// evaluateAll fans the documents out over the worker pool. Each document's
// findings land in its own slot, so the merge needs no locking and no sort.
func (e *Engine) evaluateAll(ctx context.Context, docs []*manifest.Document) ([][]models.Finding, int, error) {
	slots := make([][]models.Finding, len(docs))
	runs := make([]int, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Cancellation is honoured between documents, never inside one.
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i], runs[i] = e.evaluateDocument(doc, docs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("evaluation cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("evaluation cancelled: %w", err)
	}

	total := 0
	for _, n := range runs {
		total += n
	}
	return slots, total, nil
}

// evaluateDocument runs the rules applicable to doc in registration order.
// A failing rule contributes one ERROR finding and never stops the others;
// a rule whose AppliesTo panics counts as run and fails the same way.
func (e *Engine) evaluateDocument(doc *manifest.Document, batch []*manifest.Document) ([]models.Finding, int) {
	rctx := rules.RuleContext{
		Document:  doc,
		Documents: batch,
		Options:   e.options,
	}

	var findings []models.Finding
	run := 0
	for _, r := range e.registry.All() {
		applies, err := ruleApplies(r, doc, e.options)
		if err == nil && !applies {
			continue
		}
		run++

		var got []models.Finding
		if err == nil {
			got, err = evaluateRule(r, rctx)
		}
		if err != nil {
			execErr := &rules.RuleExecutionError{
				RuleID:        r.ID(),
				SourceID:      doc.SourceID,
				DocumentIndex: doc.Index,
				Err:           err,
			}
			klog.ErrorS(execErr, "Rule failed", "rule", r.ID(), "source", doc.SourceID, "document", doc.Index)
			findings = append(findings, ruleFailureFinding(doc, execErr))
			continue
		}
		findings = append(findings, policy.ApplyPolicy(got, e.policy)...)
	}
	return findings, run
}

// ruleApplies calls r.AppliesTo, turning a panic into an error.
func ruleApplies(r rules.Rule, doc *manifest.Document, opts *policy.Options) (applies bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			applies = false
			err = fmt.Errorf("panic in applicability check: %v", p)
		}
	}()
	return r.AppliesTo(doc, opts), nil
}

// evaluateRule calls r.Evaluate, turning a panic into an error.
func evaluateRule(r rules.Rule, rctx rules.RuleContext) (findings []models.Finding, err error) {
	defer func() {
		if p := recover(); p != nil {
			findings = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Evaluate(rctx)
}

func (e *Engine) buildReport(sources, documents, rulesRun int, findings []models.Finding) *models.Report {
	if findings == nil {
		findings = []models.Finding{}
	}
	report := &models.Report{
		Passed:           !models.HasErrors(findings),
		SourcesScanned:   sources,
		DocumentsScanned: documents,
		RulesRun:         rulesRun,
		RulesRegistered:  len(e.registry.All()),
		Summary:          models.ComputeSummary(findings),
		Findings:         findings,
	}
	klog.V(1).InfoS("Evaluation complete",
		"sources", sources,
		"documents", documents,
		"rulesRun", rulesRun,
		"findings", len(findings),
		"passed", report.Passed,
	)
	return report
}

// ── engine-generated findings ────────────────────────────────────────────────

func parseErrorFinding(sourceID string, err error) models.Finding {
	msg := err.Error()
	var pe *manifest.ParseError
	if errors.As(err, &pe) {
		msg = pe.Message
		if pe.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", pe.Line, pe.Message)
		}
	}
	return sourceFinding(SourceParseErrorRuleID, models.SeverityError, sourceID, "malformed source: "+msg)
}

func emptySourceFinding(sourceID string) models.Finding {
	return sourceFinding(SourceEmptyRuleID, models.SeverityWarning, sourceID, "source contains no documents")
}

func sourceFinding(ruleID string, sev models.Severity, sourceID, msg string) models.Finding {
	f := models.Finding{
		RuleID:        ruleID,
		Severity:      sev,
		SourceID:      sourceID,
		DocumentIndex: models.SourceLevelIndex,
		Message:       msg,
	}
	f.ID = models.Fingerprint(f)
	return f
}

func ruleFailureFinding(doc *manifest.Document, err *rules.RuleExecutionError) models.Finding {
	f := models.Finding{
		RuleID:        err.RuleID,
		Severity:      models.SeverityError,
		SourceID:      doc.SourceID,
		DocumentIndex: doc.Index,
		Resource:      doc.Ref(),
		Message:       "rule execution failed: " + err.Err.Error(),
	}
	f.ID = models.Fingerprint(f)
	return f
}
