// Package runner executes tree nodes against the external test runner and
// applies the resulting state transitions.
package runner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/metrics"
	"github.com/specvital/explorer/pkg/process"
	"github.com/specvital/explorer/pkg/report"
)

// DefaultSeparator ends the wrapper's own arguments so the rest reach the test runner.
const DefaultSeparator = "--"

const noColorFlag = "--colors=never"

// ErrNilTree is returned when Run is given no tree.
var ErrNilTree = errors.New("runner: nil tree")

// ProcessRunner executes one runner invocation.
type ProcessRunner interface {
	Run(ctx context.Context, command string) (*process.Result, error)
}

// EventSink receives state transitions as they happen.
type EventSink interface {
	Emit(domain.Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(domain.Event)

func (f EventSinkFunc) Emit(e domain.Event) { f(e) }

// DiagnosticSink receives located failures.
type DiagnosticSink interface {
	Add(domain.Diagnostic)
	// Clear drops diagnostics of files, or all of them when none are given.
	Clear(files ...string)
}

// Summary describes a finished batch.
type Summary struct {
	RunID string
	// Executed lists the ids whose invocation finished and was correlated.
	Executed []string
	// Skipped lists requested ids not present in the tree.
	Skipped []string
	// Cancelled is set when the context ended the batch.
	Cancelled bool
	// Aborted is set when an invocation terminated abnormally.
	Aborted bool
	// AbortedID, ExitCode and Signal describe the aborting invocation.
	AbortedID string
	ExitCode  int
	Signal    string
	// Passed and Failed count test outcomes resolved in this batch.
	Passed   int
	Failed   int
	Duration time.Duration
}

// Outcome returns the metrics outcome label of the batch.
func (s Summary) Outcome() string {
	switch {
	case s.Cancelled:
		return metrics.OutcomeCancelled
	case s.Aborted:
		return metrics.OutcomeAborted
	default:
		return metrics.OutcomeCompleted
	}
}

// Orchestrator runs batches of node ids sequentially.
// It holds no per-run state, so one Orchestrator may serve many runs, but
// runs against the same tree must not overlap.
type Orchestrator struct {
	command   string
	separator string
	proc      ProcessRunner
	parser    report.Parser
	events    EventSink
	diags     DiagnosticSink
	metrics   metrics.Metricer
	log       log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSeparator sets the token placed between the command and the filter
// arguments. Empty means the arguments follow the command directly.
func WithSeparator(sep string) Option {
	return func(o *Orchestrator) {
		o.separator = sep
	}
}

// WithParser replaces the PHPUnit output parser.
func WithParser(p report.Parser) Option {
	return func(o *Orchestrator) {
		o.parser = p
	}
}

// WithEvents sets the event sink.
func WithEvents(sink EventSink) Option {
	return func(o *Orchestrator) {
		o.events = sink
	}
}

// WithDiagnostics sets the diagnostic sink.
func WithDiagnostics(sink DiagnosticSink) Option {
	return func(o *Orchestrator) {
		o.diags = sink
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Metricer) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// New creates an Orchestrator invoking command through proc.
func New(command string, proc ProcessRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		command:   command,
		separator: DefaultSeparator,
		proc:      proc,
		metrics:   metrics.Noop{},
		log:       log.Root(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.New("component", "runner")
	if o.parser == nil {
		o.parser = report.NewPHPUnit(o.log)
	}
	return o
}

// Command builds the runner invocation for node. The root runs everything,
// a suite filters by class name and a test by a pattern anchored on its id.
func (o *Orchestrator) Command(tree *domain.Tree, node *domain.Node) string {
	var args []string
	switch {
	case tree.IsRoot(node):
	case node.IsSuite():
		args = append(args, "--filter", node.Label)
	default:
		args = append(args, "--filter", `"/`+node.ID+`(\s.*)?$/"`)
	}
	args = append(args, noColorFlag)

	parts := []string{o.command}
	if o.separator != "" {
		parts = append(parts, o.separator)
	}
	return strings.Join(append(parts, args...), " ")
}

type nodeResult int

const (
	nodeDone nodeResult = iota
	nodeCancelled
	nodeAborted
)

// Run executes ids in order. Unknown ids are skipped. The batch stops at the
// first cancelled or abnormally terminated invocation, whose subtree is reset
// to pending. Suite states of the whole tree are recomputed once at the end.
// Test-level problems never surface as errors; they are reflected in the tree,
// the events and the Summary.
func (o *Orchestrator) Run(ctx context.Context, tree *domain.Tree, ids []string, runID string) (Summary, error) {
	if tree == nil {
		return Summary{}, ErrNilTree
	}

	start := time.Now()
	summary := Summary{RunID: runID}
	logger := o.log.New("run", runID)

loop:
	for _, id := range ids {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		node := tree.Find(id)
		if node == nil {
			logger.Debug("Skipping unknown node", "id", id)
			summary.Skipped = append(summary.Skipped, id)
			continue
		}

		switch o.runNode(ctx, logger, tree, node, runID, &summary) {
		case nodeCancelled:
			summary.Cancelled = true
			break loop
		case nodeAborted:
			summary.Aborted = true
			summary.AbortedID = id
			break loop
		default:
			summary.Executed = append(summary.Executed, id)
		}
	}

	for _, suite := range domain.Aggregate(tree.Root) {
		o.emit(domain.NodeEvent(runID, suite))
	}

	summary.Duration = time.Since(start)
	o.metrics.RecordRun(summary.Outcome(), summary.Duration)
	logger.Info("Run finished", "executed", len(summary.Executed), "passed", summary.Passed,
		"failed", summary.Failed, "cancelled", summary.Cancelled, "aborted", summary.Aborted,
		"duration", summary.Duration)

	return summary, nil
}

func (o *Orchestrator) runNode(ctx context.Context, logger log.Logger, tree *domain.Tree, node *domain.Node, runID string, summary *Summary) nodeResult {
	node.Reset(domain.StateRunning)
	o.emitSubtree(runID, node)

	command := o.Command(tree, node)
	logger.Info("Running node", "id", node.ID, "kind", node.Kind, "command", command)

	res, err := o.proc.Run(ctx, command)
	if res != nil {
		o.metrics.RecordInvocation(node.Kind, res.ExitCode, res.Duration)
	}

	switch {
	case ctx.Err() != nil || errors.Is(err, process.ErrCancelled):
		logger.Info("Run cancelled", "id", node.ID)
		o.rollback(runID, node)
		return nodeCancelled
	case err != nil:
		logger.Error("Runner invocation failed", "id", node.ID, "err", err)
		summary.ExitCode = -1
		o.rollback(runID, node)
		return nodeAborted
	case res.Abnormal():
		logger.Warn("Runner terminated abnormally", "id", node.ID, "code", res.ExitCode, "signal", res.Signal)
		summary.ExitCode = res.ExitCode
		summary.Signal = res.Signal
		o.rollback(runID, node)
		return nodeAborted
	}

	if node.IsSuite() {
		rep := o.parser.ParseSuite(node, res.Output, func(n *domain.Node) {
			o.emit(domain.NodeEvent(runID, n))
		})
		node.State = rep.State()
		for _, d := range rep.Diagnostics {
			o.addDiagnostic(d)
		}
	} else {
		outcome := o.parser.ParseTest(node, res.Output)
		node.State = outcome.State()
		if outcome.Diagnostic != nil {
			o.addDiagnostic(*outcome.Diagnostic)
		}
	}
	node.Message = res.Output
	o.emit(domain.NodeEvent(runID, node))

	for _, test := range node.Tests() {
		o.metrics.RecordTestResult(test.State)
		if test.State == domain.StateFailed {
			summary.Failed++
		} else {
			summary.Passed++
		}
	}

	return nodeDone
}

// rollback resets node's subtree to pending and drops its diagnostics so an
// interrupted invocation leaves no stale running or failed state behind.
func (o *Orchestrator) rollback(runID string, node *domain.Node) {
	node.Reset(domain.StatePending)
	o.emitSubtree(runID, node)

	if o.diags == nil {
		return
	}
	var files []string
	seen := make(map[string]bool)
	node.Walk(func(n *domain.Node) bool {
		if f := n.File(); f != "" && !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
		return true
	})
	if len(files) > 0 {
		o.diags.Clear(files...)
	}
}

func (o *Orchestrator) addDiagnostic(d domain.Diagnostic) {
	if o.diags != nil {
		o.diags.Add(d)
	}
}

func (o *Orchestrator) emitSubtree(runID string, node *domain.Node) {
	node.Walk(func(n *domain.Node) bool {
		o.emit(domain.NodeEvent(runID, n))
		return true
	})
}

func (o *Orchestrator) emit(e domain.Event) {
	if o.events != nil {
		o.events.Emit(e)
	}
}
