// Package explorer ties discovery and execution together behind a Session
// that owns the current test tree.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/specvital/explorer/pkg/config"
	"github.com/specvital/explorer/pkg/diagnostics"
	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/metrics"
	"github.com/specvital/explorer/pkg/parser"
	_ "github.com/specvital/explorer/pkg/parser/strategies/all"
	"github.com/specvital/explorer/pkg/process"
	"github.com/specvital/explorer/pkg/runner"
	"github.com/specvital/explorer/pkg/source"
)

var (
	ErrRunInProgress = errors.New("explorer: run already in progress")
	ErrNotLoaded     = errors.New("explorer: tree not loaded")
	ErrClosed        = errors.New("explorer: session closed")
)

// Session owns one project's test tree. Discovery swaps the tree wholesale,
// so a run keeps working on the tree it started with while lookups made after
// a reload see the new one. At most one run is active at a time.
type Session struct {
	cfg     *config.Config
	src     *source.LocalSource
	scanner *parser.Scanner
	orch    *runner.Orchestrator
	diags   *diagnostics.Collection
	events  runner.EventSink
	metrics metrics.Metricer
	log     log.Logger

	tree   atomic.Pointer[domain.Tree]
	loadMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup

	reloadDelay time.Duration
}

type options struct {
	events  runner.EventSink
	metrics metrics.Metricer
	logger  log.Logger
	output  io.Writer
	proc    runner.ProcessRunner
}

// Option configures a Session.
type Option func(*options)

// WithEvents sets the sink receiving load, run and node events.
func WithEvents(sink runner.EventSink) Option {
	return func(o *options) {
		o.events = sink
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Metricer) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithOutput tees live runner output to w.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithProcessRunner replaces the shell based process runner.
func WithProcessRunner(p runner.ProcessRunner) Option {
	return func(o *options) {
		o.proc = p
	}
}

// New creates a session for the project rooted at root. A nil cfg uses the defaults.
func New(root string, cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		metrics: metrics.Noop{},
		logger:  log.Root(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.New("component", "explorer")

	src, err := source.NewLocalSource(root,
		source.WithInclude(cfg.Search.Include),
		source.WithExclude(cfg.Search.Exclude),
	)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:         cfg,
		src:         src,
		diags:       diagnostics.NewCollection(diagnostics.WithLogger(o.logger)),
		events:      o.events,
		metrics:     o.metrics,
		log:         logger,
		done:        make(chan struct{}),
		reloadDelay: defaultReloadDelay,
	}

	s.scanner = parser.NewScanner(
		parser.WithStrategy(cfg.Scanner),
		parser.WithTestPrefix(cfg.Prefix),
	)

	proc := o.proc
	if proc == nil {
		procOpts := []process.Option{
			process.WithDir(src.Root()),
			process.WithLogger(o.logger),
			process.WithKillGrace(cfg.Kill.Grace),
		}
		if o.output != nil {
			procOpts = append(procOpts, process.WithOutput(o.output))
		}
		if cfg.Kill.Signature != "" {
			procOpts = append(procOpts, process.WithSweeper(process.NewSignatureSweeper(cfg.Kill.Signature, o.logger)))
		}
		proc = process.NewRunner(procOpts...)
	}

	s.orch = runner.New(cfg.Command, proc,
		runner.WithSeparator(cfg.Separator),
		runner.WithEvents(runner.EventSinkFunc(s.emit)),
		runner.WithDiagnostics(s.diags),
		runner.WithMetrics(o.metrics),
		runner.WithLogger(o.logger),
	)

	return s, nil
}

// Root returns the absolute project root.
func (s *Session) Root() string {
	return s.src.Root()
}

// Tree returns the current tree, or nil before the first Load.
func (s *Session) Tree() *domain.Tree {
	return s.tree.Load()
}

// Diagnostics returns the located failures of the latest run.
func (s *Session) Diagnostics() *diagnostics.Collection {
	return s.diags
}

// Load discovers the tests and replaces the current tree. Files that cannot
// be read or parsed are skipped and reported in the result.
func (s *Session) Load(ctx context.Context) (*domain.Tree, *parser.ScanResult, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.emit(domain.Event{Type: domain.EventLoadStarted})
	s.diags.Clear()

	tree, result, err := s.scanner.Discover(ctx, s.src)
	if err != nil {
		s.emit(domain.Event{Type: domain.EventLoadFinished, Message: err.Error()})
		return nil, result, fmt.Errorf("discover tests: %w", err)
	}

	for _, scanErr := range result.Errors {
		s.metrics.RecordScanError(scanErr.Phase)
		s.log.Debug("Skipped file", "path", scanErr.Path, "phase", scanErr.Phase, "err", scanErr.Err)
	}

	s.tree.Store(tree)
	s.metrics.RecordDiscovery(len(tree.Suites()), tree.CountTests(), result.Stats.Duration)
	s.log.Info("Tests loaded", "suites", len(tree.Suites()), "tests", tree.CountTests(),
		"skipped", len(result.Errors), "duration", result.Stats.Duration)

	s.emit(domain.Event{Type: domain.EventLoadFinished, Tree: tree})
	return tree, result, nil
}

// Command returns the runner invocation that Run would use for id.
func (s *Session) Command(id string) (string, error) {
	tree := s.Tree()
	if tree == nil {
		return "", ErrNotLoaded
	}
	node := tree.Find(id)
	if node == nil {
		return "", fmt.Errorf("explorer: unknown node %q", id)
	}
	return s.orch.Command(tree, node), nil
}

type activeRun struct {
	ctx  context.Context
	tree *domain.Tree
	id   string
}

// Run executes ids against the current tree and blocks until the batch ends.
// No ids means the whole tree. A started run always ends with a finished event.
func (s *Session) Run(ctx context.Context, ids []string) (runner.Summary, error) {
	run, err := s.begin(ctx)
	if err != nil {
		return runner.Summary{}, err
	}
	return s.execute(run, ids)
}

// Start launches Run in the background. The returned channel receives the
// summary and is then closed.
func (s *Session) Start(ctx context.Context, ids []string) (<-chan runner.Summary, error) {
	run, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan runner.Summary, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(ch)
		summary, _ := s.execute(run, ids)
		ch <- summary
	}()
	return ch, nil
}

// Cancel stops the active run. It reports whether a run was active.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Running reports whether a run is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Close cancels the active run, stops watchers and waits for background work.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return s.src.Close()
}

func (s *Session) begin(ctx context.Context) (*activeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return nil, ErrClosed
	case s.running:
		return nil, ErrRunInProgress
	}

	tree := s.Tree()
	if tree == nil {
		return nil, ErrNotLoaded
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel

	return &activeRun{ctx: runCtx, tree: tree, id: uuid.NewString()}, nil
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.running = false
}

func (s *Session) execute(run *activeRun, ids []string) (runner.Summary, error) {
	defer s.finish()

	if len(ids) == 0 {
		ids = []string{run.tree.Root.ID}
	}

	s.diags.Clear()
	s.emit(domain.Event{Type: domain.EventRunStarted, RunID: run.id, IDs: ids})
	defer s.emit(domain.Event{Type: domain.EventRunFinished, RunID: run.id})

	return s.orch.Run(run.ctx, run.tree, ids, run.id)
}

func (s *Session) emit(e domain.Event) {
	if s.events != nil {
		s.events.Emit(e)
	}
}
