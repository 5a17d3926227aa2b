// Package parser discovers PHPUnit test declarations and assembles them into a test tree.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/parser/strategies"
	"github.com/specvital/explorer/pkg/source"
)

const (
	// DefaultWorkers indicates that the scanner should use GOMAXPROCS as the worker count.
	DefaultWorkers = 0
	// DefaultTimeout is the default scan timeout duration.
	DefaultTimeout = 5 * time.Minute
	// MaxWorkers is the maximum number of concurrent workers allowed.
	MaxWorkers = 1024
	// DefaultMaxFileSize is the default maximum file size for scanning (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// Scan error phases.
const (
	PhaseDiscovery = "discovery"
	PhaseRead      = "read"
	PhaseParsing   = "parsing"
	PhaseBuild     = "build"
)

var (
	// ErrScanCancelled is returned when scanning is cancelled via context.
	ErrScanCancelled = errors.New("scanner: scan cancelled")
	// ErrScanTimeout is returned when scanning exceeds the timeout duration.
	ErrScanTimeout = errors.New("scanner: scan timeout")
	// ErrUnknownStrategy is returned when a forced strategy is not registered.
	ErrUnknownStrategy = errors.New("scanner: unknown strategy")
)

// Scanner reads candidate files and extracts their suite declarations.
type Scanner struct {
	registry *strategies.Registry
	options  *ScanOptions
}

// ScanResult contains the outcome of a scan operation.
type ScanResult struct {
	// Inventory contains the files that declare a suite, ordered by basename.
	Inventory *domain.Inventory

	// Errors contains non-fatal errors encountered during scanning.
	Errors []ScanError

	// Stats provides scan statistics.
	Stats ScanStats
}

// ScanError represents an error that occurred during a specific phase of scanning.
type ScanError struct {
	// Err is the underlying error.
	Err error

	// Path is the file path where the error occurred (may be empty for non-file errors).
	Path string

	// Phase indicates which phase the error occurred in.
	// Values: "discovery", "read", "parsing", "build"
	Phase string
}

// Error implements the error interface.
func (e ScanError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Phase, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e ScanError) Unwrap() error {
	return e.Err
}

// ScanStats provides statistics about the scan operation.
type ScanStats struct {
	// FilesScanned is the total number of candidate files enumerated by the source.
	FilesScanned int

	// FilesMatched is the number of files that declared a suite.
	FilesMatched int

	// FilesFailed is the number of files that could not be read or parsed.
	FilesFailed int

	// FilesSkipped is the number of files without a class declaration, too large, or unhandled.
	FilesSkipped int

	// Duration is the total scan duration.
	Duration time.Duration
}

// NewScanner creates a new scanner with the given options.
func NewScanner(opts ...ScanOption) *Scanner {
	options := &ScanOptions{}
	for _, opt := range opts {
		opt(options)
	}
	applyDefaults(options)

	return &Scanner{
		registry: options.Registry,
		options:  options,
	}
}

// Scan enumerates candidate files from src, reads and classifies them in parallel,
// and returns the files that declare a suite. Unreadable or unparsable files are
// recorded in ScanResult.Errors and skipped.
//
// The caller is responsible for calling src.Close() when done.
func (s *Scanner) Scan(ctx context.Context, src source.Source) (*ScanResult, error) {
	startTime := time.Now()

	if s.options.Strategy != "" && s.registry.FindByName(s.options.Strategy) == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s.options.Strategy)
	}

	ctx, cancel := context.WithTimeout(ctx, s.options.Timeout)
	defer cancel()

	result := &ScanResult{
		Inventory: &domain.Inventory{
			RootPath: src.Root(),
			Files:    []domain.TestFile{},
		},
		Errors: []ScanError{},
	}

	files, err := src.Files(ctx)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			result.Stats.Duration = time.Since(startTime)
			return result, ctxErr
		}
		result.Errors = append(result.Errors, ScanError{
			Err:   err,
			Phase: PhaseDiscovery,
		})
	}
	result.Stats.FilesScanned = len(files)

	if len(files) > 0 {
		parsed, scanErrors := s.parseFilesParallel(ctx, src, files)
		result.Inventory.Files = parsed
		result.Errors = append(result.Errors, scanErrors...)
		result.Stats.FilesMatched = len(parsed)
		result.Stats.FilesFailed = len(scanErrors)
		result.Stats.FilesSkipped = result.Stats.FilesScanned - result.Stats.FilesMatched - result.Stats.FilesFailed
	}
	result.Stats.Duration = time.Since(startTime)

	if err := contextError(ctx); err != nil {
		return result, err
	}

	return result, nil
}

func contextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrScanTimeout
	case errors.Is(err, context.Canceled):
		return ErrScanCancelled
	default:
		return nil
	}
}

func (s *Scanner) parseFilesParallel(ctx context.Context, src source.Source, files []string) ([]domain.TestFile, []ScanError) {
	workers := s.options.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gCtx := errgroup.WithContext(ctx)

	var (
		mu         sync.Mutex
		testFiles  = make([]domain.TestFile, 0, len(files))
		scanErrors = make([]ScanError, 0)
	)

	for _, file := range files {
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			testFile, scanErr := s.parseFile(gCtx, src, file)

			mu.Lock()
			defer mu.Unlock()

			if scanErr != nil {
				scanErrors = append(scanErrors, *scanErr)
				return nil
			}
			if testFile != nil && testFile.Suite != nil {
				testFiles = append(testFiles, *testFile)
			}
			return nil
		})
	}

	_ = g.Wait()

	// Parallel goroutines complete in variable order; sort by basename so the
	// tree order is deterministic, with the full path as tiebreak.
	sort.Slice(testFiles, func(i, j int) bool {
		bi, bj := filepath.Base(testFiles[i].Path), filepath.Base(testFiles[j].Path)
		if bi != bj {
			return bi < bj
		}
		return testFiles[i].Path < testFiles[j].Path
	})
	sort.Slice(scanErrors, func(i, j int) bool {
		return scanErrors[i].Path < scanErrors[j].Path
	})

	return testFiles, scanErrors
}

func (s *Scanner) parseFile(ctx context.Context, src source.Source, relPath string) (*domain.TestFile, *ScanError) {
	content, err := readFileFromSource(ctx, src, relPath, s.options.MaxFileSize)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return nil, nil
		}
		return nil, &ScanError{Err: err, Path: relPath, Phase: PhaseRead}
	}

	absPath := filepath.Join(src.Root(), filepath.FromSlash(relPath))

	strategy := s.pickStrategy(absPath, content)
	if strategy == nil {
		return nil, nil
	}

	testFile, err := strategy.Parse(ctx, content, absPath, strategies.ParseOptions{TestPrefix: s.options.TestPrefix})
	if err != nil {
		return nil, &ScanError{Err: fmt.Errorf("parse: %w", err), Path: relPath, Phase: PhaseParsing}
	}

	return testFile, nil
}

func (s *Scanner) pickStrategy(path string, content []byte) strategies.Strategy {
	if s.options.Strategy != "" {
		return s.registry.FindByName(s.options.Strategy)
	}
	return s.registry.FindStrategy(path, content)
}

var errFileTooLarge = errors.New("file exceeds size limit")

// readFileFromSource reads a file from source using relative path.
// The relPath must be relative to src.Root().
func readFileFromSource(ctx context.Context, src source.Source, relPath string, limit int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := src.Open(ctx, relPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	content, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", relPath, err)
	}
	if int64(len(content)) > limit {
		return nil, errFileTooLarge
	}

	return content, nil
}

// Scan discovers suites in src with a one-off Scanner.
func Scan(ctx context.Context, src source.Source, opts ...ScanOption) (*ScanResult, error) {
	scanner := NewScanner(opts...)
	return scanner.Scan(ctx, src)
}
