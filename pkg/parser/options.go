package parser

import (
	"time"

	"github.com/specvital/explorer/pkg/parser/strategies"
)

// ScanOptions configures scanner behavior.
type ScanOptions struct {
	// MaxFileSize is the maximum file size in bytes to process.
	// Files larger than this are skipped.
	MaxFileSize int64

	// Registry is the strategy registry to use for declaration extraction.
	// If nil, uses strategies.DefaultRegistry().
	Registry *strategies.Registry

	// Strategy forces a strategy by name ("regex", "ast").
	// Empty means the highest priority strategy that can handle each file.
	Strategy string

	// TestPrefix is the method name prefix that marks a test method.
	// Empty means strategies.DefaultTestPrefix.
	TestPrefix string

	// Timeout is the maximum duration for the entire scan operation.
	// Zero or negative values use DefaultTimeout.
	Timeout time.Duration

	// Workers specifies the number of concurrent file parsers.
	// Zero or negative values use runtime.GOMAXPROCS(0).
	Workers int
}

// ScanOption is a functional option for configuring Scanner.
type ScanOption func(*ScanOptions)

// WithWorkers sets the number of concurrent file parsers.
// Negative values are ignored.
func WithWorkers(n int) ScanOption {
	return func(o *ScanOptions) {
		if n >= 0 {
			o.Workers = n
		}
	}
}

// WithTimeout sets the scan timeout duration.
// Negative values are ignored.
func WithTimeout(d time.Duration) ScanOption {
	return func(o *ScanOptions) {
		if d >= 0 {
			o.Timeout = d
		}
	}
}

// WithMaxFileSize sets the maximum file size to process.
// Negative values are ignored.
func WithMaxFileSize(size int64) ScanOption {
	return func(o *ScanOptions) {
		if size >= 0 {
			o.MaxFileSize = size
		}
	}
}

// WithRegistry sets the strategy registry to use.
func WithRegistry(registry *strategies.Registry) ScanOption {
	return func(o *ScanOptions) {
		o.Registry = registry
	}
}

// WithStrategy forces the named extraction strategy for every file.
func WithStrategy(name string) ScanOption {
	return func(o *ScanOptions) {
		o.Strategy = name
	}
}

// WithTestPrefix sets the method name prefix that marks a test method.
func WithTestPrefix(prefix string) ScanOption {
	return func(o *ScanOptions) {
		o.TestPrefix = prefix
	}
}

func applyDefaults(opts *ScanOptions) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Registry == nil {
		opts.Registry = strategies.DefaultRegistry()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
}
