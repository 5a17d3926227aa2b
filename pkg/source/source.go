// Package source enumerates and reads candidate test files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude lists the glob patterns a test file must match.
var DefaultInclude = []string{
	"**/*Test.php",
	"**/test-*.php",
}

// DefaultExclude lists glob patterns and directory names that are never searched.
var DefaultExclude = []string{
	"**/vendor/**",
	"**/node_modules/**",
	".git",
	".vscode",
}

var ErrNotDirectory = errors.New("source: root is not a directory")

// Source provides test file candidates and their contents.
type Source interface {
	// Root returns the directory the source is anchored at.
	Root() string
	// Files returns the candidate files, relative to Root, in lexical order.
	Files(ctx context.Context) ([]string, error)
	// Open opens a file relative to Root.
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)
	// Close releases resources held by the source.
	Close() error
}

// LocalSource serves files from the local filesystem.
type LocalSource struct {
	root    string
	include []string
	exclude []string
	skipSet map[string]bool
}

// Option configures a LocalSource.
type Option func(*LocalSource)

// WithInclude replaces the include patterns. Empty patterns keep the defaults.
func WithInclude(patterns []string) Option {
	return func(s *LocalSource) {
		if len(patterns) > 0 {
			s.include = patterns
		}
	}
}

// WithExclude replaces the exclude patterns. Empty patterns keep the defaults.
func WithExclude(patterns []string) Option {
	return func(s *LocalSource) {
		if len(patterns) > 0 {
			s.exclude = patterns
		}
	}
}

var _ Source = (*LocalSource)(nil)

// NewLocalSource creates a source rooted at root.
func NewLocalSource(root string, opts ...Option) (*LocalSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("source: resolve %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	s := &LocalSource{
		root:    abs,
		include: DefaultInclude,
		exclude: DefaultExclude,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.skipSet = buildSkipSet(s.exclude)

	return s, nil
}

func (s *LocalSource) Root() string {
	return s.root
}

// Files walks the root and returns files matching any include pattern and no exclude pattern.
// Plain exclude entries without glob syntax (".git") prune directories with that name.
func (s *LocalSource) Files(ctx context.Context) ([]string, error) {
	var files []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if walkErr != nil {
			// Unreadable entries are skipped rather than failing the whole walk.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == s.root {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.skipSet[d.Name()] || matchesAny(s.exclude, relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !matchesAny(s.include, relPath) || matchesAny(s.exclude, relPath) {
			return nil
		}

		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: walk %s: %w", s.root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Open opens relPath for reading.
func (s *LocalSource) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(s.Abs(relPath))
}

// Abs joins relPath onto the root.
func (s *LocalSource) Abs(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

func (s *LocalSource) Close() error {
	return nil
}

// Matches reports whether a path relative to the root would be returned by Files.
func (s *LocalSource) Matches(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, segment := range strings.Split(relPath, "/") {
		if s.skipSet[segment] {
			return false
		}
	}
	return matchesAny(s.include, relPath) && !matchesAny(s.exclude, relPath)
}

func buildSkipSet(patterns []string) map[string]bool {
	skipSet := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[{/") {
			skipSet[p] = true
		}
	}
	return skipSet
}

func matchesAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, relPath)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
