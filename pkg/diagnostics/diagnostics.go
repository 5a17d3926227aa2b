// Package diagnostics collects located test failures for annotation by a host editor.
package diagnostics

import (
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/log"

	"github.com/specvital/explorer/pkg/domain"
)

// Range spans the annotated source text. Lines and columns are 0-based,
// columns count runes.
type Range struct {
	StartLine int `json:"startLine"`
	StartCol  int `json:"startCol"`
	EndLine   int `json:"endLine"`
	EndCol    int `json:"endCol"`
}

// Entry is a diagnostic with the range it annotates.
type Entry struct {
	domain.Diagnostic
	Range Range `json:"range"`
}

// ReadFunc reads a source file.
type ReadFunc func(path string) ([]byte, error)

// Collection accumulates diagnostics per file. It is safe for concurrent use.
type Collection struct {
	mu     sync.RWMutex
	byFile map[string][]Entry
	read   ReadFunc
	log    log.Logger
}

// Option configures a Collection.
type Option func(*Collection)

// WithReader replaces the file reader used to compute ranges.
func WithReader(read ReadFunc) Option {
	return func(c *Collection) {
		c.read = read
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Collection) {
		c.log = l
	}
}

// NewCollection creates an empty collection.
func NewCollection(opts ...Option) *Collection {
	c := &Collection{
		byFile: make(map[string][]Entry),
		read:   os.ReadFile,
		log:    log.Root(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add records d. The range covers the target line from its first non-space
// character to its last; an unreadable file or line yields an empty range.
func (c *Collection) Add(d domain.Diagnostic) {
	entry := Entry{Diagnostic: d, Range: c.rangeOf(d.File, d.Line)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byFile[d.File] = append(c.byFile[d.File], entry)
}

// Clear removes diagnostics for files, or every diagnostic when none are given.
func (c *Collection) Clear(files ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(files) == 0 {
		c.byFile = make(map[string][]Entry)
		return
	}
	for _, f := range files {
		delete(c.byFile, f)
	}
}

// ForFile returns the diagnostics of file in insertion order.
func (c *Collection) ForFile(file string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.byFile[file]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// All returns every diagnostic ordered by file, then insertion.
func (c *Collection) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	files := make([]string, 0, len(c.byFile))
	for f := range c.byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var out []Entry
	for _, f := range files {
		out = append(out, c.byFile[f]...)
	}
	return out
}

// Len returns the number of diagnostics held.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, entries := range c.byFile {
		n += len(entries)
	}
	return n
}

func (c *Collection) rangeOf(file string, line int) Range {
	r := Range{StartLine: line, EndLine: line}
	if file == "" || line < 0 {
		return r
	}

	content, err := c.read(file)
	if err != nil {
		c.log.Debug("Cannot read file for diagnostic range", "file", file, "err", err)
		return r
	}

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	if line >= len(lines) {
		return r
	}

	text := lines[line]
	r.StartCol = utf8.RuneCountInString(text) - utf8.RuneCountInString(strings.TrimLeftFunc(text, unicode.IsSpace))
	r.EndCol = utf8.RuneCountInString(strings.TrimRightFunc(text, unicode.IsSpace))
	return r
}
