// Package regex extracts PHPUnit suite and test declarations with regular expressions.
// It is the default strategy: it needs no grammar and tolerates files that do not
// parse cleanly.
package regex

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/parser/strategies"
)

const strategyName = "regex"

func init() {
	strategies.Register(NewStrategy())
}

// classPattern matches the first class declaration: identifier after "class",
// an optional extends clause, an optional implements clause, up to the opening brace.
var classPattern = regexp.MustCompile(
	`(?im)^[ \t]*(?:(?:abstract|final|readonly)[ \t]+)*class[ \t]+(\w+)\s*(?:extends\s+[\w\\]+\s*)?(?:implements\s+[\w\\]+(?:\s*,\s*[\w\\]+)*\s*)?\{`,
)

// Strategy is the regular expression declaration extractor.
type Strategy struct {
	mu      sync.Mutex
	methods map[string]*regexp.Regexp
}

var _ strategies.Strategy = (*Strategy)(nil)

// NewStrategy creates a regex strategy.
func NewStrategy() *Strategy {
	return &Strategy{methods: make(map[string]*regexp.Regexp)}
}

func (s *Strategy) Name() string { return strategyName }

func (s *Strategy) Priority() int { return strategies.DefaultPriority }

func (s *Strategy) Languages() []domain.Language {
	return []domain.Language{domain.LanguagePHP}
}

func (s *Strategy) CanHandle(filename string, _ []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".php")
}

// Parse extracts the first class declaration and every public method whose
// name starts with the configured prefix. Lines are 0-based.
func (s *Strategy) Parse(ctx context.Context, source []byte, filename string, opts strategies.ParseOptions) (*domain.TestFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := normalizeNewlines(string(source))
	file := &domain.TestFile{
		Language: domain.LanguagePHP,
		Path:     filename,
		Strategy: strategyName,
	}

	loc := classPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return file, nil
	}

	suite := &domain.TestSuite{
		Name:     text[loc[2]:loc[3]],
		Location: domain.Location{File: filename, Line: lineAt(text, loc[0])},
		Tests:    []domain.Test{},
	}

	methods, err := s.methodPattern(opts.Prefix())
	if err != nil {
		return nil, fmt.Errorf("regex strategy: %w", err)
	}
	for _, m := range methods.FindAllStringSubmatchIndex(text, -1) {
		suite.Tests = append(suite.Tests, domain.Test{
			Name:     text[m[2]:m[3]],
			Location: domain.Location{File: filename, Line: lineAt(text, m[0])},
		})
	}

	file.Suite = suite
	return file, nil
}

// methodPattern returns the compiled test method pattern for prefix.
func (s *Strategy) methodPattern(prefix string) (*regexp.Regexp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if re, ok := s.methods[prefix]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`(?m)public\s+function\s+(` + regexp.QuoteMeta(prefix) + `\w*)\s*\(`)
	if err != nil {
		return nil, fmt.Errorf("compile method pattern for prefix %q: %w", prefix, err)
	}
	s.methods[prefix] = re
	return re, nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func lineAt(text string, offset int) int {
	return strings.Count(text[:offset], "\n")
}
