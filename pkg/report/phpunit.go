package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"

	"github.com/specvital/explorer/pkg/domain"
)

// PHPUnit correlates PHPUnit's default text report.
//
// A failed test is listed as "N) Fully\Qualified\Class::method", optionally
// followed by " with data set ...". The failure block that follows ends with
// the "path/to/File.php:LINE" frame and a blank line.
type PHPUnit struct {
	log log.Logger
}

var _ Parser = (*PHPUnit)(nil)

// NewPHPUnit creates a PHPUnit output parser.
func NewPHPUnit(logger log.Logger) *PHPUnit {
	if logger == nil {
		logger = log.Root()
	}
	return &PHPUnit{log: logger.New("component", "report")}
}

// ParseTest implements Parser.
func (p *PHPUnit) ParseTest(test *domain.Node, output string) Outcome {
	return p.parseTest(test, normalize(output))
}

// ParseSuite implements Parser.
func (p *PHPUnit) ParseSuite(suite *domain.Node, output string, visit func(*domain.Node)) SuiteReport {
	var report SuiteReport
	p.parseSuite(suite, output, normalize(output), visit, &report)
	return report
}

func (p *PHPUnit) parseSuite(suite *domain.Node, raw, text string, visit func(*domain.Node), report *SuiteReport) bool {
	failed := false
	for _, child := range suite.Children {
		if child.IsSuite() {
			childFailed := p.parseSuite(child, raw, text, visit, report)
			child.Message = raw
			child.State = SuiteReport{Failed: childFailed}.State()
			failed = failed || childFailed
		} else {
			outcome := p.parseTest(child, text)
			child.Message = raw
			child.State = outcome.State()
			if outcome.Diagnostic != nil {
				report.Diagnostics = append(report.Diagnostics, *outcome.Diagnostic)
			}
			failed = failed || outcome.Failed
		}
		if visit != nil {
			visit(child)
		}
	}
	report.Failed = report.Failed || failed
	return failed
}

func (p *PHPUnit) parseTest(test *domain.Node, text string) Outcome {
	failure, err := failurePattern(test)
	if err != nil {
		p.log.Warn("Cannot build failure pattern", "test", test.ID, "err", err)
		return Outcome{}
	}
	if !failure.MatchString(text) {
		return Outcome{}
	}

	diag, err := p.locate(test, text)
	if err != nil {
		p.log.Debug("Failure without location", "test", test.ID, "err", err)
	}
	return Outcome{Failed: true, Diagnostic: diag}
}

// locate finds the first failure block of test and extracts its source location.
func (p *PHPUnit) locate(test *domain.Node, text string) (*domain.Diagnostic, error) {
	pattern, err := regexp.Compile(`(?s)\d+\).+?` + regexp.QuoteMeta(test.ID) + `\W(.+?\.php:(\d+))\n\n`)
	if err != nil {
		return nil, fmt.Errorf("compile location pattern: %w", err)
	}

	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("no failure block for %s", test.ID)
	}

	line, err := strconv.Atoi(m[2])
	if err != nil || line < 1 {
		return nil, fmt.Errorf("invalid line %q", m[2])
	}

	file := splitLocation(m[1])
	if file == "" {
		file = test.File()
	}

	return &domain.Diagnostic{
		File:    file,
		Line:    line - 1,
		Message: strings.TrimSpace(m[1]),
	}, nil
}

// failurePattern matches the header line PHPUnit prints for a failed test.
// The method must match exactly, so test_foo never matches test_foobar.
func failurePattern(test *domain.Node) (*regexp.Regexp, error) {
	class, _, ok := strings.Cut(test.ID, "::")
	if !ok {
		class = `[A-Za-z0-9_\\]+`
	} else {
		class = `(?:[A-Za-z0-9_]+\\)*` + regexp.QuoteMeta(class)
	}
	return regexp.Compile(`(?m)^\d+\)\s+` + class + `::` + regexp.QuoteMeta(test.Label) + `(?: with data set .*)?$`)
}

// splitLocation returns the path of the "path:line" frame on the last line of s.
func splitLocation(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(s[:i])
}

func normalize(output string) string {
	return strings.ReplaceAll(stripansi.Strip(output), "\r\n", "\n")
}
