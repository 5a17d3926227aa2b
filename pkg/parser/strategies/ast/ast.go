// Package ast extracts PHPUnit suite and test declarations from a tree-sitter PHP syntax tree.
package ast

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/parser"
	"github.com/specvital/explorer/pkg/parser/strategies"
	"github.com/specvital/explorer/pkg/parser/strategies/shared/phpast"
	"github.com/specvital/explorer/pkg/parser/tspool"
)

const (
	strategyName = "ast"
	// priority keeps the regex strategy the default when both can handle a file.
	priority = strategies.DefaultPriority - 50
)

const classQuery = `(class_declaration) @class`

func init() {
	strategies.Register(&Strategy{})
}

// Strategy is the tree-sitter declaration extractor.
// Unlike the regex strategy it ignores declarations inside comments and strings.
type Strategy struct{}

var _ strategies.Strategy = (*Strategy)(nil)

func (s *Strategy) Name() string { return strategyName }

func (s *Strategy) Priority() int { return priority }

func (s *Strategy) Languages() []domain.Language {
	return []domain.Language{domain.LanguagePHP}
}

func (s *Strategy) CanHandle(filename string, _ []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".php")
}

func (s *Strategy) Parse(ctx context.Context, source []byte, filename string, opts strategies.ParseOptions) (*domain.TestFile, error) {
	tree, err := tspool.Parse(ctx, domain.LanguagePHP, source)
	if err != nil {
		return nil, fmt.Errorf("ast strategy: failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	file := &domain.TestFile{
		Language: domain.LanguagePHP,
		Path:     filename,
		Strategy: strategyName,
	}

	classes, err := tspool.Query(tree.RootNode(), classQuery)
	if err != nil {
		return nil, fmt.Errorf("ast strategy: %w", err)
	}
	if len(classes) == 0 {
		return file, nil
	}

	file.Suite = parseClass(classes[0].Node, source, filename, opts.Prefix())
	return file, nil
}

func parseClass(node *sitter.Node, source []byte, filename, prefix string) *domain.TestSuite {
	nameNode := phpast.GetClassNameNode(node)
	if nameNode == nil {
		return nil
	}

	suite := &domain.TestSuite{
		Name: parser.GetNodeText(nameNode, source),
		// The name row skips attribute lists declared above the class.
		Location: parser.GetLocation(nameNode, filename),
		Tests:    []domain.Test{},
	}

	body := phpast.GetDeclarationList(node)
	if body == nil {
		return suite
	}

	for _, method := range phpast.GetMethods(body) {
		if test := parseMethod(method, source, filename, prefix); test != nil {
			suite.Tests = append(suite.Tests, *test)
		}
	}

	return suite
}

func parseMethod(node *sitter.Node, source []byte, filename, prefix string) *domain.Test {
	if !phpast.IsPublic(node, source) {
		return nil
	}

	name := phpast.GetMethodName(node, source)
	if !strings.HasPrefix(name, prefix) {
		return nil
	}

	return &domain.Test{
		Name:     name,
		Location: phpast.MethodLocation(node, filename),
	}
}
