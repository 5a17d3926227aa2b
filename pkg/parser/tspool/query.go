package tspool

import (
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Match is one match of a compiled PHP query.
type Match struct {
	// Node is the first captured node.
	Node *sitter.Node
	// Captures maps capture names to their nodes.
	Captures map[string]*sitter.Node
}

type compiledQuery struct {
	once  sync.Once
	query *sitter.Query
	err   error
}

// queries holds one compiledQuery per pattern string. Compiled queries live
// for the life of the process; the set of patterns is fixed at build time.
var queries sync.Map

func compile(pattern string) (*sitter.Query, error) {
	val, _ := queries.LoadOrStore(pattern, &compiledQuery{})
	cq := val.(*compiledQuery)

	cq.once.Do(func() {
		initLanguages()
		cq.query, cq.err = sitter.NewQuery([]byte(pattern), phpLang)
	})

	return cq.query, cq.err
}

// Query runs a PHP tree-sitter pattern against root and returns every match.
// The pattern is compiled once and reused across calls and goroutines.
func Query(root *sitter.Node, pattern string) ([]Match, error) {
	query, err := compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("tspool: invalid query: %w", err)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, root)

	var matches []Match
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			return matches, nil
		}

		match := Match{Captures: make(map[string]*sitter.Node, len(m.Captures))}
		for _, c := range m.Captures {
			match.Captures[query.CaptureNameForId(c.Index)] = c.Node
			if match.Node == nil {
				match.Node = c.Node
			}
		}
		matches = append(matches, match)
	}
}
