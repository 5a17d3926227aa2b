package tspool_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/parser/tspool"
)

const phpSource = `<?php
class UserTest extends TestCase
{
    public function test_create() {}
}
`

func TestParse_RaceFree(t *testing.T) {
	t.Parallel()

	const goroutines = 50
	source := []byte(phpSource)

	var wg sync.WaitGroup
	wg.Add(goroutines)

	errCh := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			tree, err := tspool.Parse(context.Background(), domain.LanguagePHP, source)
			if err != nil {
				errCh <- err
				return
			}
			defer tree.Close()
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("Parse failed: %v", err)
	}
}

func TestParse_ContextCancellation(t *testing.T) {
	t.Parallel()

	// Note: tree-sitter's ParseCtx may not honor context cancellation for small inputs.
	// This test verifies the context is passed through, not that parsing fails.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree, err := tspool.Parse(ctx, domain.LanguagePHP, []byte(phpSource))

	// Either error or success is acceptable - tree-sitter behavior varies
	if err == nil && tree != nil {
		tree.Close()
	}
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	_, err := tspool.Parse(context.Background(), domain.Language("cobol"), []byte("x"))
	if !errors.Is(err, tspool.ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestGetLanguage(t *testing.T) {
	t.Parallel()

	if tspool.GetLanguage(domain.LanguagePHP) == nil {
		t.Error("GetLanguage(php) returned nil")
	}
	if tspool.GetLanguage(domain.Language("cobol")) != nil {
		t.Error("GetLanguage(cobol) should be nil")
	}
}

func TestParse_ValidOutput(t *testing.T) {
	t.Parallel()

	tree, err := tspool.Parse(context.Background(), domain.LanguagePHP, []byte(phpSource))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		t.Fatal("root node is nil")
	}
	if root.HasError() {
		t.Error("unexpected syntax error in parsed tree")
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()

	source := []byte(phpSource)
	tree, err := tspool.Parse(context.Background(), domain.LanguagePHP, source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer tree.Close()

	const query = `(method_declaration name: (name) @method)`
	for i := 0; i < 2; i++ {
		results, err := tspool.Query(tree.RootNode(), query)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("len(results) = %d, want 1", len(results))
		}
		if got := results[0].Captures["method"].Content(source); got != "test_create" {
			t.Errorf("method = %q, want %q", got, "test_create")
		}
	}
}

func TestQuery_InvalidQuery(t *testing.T) {
	t.Parallel()

	source := []byte(phpSource)
	tree, err := tspool.Parse(context.Background(), domain.LanguagePHP, source)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer tree.Close()

	if _, err := tspool.Query(tree.RootNode(), `(no_such_node) @x`); err == nil {
		t.Error("expected error for invalid query")
	}
}
