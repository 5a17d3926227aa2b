package explorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specvital/explorer/pkg/config"
	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/process"
)

const userTest = `<?php

namespace App\Tests;

use PHPUnit\Framework\TestCase;

class UserTest extends TestCase
{
    public function test_create(): void
    {
        $this->assertTrue(true);
    }

    public function test_update(): void
    {
        $this->assertTrue(false);
    }
}
`

const orderTest = `<?php

class OrderTest extends TestCase
{
    public function test_total()
    {
    }
}
`

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) Emit(e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []domain.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var types []domain.EventType
	for _, e := range l.events {
		if e.Type != domain.EventNodeState {
			types = append(types, e.Type)
		}
	}
	return types
}

type scriptedProc struct {
	mu       sync.Mutex
	commands []string
	respond  func(ctx context.Context, command string) (*process.Result, error)
}

func (p *scriptedProc) Run(ctx context.Context, command string) (*process.Result, error) {
	p.mu.Lock()
	p.commands = append(p.commands, command)
	p.mu.Unlock()
	return p.respond(ctx, command)
}

// blockUntilCancelled signals started and then behaves like a killed runner.
func blockUntilCancelled(started chan<- string) func(context.Context, string) (*process.Result, error) {
	return func(ctx context.Context, command string) (*process.Result, error) {
		started <- command
		<-ctx.Done()
		return &process.Result{ExitCode: -1, Signal: "SIGTERM"}, process.ErrCancelled
	}
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "tests/UserTest.php", userTest)
	writeFile(t, root, "tests/Unit/OrderTest.php", orderTest)
	writeFile(t, root, "vendor/acme/lib/tests/VendorTest.php", orderTest)
	return root
}

func newSession(t *testing.T, root string, proc *scriptedProc, events *eventLog) *Session {
	t.Helper()
	s, err := New(root, nil,
		WithLogger(log.NewLogger(log.DiscardHandler())),
		WithProcessRunner(proc),
		WithEvents(events),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_Load(t *testing.T) {
	t.Parallel()

	// Given
	root := newProject(t)
	events := &eventLog{}
	s := newSession(t, root, &scriptedProc{}, events)

	// When
	tree, result, err := s.Load(context.Background())

	// Then
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Same(t, tree, s.Tree())

	suites := tree.Suites()
	require.Len(t, suites, 2)
	assert.Equal(t, "OrderTest", suites[0].Label)
	assert.Equal(t, filepath.Join(s.Root(), "tests", "Unit", "OrderTest.php"), suites[0].ID)
	assert.Equal(t, "UserTest", suites[1].Label)
	require.Len(t, suites[1].Children, 2)
	assert.Equal(t, "UserTest::test_create", suites[1].Children[0].ID)
	assert.Equal(t, 8, suites[1].Children[0].Location.Line)

	assert.Equal(t, []domain.EventType{domain.EventLoadStarted, domain.EventLoadFinished}, events.types())
	assert.Same(t, tree, events.events[1].Tree)
}

func TestSession_Reload(t *testing.T) {
	t.Parallel()

	// Given
	root := newProject(t)
	s := newSession(t, root, &scriptedProc{}, &eventLog{})
	first, _, err := s.Load(context.Background())
	require.NoError(t, err)

	// When
	writeFile(t, root, "tests/AccountTest.php", "<?php\nclass AccountTest {\n    public function test_open() {}\n}\n")
	second, _, err := s.Load(context.Background())

	// Then
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Len(t, first.Suites(), 2)
	require.Len(t, second.Suites(), 3)
	assert.Equal(t, "AccountTest", second.Suites()[0].Label)
	assert.Same(t, second, s.Tree())
}

func TestSession_Run(t *testing.T) {
	t.Parallel()

	t.Run("should run the whole tree and report diagnostics", func(t *testing.T) {
		t.Parallel()

		// Given
		root := newProject(t)
		events := &eventLog{}
		proc := &scriptedProc{}
		s := newSession(t, root, proc, events)
		_, _, err := s.Load(context.Background())
		require.NoError(t, err)

		file := filepath.Join(s.Root(), "tests", "UserTest.php")
		output := fmt.Sprintf("PHPUnit 10.5.0\n\n..F\n\nThere was 1 failure:\n\n1) App\\Tests\\UserTest::test_update\nFailed asserting that false is true.\n\n%s:16\n\nFAILURES!\n", file)
		proc.respond = func(context.Context, string) (*process.Result, error) {
			return &process.Result{ExitCode: 1, Output: output}, nil
		}

		// When
		summary, err := s.Run(context.Background(), nil)

		// Then
		require.NoError(t, err)
		assert.NotEmpty(t, summary.RunID)
		assert.Equal(t, 2, summary.Passed)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, []string{"composer test -- --colors=never"}, proc.commands)
		assert.Equal(t, domain.StateErrored, s.Tree().Root.State)
		assert.Equal(t, domain.StateFailed, s.Tree().Find("UserTest::test_update").State)
		assert.False(t, s.Running())

		entries := s.Diagnostics().ForFile(file)
		require.Len(t, entries, 1)
		assert.Equal(t, 15, entries[0].Line)
		assert.Equal(t, 8, entries[0].Range.StartCol)

		types := events.types()
		require.Len(t, types, 4)
		assert.Equal(t, domain.EventRunStarted, types[2])
		assert.Equal(t, domain.EventRunFinished, types[3])
	})

	t.Run("should fail before the tree is loaded", func(t *testing.T) {
		t.Parallel()

		s := newSession(t, newProject(t), &scriptedProc{}, &eventLog{})

		_, err := s.Run(context.Background(), nil)

		assert.ErrorIs(t, err, ErrNotLoaded)
	})

	t.Run("should reject a second concurrent run", func(t *testing.T) {
		t.Parallel()

		// Given
		started := make(chan string, 1)
		s := newSession(t, newProject(t), &scriptedProc{respond: blockUntilCancelled(started)}, &eventLog{})
		_, _, err := s.Load(context.Background())
		require.NoError(t, err)

		done, err := s.Start(context.Background(), []string{"UserTest::test_create"})
		require.NoError(t, err)
		<-started

		// When
		_, err = s.Run(context.Background(), nil)

		// Then
		assert.ErrorIs(t, err, ErrRunInProgress)
		assert.True(t, s.Cancel())
		summary := <-done
		assert.True(t, summary.Cancelled)
	})
}

func TestSession_Cancel(t *testing.T) {
	t.Parallel()

	// Given
	started := make(chan string, 1)
	events := &eventLog{}
	proc := &scriptedProc{respond: blockUntilCancelled(started)}
	s := newSession(t, newProject(t), proc, events)
	tree, _, err := s.Load(context.Background())
	require.NoError(t, err)
	order := tree.Suites()[0]
	user := tree.Suites()[1]

	assert.False(t, s.Cancel())

	done, err := s.Start(context.Background(), []string{order.ID, user.ID})
	require.NoError(t, err)
	<-started

	// When
	assert.True(t, s.Cancel())
	summary := <-done

	// Then
	assert.True(t, summary.Cancelled)
	assert.Empty(t, summary.Executed)
	assert.Len(t, proc.commands, 1)
	assert.Equal(t, domain.StatePending, order.State)
	assert.Equal(t, domain.StatePending, order.Children[0].State)
	assert.Equal(t, domain.StatePending, user.State)

	types := events.types()
	assert.Equal(t, domain.EventRunFinished, types[len(types)-1])
	assert.False(t, s.Running())
	assert.False(t, s.Cancel())
}

func TestSession_Close(t *testing.T) {
	t.Parallel()

	// Given
	started := make(chan string, 1)
	s := newSession(t, newProject(t), &scriptedProc{respond: blockUntilCancelled(started)}, &eventLog{})
	_, _, err := s.Load(context.Background())
	require.NoError(t, err)

	done, err := s.Start(context.Background(), nil)
	require.NoError(t, err)
	<-started

	// When
	require.NoError(t, s.Close())

	// Then
	summary, ok := <-done
	require.True(t, ok)
	assert.True(t, summary.Cancelled)

	_, err = s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, s.Close())
}

func TestSession_Command(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	cfg := config.Default()
	cfg.Command = "vendor/bin/phpunit"
	cfg.Separator = ""

	s, err := New(root, cfg, WithLogger(log.NewLogger(log.DiscardHandler())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Command("")
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, _, err = s.Load(context.Background())
	require.NoError(t, err)

	cmd, err := s.Command("UserTest::test_update")
	require.NoError(t, err)
	assert.Equal(t, `vendor/bin/phpunit --filter "/UserTest::test_update(\s.*)?$/" --colors=never`, cmd)

	_, err = s.Command("Missing::test")
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Command = ""

	_, err := New(t.TempDir(), cfg)

	assert.ErrorIs(t, err, config.ErrEmptyCommand)
}

func TestSession_Watch(t *testing.T) {
	t.Parallel()

	// Given
	root := newProject(t)
	s := newSession(t, root, &scriptedProc{}, &eventLog{})
	s.reloadDelay = 20 * time.Millisecond
	_, _, err := s.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	watchErr := make(chan error, 1)
	go func() { watchErr <- s.Watch(ctx) }()

	// When
	invoice := filepath.Join(root, "tests", "InvoiceTest.php")
	content := []byte("<?php\nclass InvoiceTest {\n    public function test_sum() {}\n}\n")
	// The watcher registers asynchronously, so keep touching the file until a reload picks it up.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(invoice, content, 0o644)
		return len(s.Tree().Suites()) == 3
	}, 5*time.Second, 50*time.Millisecond)

	// Then
	assert.NotNil(t, s.Tree().Find("InvoiceTest::test_sum"))
	cancel()
	require.NoError(t, <-watchErr)
}
