package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const calculatorTest = `<?php

class CalculatorTest extends TestCase
{
    public function test_add()
    {
        $this->assertSame(2, 1 + 1);
    }

    public function test_divide()
    {
        $this->assertSame(2, 4 / 3);
    }
}
`

const calculatorFailure = `PHPUnit 10.5.0 by Sebastian Bergmann and contributors.

.F

There was 1 failure:

1) CalculatorTest::test_divide
Failed asserting that 1.3333333333333333 is identical to 2.

%FILE%:12

FAILURES!
Tests: 2, Assertions: 2, Failures: 1.
`

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "tests", "CalculatorTest.php")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(calculatorTest), 0o644))
	return root
}

// runApp runs the CLI and returns stdout and the exit code.
func runApp(t *testing.T, args ...string) (string, int) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"explorer"}, args...))
	if err == nil {
		return stdout.String(), 0
	}

	var exitErr cli.ExitCoder
	require.True(t, errors.As(err, &exitErr), "unexpected error: %v\n%s", err, stderr.String())
	return stdout.String(), exitErr.ExitCode()
}

func TestList(t *testing.T) {
	root := newProject(t)

	out, code := runApp(t, "--dir", root, "--log.level", "error", "list")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "PHPUnit tests (1 suites, 2 tests)")
	assert.Contains(t, out, "CalculatorTest::test_add")
	assert.Contains(t, out, "CalculatorTest::test_divide")
}

func TestList_ASTScanner(t *testing.T) {
	root := newProject(t)

	out, code := runApp(t, "--dir", root, "--scanner", "ast", "--log.level", "error", "list")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "CalculatorTest::test_divide")
}

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}

	t.Run("should exit zero when every test passes", func(t *testing.T) {
		root := newProject(t)

		out, code := runApp(t, "--dir", root, "--command", "echo", "--log.level", "error", "run")

		assert.Equal(t, 0, code)
		assert.Contains(t, out, "PHPUnit results")
		assert.Contains(t, out, "✓ passed")
		assert.NotContains(t, out, "✗")
	})

	t.Run("should exit one and list failures", func(t *testing.T) {
		root := newProject(t)
		file := filepath.Join(root, "tests", "CalculatorTest.php")
		output := bytes.ReplaceAll([]byte(calculatorFailure), []byte("%FILE%"), []byte(file))
		require.NoError(t, os.WriteFile(filepath.Join(root, "phpunit.out"), output, 0o644))

		out, code := runApp(t, "--dir", root, "--command", "cat phpunit.out; exit 1; :", "--log.level", "error", "run")

		assert.Equal(t, exitTestFailure, code)
		assert.Contains(t, out, "✗ failed")
		assert.Contains(t, out, "Failures")
		assert.Contains(t, out, "CalculatorTest.php:12")
	})

	t.Run("should run only the requested test", func(t *testing.T) {
		root := newProject(t)

		out, code := runApp(t, "--dir", root, "--command", "echo", "--log.level", "error", "run", "CalculatorTest::test_add")

		assert.Equal(t, 0, code)
		assert.Contains(t, out, "✓ passed")
		assert.Contains(t, out, "pending")
	})

	t.Run("should exit two when the runner crashes", func(t *testing.T) {
		root := newProject(t)

		_, code := runApp(t, "--dir", root, "--command", "exit 255; :", "--log.level", "error", "run")

		assert.Equal(t, exitRuntimeErr, code)
	})
}

func TestInvalidConfiguration(t *testing.T) {
	root := newProject(t)

	_, code := runApp(t, "--dir", root, "--scanner", "lsp", "list")

	assert.Equal(t, exitRuntimeErr, code)
}

func TestInvalidLogFormat(t *testing.T) {
	root := newProject(t)

	_, code := runApp(t, "--dir", root, "--log.format", "xml", "list")

	assert.Equal(t, exitRuntimeErr, code)
}
