package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, []string{"**/*Test.php", "**/test-*.php"}, cfg.Search.Include)
	assert.Equal(t, []string{"**/vendor/**", "**/node_modules/**", ".git", ".vscode"}, cfg.Search.Exclude)
	assert.Equal(t, "composer test", cfg.Command)
	assert.Equal(t, "--", cfg.Separator)
	assert.Equal(t, "regex", cfg.Scanner)
	assert.Equal(t, "test_", cfg.Prefix)
	assert.Equal(t, "phpunit", cfg.Kill.Signature)
	assert.Equal(t, 2*time.Second, cfg.Kill.Grace)
	require.NoError(t, cfg.Validate())
}

func TestDefault_IsolatedSlices(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Search.Include[0] = "changed"

	assert.Equal(t, "**/*Test.php", Default().Search.Include[0])
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("should return defaults when the file is missing", func(t *testing.T) {
		t.Parallel()

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("should overlay file values on defaults", func(t *testing.T) {
		t.Parallel()

		// Given
		path := filepath.Join(t.TempDir(), DefaultFile)
		content := `search:
  include:
    - "tests/**/*Test.php"
command: vendor/bin/phpunit
separator: ""
kill:
  grace: 500ms
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		// When
		cfg, err := Load(path)

		// Then
		require.NoError(t, err)
		assert.Equal(t, []string{"tests/**/*Test.php"}, cfg.Search.Include)
		assert.Equal(t, Default().Search.Exclude, cfg.Search.Exclude)
		assert.Equal(t, "vendor/bin/phpunit", cfg.Command)
		assert.Equal(t, "", cfg.Separator)
		assert.Equal(t, "regex", cfg.Scanner)
		assert.Equal(t, "phpunit", cfg.Kill.Signature)
		assert.Equal(t, 500*time.Millisecond, cfg.Kill.Grace)
	})

	t.Run("should reject malformed yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultFile)
		require.NoError(t, os.WriteFile(path, []byte("search: [unterminated"), 0o644))

		_, err := Load(path)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})

	t.Run("should reject invalid values", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultFile)
		require.NoError(t, os.WriteFile(path, []byte("scanner: psalm\n"), 0o644))

		_, err := Load(path)

		assert.ErrorIs(t, err, ErrUnknownScanner)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "ast scanner",
			mutate: func(c *Config) { c.Scanner = "ast" },
		},
		{
			name:   "sweep disabled",
			mutate: func(c *Config) { c.Kill.Signature = "" },
		},
		{
			name:    "empty command",
			mutate:  func(c *Config) { c.Command = "" },
			wantErr: ErrEmptyCommand,
		},
		{
			name:    "unknown scanner",
			mutate:  func(c *Config) { c.Scanner = "lsp" },
			wantErr: ErrUnknownScanner,
		},
		{
			name:    "empty prefix",
			mutate:  func(c *Config) { c.Prefix = "" },
			wantErr: ErrEmptyPrefix,
		},
		{
			name:    "negative grace",
			mutate:  func(c *Config) { c.Kill.Grace = -time.Second },
			wantErr: ErrNegativeGrace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
