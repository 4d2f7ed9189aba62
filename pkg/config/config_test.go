package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quack/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir is required"},
		{"empty access method", func(c *Config) { c.AccessMethod = "" }, "access_method is required"},
		{"negative threads", func(c *Config) { c.Engine.Threads = -1 }, "engine.threads"},
		{"sample rate", func(c *Config) { c.Observability.TracingSampleRate = 1.5 }, "tracing_sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_SubstitutesEnvAndKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUACK_TEST_DIR", dir)

	path := filepath.Join(dir, "quack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: ${QUACK_TEST_DIR}\nengine:\n  memory_limit: 512MB\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "512MB", cfg.Engine.MemoryLimit)
	assert.Equal(t, DefaultAccessMethod, cfg.AccessMethod)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quack.yaml")
	cfg := NewDefaultConfig()
	cfg.DataDir = "/srv/quack"
	cfg.Host.ConnectionString = "postgres://localhost/db"
	cfg.Logging.OutputPaths = []string{"stderr"}

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestCheckDataDirectory(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, CheckDataDirectory(t.TempDir()))
	})

	t.Run("missing", func(t *testing.T) {
		err := CheckDataDirectory(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeDirectoryConfig))
		assert.Contains(t, err.Error(), "doesn't exist")
	})

	t.Run("not a directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		err := CheckDataDirectory(file)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeDirectoryConfig))
		assert.Contains(t, err.Error(), "is not a directory")
	})

	t.Run("read only", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced here")
		}
		dir := t.TempDir()
		require.NoError(t, os.Chmod(dir, 0o500))
		t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

		err := CheckDataDirectory(dir)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeDirectoryConfig))
		assert.Contains(t, err.Error(), "permission problem")
	})
}
