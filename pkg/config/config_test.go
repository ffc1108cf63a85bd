package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/kernel"
)

func TestLoad_MissingFile_FallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store.Path, cfg.Store.Path)
}

func TestLoad_ParsesTOMLAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".murc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[store]
path = "custom/mubase"

[context]
max_tokens = 8000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom/mubase", cfg.Store.Path)
	assert.Equal(t, 8000, cfg.Context.MaxTokens)
	assert.Equal(t, Default().Embedding.Provider, cfg.Embedding.Provider)
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".murc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[context]
max_tokens = 8000
`), 0o644))

	t.Setenv("MU_CONTEXT_MAX_TOKENS", "2000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.Context.MaxTokens)
}

func TestValidate_RejectsOpenAIWithoutAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kernel.ErrConfig))
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kernel.ErrConfig))
}

func TestValidate_RejectsNonPositiveMaxTokens(t *testing.T) {
	cfg := Default()
	cfg.Context.MaxTokens = 0
	err := cfg.Validate()
	require.Error(t, err)
}
