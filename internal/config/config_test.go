package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/rank"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, rank.DefaultWeights(), cfg.Weights)
	assert.Equal(t, rank.DefaultHalfLife, cfg.HalfLife)
	assert.NotEmpty(t, cfg.DBPath)

	quotas, err := cfg.BundleQuotas()
	require.NoError(t, err)
	assert.Equal(t, 6, quotas[model.TypeSemantic])
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/custom.db
half_life: 48h
weights:
  lexical: 0.5
  semantic: 0.1
  salience: 0.2
  recency: 0.2
quotas:
  semantic: 3
  episodic: 1
similarity:
  provider: ollama
  model: all-minilm
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, 48*time.Hour, cfg.HalfLife)
	assert.Equal(t, 0.5, cfg.Weights.Lexical)
	assert.Equal(t, "ollama", cfg.Similarity.Provider)

	quotas, err := cfg.BundleQuotas()
	require.NoError(t, err)
	assert.Equal(t, 3, quotas[model.TypeSemantic])
	assert.Equal(t, 1, quotas[model.TypeEpisodic])
	assert.Zero(t, quotas[model.TypeProcedural], "unlisted types are excluded, not defaulted")
}

func TestLoadEnvOverridesDBPath(t *testing.T) {
	t.Setenv("MEMGATE_DB", "/tmp/env.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
weights:
  lexical: -1
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestLoadRejectsBadHalfLife(t *testing.T) {
	path := writeConfig(t, `half_life: -1h`)
	_, err := Load(path)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBundleQuotasRejectsUnknownType(t *testing.T) {
	cfg := Default()
	cfg.Quotas = map[string]int{"hunch": 2}
	_, err := cfg.BundleQuotas()
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
