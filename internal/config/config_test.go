package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Knowledge Base", cfg.KnowledgeFolder)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 300, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, "json", cfg.VectorStore.Backend)
	assert.Equal(t, "vector_store.json", cfg.VectorStore.Path)
	assert.InDelta(t, 0.4, cfg.Router.Threshold(), 1e-12)
	assert.Equal(t, 5, cfg.Router.TopK)
	assert.Equal(t, 6, cfg.Router.MaxHistory)
	assert.Equal(t, "medium", cfg.Generator.SearchContextSize)
	assert.Empty(t, cfg.Server.RescanSchedule)
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
knowledge_folder: docs
embedder:
  type: hashing
vector_store:
  backend: sqlite
router:
  similarity_threshold: 0.55
server:
  rescan_schedule: "@every 10m"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", cfg.KnowledgeFolder)
	require.NotNil(t, cfg.Embedder.Hashing)
	assert.Equal(t, 512, cfg.Embedder.Hashing.Dimension)
	assert.Nil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "vector_store.db", cfg.VectorStore.Path)
	assert.InDelta(t, 0.55, cfg.Router.Threshold(), 1e-12)
	assert.Equal(t, "@every 10m", cfg.Server.RescanSchedule)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  backend: qdrant\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown vector store backend")
}

func TestLoad_RejectsThresholdOutsideRange(t *testing.T) {
	for _, v := range []string{"0", "-0.2", "1.5"} {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("router:\n  similarity_threshold: "+v+"\n"), 0o644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "similarity_threshold", v)
	}
}

func TestRouterConfig_ThresholdDefault(t *testing.T) {
	assert.InDelta(t, DefaultSimilarityThreshold, RouterConfig{}.Threshold(), 1e-12)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("router: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Server.Addr = ":8080"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "ragchat", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, "json", cfg.VectorStore.Backend)
}
