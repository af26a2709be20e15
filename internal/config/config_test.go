package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Graph.Store)
	assert.Equal(t, "memory", cfg.Chunks.Store)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 1536, cfg.Chunks.Dimensions, "chunk dimensions follow the embedder")
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 50, cfg.Retrieval.MaxGraphNodes)
	assert.Equal(t, 4000, cfg.Retrieval.MaxTokenBudget)
	assert.Equal(t, 3, cfg.Retrieval.MinResults)
	assert.Equal(t, []string{"textQuery"}, cfg.MCP.RequiredFields)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
graph:
  store: sqlite
  path: /tmp/graph.db
embedding:
  provider: mock
  dimensions: 64
retrieval:
  top_k: 25
mcp:
  required_fields: [textQuery, topK]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Graph.Store)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, 64, cfg.Chunks.Dimensions)
	assert.Equal(t, 25, cfg.Retrieval.TopK)
	assert.True(t, cfg.MCP.IsRequired("topK"))
	assert.False(t, cfg.MCP.IsRequired("graphQuery"))
}

func TestConfig_RelationTypes(t *testing.T) {
	cfg := &Config{Relations: []RelationConfig{
		{Name: "has_condition", SourceLabel: "Patient", TargetLabel: "Condition", Category: "associative"},
		{Name: "INTERACTS_WITH", SourceLabel: "Drug", TargetLabel: "Drug", Undirected: true},
	}}

	rts := cfg.RelationTypes()
	require.Len(t, rts, 2)
	assert.Equal(t, "HAS_CONDITION", rts[0].Name)
	assert.Equal(t, knowledge.SemanticAssociative, rts[0].Category)
	assert.True(t, rts[0].Directed)
	assert.False(t, rts[1].Directed)
	assert.Equal(t, knowledge.SemanticCustom, rts[1].Category)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("NEO4J_PASSWORD", "neo4j-from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Embedding.APIKey)
	assert.Equal(t, "neo4j-from-env", cfg.Graph.Neo4j.Password)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "log:\n  level: verbose\n"},
		{"bad required field", "mcp:\n  required_fields: [secretToken]\n"},
		{"bad backend", "graph:\n  store: dgraph\n"},
		{"top_k too large", "retrieval:\n  top_k: 5000\n"},
		{"bad relation category", "relations:\n  - name: TREATS\n    source_label: Drug\n    target_label: Condition\n    category: magical\n"},
		{"duplicate relation", "relations:\n  - name: TREATS\n    source_label: Drug\n    target_label: Condition\n  - name: treats\n    source_label: Drug\n    target_label: Condition\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			_, err := Load(path)
			require.Error(t, err)
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}
