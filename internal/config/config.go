// Package config loads and validates the engine configuration from a
// YAML file, with environment variables overriding secrets so they
// never have to live on disk.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/graphweave/graphweave/internal/chunkstore"
	"github.com/graphweave/graphweave/internal/embedder"
	"github.com/graphweave/graphweave/internal/graphstore"
	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/retriever"
	"github.com/graphweave/graphweave/internal/types"
)

// Config is the root configuration for the engine and its tool surface.
type Config struct {
	Log       LogConfig         `yaml:"log"`
	Graph     graphstore.Config `yaml:"graph"`
	Chunks    chunkstore.Config `yaml:"chunks"`
	Embedding embedder.Config   `yaml:"embedding"`
	Retrieval RetrievalConfig   `yaml:"retrieval"`
	MCP       MCPConfig         `yaml:"mcp"`
	Relations []RelationConfig  `yaml:"relations"`
}

// RelationConfig declares one relation type for the deployment's
// registry. Relations are directed unless undirected is set.
type RelationConfig struct {
	Name        string `yaml:"name"`
	SourceLabel string `yaml:"source_label"`
	TargetLabel string `yaml:"target_label"`
	Category    string `yaml:"category"`
	Undirected  bool   `yaml:"undirected"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// RetrievalConfig carries the engine-wide retrieval defaults applied to
// tool calls that leave the corresponding field unset.
type RetrievalConfig struct {
	TopK           int `yaml:"top_k"`
	MaxGraphNodes  int `yaml:"max_graph_nodes"`
	MaxTokenBudget int `yaml:"max_token_budget"`
	MinResults     int `yaml:"min_results"`
}

// MCPConfig configures the retrieve_context tool boundary. The required
// field set drives both request validation and the generated JSON
// schema, so the two cannot drift apart.
type MCPConfig struct {
	RequiredFields []string `yaml:"required_fields"`
}

// Load reads, defaults and validates the configuration at path. An
// empty path yields a pure-default configuration. OPENAI_API_KEY and
// NEO4J_PASSWORD override their file counterparts when set.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to parse config file", err)
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Graph.Neo4j.Password = password
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields across all sections.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	c.Graph.ApplyDefaults()
	c.Chunks.ApplyDefaults()
	c.Embedding.ApplyDefaults()
	if c.Chunks.Dimensions == 0 {
		c.Chunks.Dimensions = c.Embedding.Dimensions
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = retriever.DefaultTopK
	}
	if c.Retrieval.MaxGraphNodes == 0 {
		c.Retrieval.MaxGraphNodes = retriever.DefaultMaxGraphNodes
	}
	if c.Retrieval.MaxTokenBudget == 0 {
		c.Retrieval.MaxTokenBudget = retriever.DefaultMaxTokenBudget
	}
	if c.Retrieval.MinResults == 0 {
		c.Retrieval.MinResults = retriever.DefaultMinResults
	}
	if c.MCP.RequiredFields == nil {
		c.MCP.RequiredFields = []string{"textQuery"}
	}
}

// recognizedToolFields are the retrieve_context request fields a
// deployment may mark as required.
var recognizedToolFields = map[string]struct{}{
	"textQuery":        {},
	"graphQuery":       {},
	"semanticKeywords": {},
	"topK":             {},
	"maxTokenBudget":   {},
	"maxGraphNodes":    {},
}

// Validate checks every section for internal consistency.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown log format %q", c.Log.Format)
	}

	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Chunks.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}

	if c.Retrieval.TopK <= 0 || c.Retrieval.TopK > retriever.MaxTopK {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
			"retrieval top_k must be in [1, %d]", retriever.MaxTopK)
	}
	if c.Retrieval.MaxGraphNodes <= 0 || c.Retrieval.MaxGraphNodes > retriever.MaxGraphNodesCap {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
			"retrieval max_graph_nodes must be in [1, %d]", retriever.MaxGraphNodesCap)
	}
	if c.Retrieval.MaxTokenBudget <= 0 || c.Retrieval.MaxTokenBudget > retriever.MaxTokenBudgetCap {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
			"retrieval max_token_budget must be in [1, %d]", retriever.MaxTokenBudgetCap)
	}
	if c.Retrieval.MinResults <= 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "retrieval min_results must be positive")
	}

	for _, field := range c.MCP.RequiredFields {
		if _, ok := recognizedToolFields[field]; !ok {
			return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
				"unrecognized required field %q", field)
		}
	}

	if _, err := knowledge.NewRelationRegistry(c.RelationTypes()); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "invalid relation declarations", err)
	}
	return nil
}

// RelationTypes converts the declared relations into registry entries.
func (c *Config) RelationTypes() []knowledge.RelationType {
	out := make([]knowledge.RelationType, 0, len(c.Relations))
	for _, rel := range c.Relations {
		rt := knowledge.NewRelationType(rel.Name, rel.SourceLabel, rel.TargetLabel)
		if rel.Category != "" {
			rt = rt.WithCategory(knowledge.SemanticCategory(rel.Category))
		}
		if rel.Undirected {
			rt = rt.Undirected()
		}
		out = append(out, rt)
	}
	return out
}

// IsRequired reports whether a tool field is configured as required.
func (m MCPConfig) IsRequired(field string) bool {
	for _, required := range m.RequiredFields {
		if required == field {
			return true
		}
	}
	return false
}
