// Package mcptool exposes the retrieval engine to LLM agents as a
// single Model Context Protocol tool, retrieve_context. The tool's
// required fields come from deployment configuration; the same field
// set drives both the generated JSON schema and request validation.
package mcptool

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/graphweave/graphweave/internal/retriever"
)

// ToolName is the name the tool registers under.
const ToolName = "retrieve_context"

// RetrieveContextInput is the tool's wire-level request. Every field is
// optional at the schema level by default; deployments promote fields
// to required via configuration.
type RetrieveContextInput struct {
	TextQuery        string                `json:"textQuery,omitempty" jsonschema:"free-text query to embed and search for"`
	GraphQuery       *retriever.GraphQuery `json:"graphQuery,omitempty" jsonschema:"graph-side query: entry-point targets plus a traversal hint or patterns"`
	SemanticKeywords []string              `json:"semanticKeywords,omitempty" jsonschema:"keywords appended to the query before embedding"`
	TopK             int                   `json:"topK,omitempty" jsonschema:"maximum chunks to return (default 10)"`
	MaxTokenBudget   int                   `json:"maxTokenBudget,omitempty" jsonschema:"token budget for the assembled context"`
	MaxGraphNodes    int                   `json:"maxGraphNodes,omitempty" jsonschema:"maximum nodes the graph side may return"`
}

// RetrieveContextOutput is the tool's response: the assembled context
// plus enough metadata for the agent to judge the evidence.
type RetrieveContextOutput struct {
	Context    string `json:"context"`
	Strategy   string `json:"strategy"`
	NodeCount  int    `json:"nodeCount"`
	EdgeCount  int    `json:"edgeCount"`
	ChunkCount int    `json:"chunkCount"`
	ElapsedMS  int64  `json:"elapsedMs"`
}

// inputSchema builds the tool's input schema with the configured
// required set. Properties never change per deployment, only which of
// them are required.
func inputSchema(required []string) *jsonschema.Schema {
	stringArray := &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"textQuery": {
				Type:        "string",
				Description: "Free-text query to embed and search for.",
			},
			"graphQuery": {
				Type:        "object",
				Description: "Graph-side query: targets plus a traversal hint or patterns.",
				Properties: map[string]*jsonschema.Schema{
					"targets": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type: "object",
							Properties: map[string]*jsonschema.Schema{
								"description":    {Type: "string"},
								"typeHint":       {Type: "string"},
								"propertyFilter": {Type: "object"},
							},
						},
					},
					"traversal": {
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"maxDepth":         {Type: "integer"},
							"allowedRelations": stringArray,
							"direction": {
								Type: "string",
								Enum: []any{"OUTBOUND", "INBOUND", "BOTH"},
							},
						},
					},
					"patterns": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type: "object",
							Properties: map[string]*jsonschema.Schema{
								"steps": {
									Type: "array",
									Items: &jsonschema.Schema{
										Type: "object",
										Properties: map[string]*jsonschema.Schema{
											"sourceLabel": {Type: "string"},
											"relation":    {Type: "string"},
											"targetLabel": {Type: "string"},
											"index":       {Type: "integer"},
										},
									},
								},
								"constraints": {
									Type: "array",
									Items: &jsonschema.Schema{
										Type: "object",
										Properties: map[string]*jsonschema.Schema{
											"label":    {Type: "string"},
											"property": {Type: "string"},
											"type":     {Type: "string"},
											"value":    {},
										},
									},
								},
								"rankingStrategy": {
									Type: "string",
									Enum: []any{"PATH_LENGTH", "EDGE_WEIGHT", "NODE_CENTRALITY", "SEMANTIC_SCORE", "HYBRID"},
								},
							},
						},
					},
				},
			},
			"semanticKeywords": stringArray,
			"topK":             {Type: "integer", Description: "Maximum chunks to return."},
			"maxTokenBudget":   {Type: "integer", Description: "Token budget for the assembled context."},
			"maxGraphNodes":    {Type: "integer", Description: "Maximum nodes the graph side may return."},
		},
		Required: append([]string(nil), required...),
	}
}
