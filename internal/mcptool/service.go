package mcptool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/graphweave/graphweave/internal/config"
	"github.com/graphweave/graphweave/internal/retriever"
	"github.com/graphweave/graphweave/internal/types"
)

// Service handles retrieve_context calls against a retrieval engine.
type Service struct {
	engine    retriever.Service
	retrieval config.RetrievalConfig
	mcpCfg    config.MCPConfig
	logger    *slog.Logger
}

// NewService builds the tool service. Retrieval defaults fill any
// request field the caller leaves unset.
func NewService(engine retriever.Service, retrieval config.RetrievalConfig, mcpCfg config.MCPConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:    engine,
		retrieval: retrieval,
		mcpCfg:    mcpCfg,
		logger:    logger.With("component", "mcptool"),
	}
}

// RetrieveContext validates the input against the configured required
// fields, runs the retrieval, and assembles the context string.
func (s *Service) RetrieveContext(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveContextInput) (*mcp.CallToolResult, RetrieveContextOutput, error) {
	if err := s.validateRequired(input); err != nil {
		return nil, RetrieveContextOutput{}, err
	}

	req, err := s.buildRequest(input)
	if err != nil {
		// Request construction errors describe the caller's own fields and
		// are safe to return as-is.
		return nil, RetrieveContextOutput{}, err
	}

	result, err := s.engine.Retrieve(ctx, req)
	if err != nil {
		return nil, RetrieveContextOutput{}, s.sanitize(err, input)
	}

	assembled := s.engine.AssembleContext(result, req.MaxTokenBudget())
	return nil, RetrieveContextOutput{
		Context:    assembled,
		Strategy:   string(result.Strategy),
		NodeCount:  len(result.Nodes),
		EdgeCount:  len(result.Edges),
		ChunkCount: len(result.Chunks),
		ElapsedMS:  result.Elapsed.Milliseconds(),
	}, nil
}

// validateRequired enforces the deployment's required field set before
// the coordinator runs. The same set shapes the advertised schema.
func (s *Service) validateRequired(input RetrieveContextInput) error {
	present := map[string]bool{
		"textQuery":        input.TextQuery != "",
		"graphQuery":       input.GraphQuery != nil,
		"semanticKeywords": len(input.SemanticKeywords) > 0,
		"topK":             input.TopK != 0,
		"maxTokenBudget":   input.MaxTokenBudget != 0,
		"maxGraphNodes":    input.MaxGraphNodes != 0,
	}
	for _, field := range s.mcpCfg.RequiredFields {
		if !present[field] {
			return types.NewErrorf(types.REQUIRED_FIELD_MISSING, "field %q is required", field)
		}
	}
	return nil
}

// buildRequest maps tool input onto a retrieval request, applying the
// configured defaults for unset fields.
func (s *Service) buildRequest(input RetrieveContextInput) (*retriever.RetrievalRequest, error) {
	topK := input.TopK
	if topK == 0 {
		topK = s.retrieval.TopK
	}
	maxNodes := input.MaxGraphNodes
	if maxNodes == 0 {
		maxNodes = s.retrieval.MaxGraphNodes
	}
	budget := input.MaxTokenBudget
	if budget == 0 {
		budget = s.retrieval.MaxTokenBudget
	}

	opts := []retriever.RequestOption{
		retriever.WithTopK(topK),
		retriever.WithMaxGraphNodes(maxNodes),
		retriever.WithMaxTokenBudget(budget),
		retriever.WithMinResults(s.retrieval.MinResults),
	}
	if input.GraphQuery != nil {
		opts = append(opts, retriever.WithGraphQuery(*input.GraphQuery))
	}
	if len(input.SemanticKeywords) > 0 {
		opts = append(opts, retriever.WithSemanticKeywords(input.SemanticKeywords...))
	}
	return retriever.NewRequest(input.TextQuery, opts...)
}

// sanitize logs the full failure and hands the caller a generic message
// with a correlation identifier instead of internal details.
func (s *Service) sanitize(err error, input RetrieveContextInput) error {
	correlation := uuid.NewString()
	s.logger.Error("retrieval failed",
		"correlation_id", correlation,
		"error", err,
		"text_query", input.TextQuery,
		"has_graph_query", input.GraphQuery != nil,
		"top_k", input.TopK)
	return fmt.Errorf("retrieval failed; correlation id %s", correlation)
}

// NewServer creates an MCP server with the retrieve_context tool
// registered under the configured schema.
func NewServer(svc *Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "graphweave",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: "Retrieve grounded context for a question by combining knowledge-graph traversal with vector similarity search. Returns an assembled, token-budgeted context string.",
		InputSchema: inputSchema(svc.mcpCfg.RequiredFields),
	}, svc.RetrieveContext)

	return server
}

// Run serves the tool over stdio until the context is cancelled.
func Run(ctx context.Context, svc *Service, version string) error {
	return NewServer(svc, version).Run(ctx, &mcp.StdioTransport{})
}
