package retriever

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphweave/graphweave/internal/knowledge"
)

// Assembler renders a retrieval result as a token-budgeted context
// string for LLM consumption. Units (one node, edge or chunk each) are
// appended greedily in result order; the first unit that would overflow
// the budget ends the assembly, and no unit is ever truncated.
type Assembler struct {
	estimate TokenEstimator
}

// NewAssembler creates an assembler with the given token estimator,
// falling back to DefaultTokenEstimator when nil.
func NewAssembler(estimate TokenEstimator) *Assembler {
	if estimate == nil {
		estimate = DefaultTokenEstimator
	}
	return &Assembler{estimate: estimate}
}

// Assemble serializes the result into a deterministic textual context
// within tokenBudget. Exhausting the budget is normal termination, not
// an error; the partial assembly is returned.
func (a *Assembler) Assemble(result *RetrievalResult, tokenBudget int) string {
	var b strings.Builder
	remaining := tokenBudget

	sections := []struct {
		header string
		units  []string
	}{
		{"=== Knowledge Graph: Entities ===", a.nodeUnits(result.Nodes)},
		{"=== Knowledge Graph: Relationships ===", a.edgeUnits(result)},
		{"=== Retrieved Passages ===", a.chunkUnits(result)},
	}

	for _, section := range sections {
		if len(section.units) == 0 {
			continue
		}
		headerCost := a.estimate(section.header)
		headerWritten := false
		for _, unit := range section.units {
			cost := a.estimate(unit)
			if !headerWritten {
				cost += headerCost
			}
			if cost > remaining {
				return strings.TrimRight(b.String(), "\n")
			}
			if !headerWritten {
				b.WriteString(section.header)
				b.WriteString("\n")
				headerWritten = true
				remaining -= headerCost
			}
			b.WriteString(unit)
			b.WriteString("\n")
			remaining -= a.estimate(unit)
		}
		if headerWritten {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Assembler) nodeUnits(nodes []*knowledge.Node) []string {
	units := make([]string, 0, len(nodes))
	for _, node := range nodes {
		var sb strings.Builder
		fmt.Fprintf(&sb, "- %s %s", node.Label, node.ID)
		if props := formatProperties(node.Properties); props != "" {
			sb.WriteString(" {")
			sb.WriteString(props)
			sb.WriteString("}")
		}
		if node.VectorizableContent != "" {
			sb.WriteString(": ")
			sb.WriteString(node.VectorizableContent)
		}
		units = append(units, sb.String())
	}
	return units
}

func (a *Assembler) edgeUnits(result *RetrievalResult) []string {
	labelByID := make(map[string]string, len(result.Nodes))
	for _, node := range result.Nodes {
		labelByID[node.ID.String()] = node.Label
	}
	describe := func(id string) string {
		if label, ok := labelByID[id]; ok {
			return fmt.Sprintf("%s %s", label, id)
		}
		return id
	}

	units := make([]string, 0, len(result.Edges))
	for _, edge := range result.Edges {
		var sb strings.Builder
		fmt.Fprintf(&sb, "- (%s) -[%s]-> (%s)",
			describe(edge.SourceID.String()), edge.RelationName, describe(edge.TargetID.String()))
		if edge.Weight != nil {
			fmt.Fprintf(&sb, " weight=%g", *edge.Weight)
		}
		units = append(units, sb.String())
	}
	return units
}

func (a *Assembler) chunkUnits(result *RetrievalResult) []string {
	units := make([]string, 0, len(result.Chunks))
	for _, sc := range result.Chunks {
		units = append(units, fmt.Sprintf("- [relevance %.3f] %s", sc.Score, sc.Chunk.Content))
	}
	return units
}

// formatProperties renders a property map with sorted keys so the same
// node always serializes identically.
func formatProperties(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, props[key]))
	}
	return strings.Join(parts, ", ")
}
