package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/autoventa/dealerbot/internal/knowledge"
)

// KnowledgeSearcher answers similarity queries against the knowledge base.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.SearchResult, error)
}

// KnowledgeTool answers questions about the dealer (services, locations,
// value proposition) from the knowledge base.
type KnowledgeTool struct {
	Store KnowledgeSearcher
	TopK  int
}

func (t *KnowledgeTool) Name() string { return "search_dealer_info" }

func (t *KnowledgeTool) Description() string {
	return "Busca información sobre la empresa: servicios, ubicaciones, garantías y " +
		"propuesta de valor. Úsala cuando el cliente pregunte sobre la empresa y no " +
		"sobre un auto específico."
}

func (t *KnowledgeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Pregunta o consulta del cliente"},
		},
		"required": []string{"query"},
	}
}

func (t *KnowledgeTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("search_dealer_info arguments: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("search_dealer_info: empty query")
	}

	topK := t.TopK
	if topK <= 0 {
		topK = 5
	}
	results, err := t.Store.Search(ctx, in.Query, topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No encontré información sobre eso en la base de conocimiento.", nil
	}

	var b strings.Builder
	b.WriteString("Información encontrada:\n")
	for _, r := range results {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(r.Content))
		b.WriteByte('\n')
	}
	return b.String(), nil
}
