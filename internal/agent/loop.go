package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/autoventa/dealerbot/internal/llm"
	"github.com/autoventa/dealerbot/internal/session"
	"github.com/autoventa/dealerbot/internal/tools"
)

const systemPrompt = `Eres un agente comercial de una empresa de compra y venta de autos seminuevos en México.

Tu objetivo es ayudar a los clientes de forma amigable y profesional. Puedes:

1. **Información sobre la empresa**: usa la herramienta 'search_dealer_info' para responder preguntas sobre servicios, ubicaciones y garantías.
2. **Recomendaciones de autos**: usa 'search_cars' para buscar en el catálogo según marca, modelo, año o presupuesto.
3. **Planes de financiamiento**: usa 'calculate_financing'. La tasa es fija y los plazos disponibles son de 3 a 6 años.
4. **Detalles de un auto**: usa 'get_car_details'. Si el cliente dice "ese auto" o "el primero", pasa reference_index.

Instrucciones:
- Mantén un tono profesional pero amigable y responde siempre en español.
- Para calcular financiamiento necesitas precio y enganche; si no tienes el precio, primero busca el auto.
- Si no tienes suficiente información, pregunta amablemente.
- Sé conciso pero informativo.
- Si el cliente pide algo fuera de tu alcance (autos nuevos, taller), indícalo amablemente.`

// ChatCompleter is the LLM surface the loop needs. *llm.Client satisfies it.
type ChatCompleter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Config tunes the agent loop.
type Config struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxIterations int // tool-calling rounds per message
	HistoryWindow int // turns of history sent to the model
}

// Loop is the Gateway implementation: it builds the prompt, runs the
// tool-calling loop against the LLM, and classifies failures.
type Loop struct {
	client ChatCompleter
	tools  *tools.Registry
	cfg    Config
}

// NewLoop creates an agent loop, filling config defaults.
func NewLoop(client ChatCompleter, registry *tools.Registry, cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 8
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	return &Loop{client: client, tools: registry, cfg: cfg}
}

// Invoke runs the agent for one inbound message.
func (l *Loop) Invoke(ctx context.Context, senderID string, history []session.Turn, message string) (Reply, error) {
	ctx = tools.WithSender(ctx, senderID)
	messages := l.buildMessages(history, message)

	var trace []ToolTraceEntry
	for iteration := 0; iteration < l.cfg.MaxIterations; iteration++ {
		resp, err := l.client.Chat(ctx, llm.ChatRequest{
			Model:       l.cfg.Model,
			Messages:    messages,
			Tools:       l.tools.Schemas(),
			Temperature: l.cfg.Temperature,
			MaxTokens:   l.cfg.MaxTokens,
		})
		if err != nil {
			return Reply{ToolTrace: trace}, classify(err)
		}

		if !resp.HasToolCalls() {
			return Reply{Text: resp.Content, ToolTrace: trace}, nil
		}

		messages = append(messages, llm.Message{
			Role:      session.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result := l.executeTool(ctx, tc)
			trace = append(trace, ToolTraceEntry{
				Tool:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
				Result:    result,
			})
			messages = append(messages, llm.Message{
				Role:       session.RoleTool,
				Content:    result,
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
			})
		}
	}

	// The model kept calling tools past the budget. Treat as terminal:
	// retrying the same message would do the same thing.
	return Reply{ToolTrace: trace}, fmt.Errorf("%w: tool iteration limit reached", ErrRejected)
}

func (l *Loop) buildMessages(history []session.Turn, message string) []llm.Message {
	window := history
	if len(window) > l.cfg.HistoryWindow {
		window = window[len(window)-l.cfg.HistoryWindow:]
	}

	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, turn := range window {
		if turn.Role == session.RoleTool {
			// Tool turns are kept in the transcript for inspection but are
			// not replayed; they only make sense inside their own exchange.
			continue
		}
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: session.RoleUser, Content: message})
}

func (l *Loop) executeTool(ctx context.Context, tc llm.ToolCall) string {
	tool := l.tools.Get(tc.Function.Name)
	if tool == nil {
		return fmt.Sprintf("Error: herramienta desconocida %q", tc.Function.Name)
	}

	args := json.RawMessage(tc.Function.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	result, err := tool.Execute(ctx, args)
	if err != nil {
		log.Printf("[Agent] Tool %s failed: %v", tc.Function.Name, err)
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// classify maps transport-level errors onto the Gateway taxonomy.
func classify(err error) error {
	if llm.IsTerminal(err) {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
