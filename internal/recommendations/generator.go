package recommendations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/moleary1107/etownz-grants-sub007/internal/llm"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// GenerationContext is the bounded view of a session handed to a generator.
type GenerationContext struct {
	SessionID        string
	CompletedFields  []string
	PendingFields    []string
	FormDataSnapshot string
}

// GeneratedItem is one suggestion before it is persisted.
type GeneratedItem struct {
	FieldName  string
	Type       Type
	Text       string
	Confidence float64
}

// GenerationResult carries the suggestions and the model that produced them.
type GenerationResult struct {
	Model string
	Items []GeneratedItem
}

// Generator produces recommendations for a session context.
type Generator interface {
	Generate(ctx context.Context, gc GenerationContext) (GenerationResult, error)
}

// GeneratorConfig configures the LLM generator.
type GeneratorConfig struct {
	Model        string
	MaxTokens    int32
	Temperature  float32
	SystemPrompt string
}

const defaultGeneratorPrompt = `You assist applicants filling in grant application forms.

Given the fields already completed, the fields still pending and a snapshot of the current answers,
suggest the most useful next actions.

Return ONLY JSON in this exact format:
{"recommendations":[{"fieldName":"","type":"show_next|skip_optional|provide_help|suggest_value|validate_input","text":"","confidence":0.0}]}

Rules:
- fieldName must be one of the completed or pending fields.
- confidence is a number between 0 and 1.
- Return at most 5 recommendations, most useful first.
- Return {"recommendations":[]} when nothing is worth suggesting.
`

// LLMGenerator implements Generator on an llm.Client.
type LLMGenerator struct {
	client       llm.Client
	model        string
	maxTokens    int32
	temperature  float32
	systemPrompt string
	logger       *logging.Logger
}

// NewLLMGenerator constructs an LLM-backed generator.
func NewLLMGenerator(client llm.Client, cfg GeneratorConfig, logger *logging.Logger) *LLMGenerator {
	if client == nil {
		panic("recommendations: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = defaultGeneratorPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	return &LLMGenerator{
		client:       client,
		model:        cfg.Model,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		systemPrompt: prompt,
		logger:       logger,
	}
}

// Generate asks the model for suggestions and parses its JSON strictly.
func (g *LLMGenerator) Generate(ctx context.Context, gc GenerationContext) (GenerationResult, error) {
	resp, err := g.client.Complete(ctx, llm.Request{
		Model:  g.model,
		System: []string{g.systemPrompt},
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildPrompt(gc)},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return GenerationResult{}, err
	}

	items, err := ParseResponse(resp.Text)
	if err != nil {
		g.logger.Debug("generator returned malformed output", "session_id", gc.SessionID, "error", err)
		return GenerationResult{}, err
	}
	model := resp.Model
	if model == "" {
		model = g.model
	}
	return GenerationResult{Model: model, Items: items}, nil
}

func buildPrompt(gc GenerationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed fields: %s\n", joinOrNone(gc.CompletedFields))
	fmt.Fprintf(&b, "Pending fields: %s\n", joinOrNone(gc.PendingFields))
	fmt.Fprintf(&b, "Current form data (JSON):\n%s\n", gc.FormDataSnapshot)
	return b.String()
}

func joinOrNone(fields []string) string {
	if len(fields) == 0 {
		return "(none)"
	}
	return strings.Join(fields, ", ")
}

type responsePayload struct {
	Recommendations *[]itemPayload `json:"recommendations"`
}

type itemPayload struct {
	FieldName  string   `json:"fieldName"`
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// ParseResponse decodes {"recommendations":[{fieldName,type,text,confidence}]}.
// Code fences around the object are tolerated; any other deviation is an error.
func ParseResponse(raw string) ([]GeneratedItem, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	var payload responsePayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedResponse)
	}
	if payload.Recommendations == nil {
		return nil, fmt.Errorf("%w: missing recommendations", ErrMalformedResponse)
	}

	items := make([]GeneratedItem, 0, len(*payload.Recommendations))
	for i, p := range *payload.Recommendations {
		item, err := p.validate()
		if err != nil {
			return nil, fmt.Errorf("%w: recommendation %d: %v", ErrMalformedResponse, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (p itemPayload) validate() (GeneratedItem, error) {
	field := strings.TrimSpace(p.FieldName)
	if field == "" {
		return GeneratedItem{}, errors.New("fieldName is empty")
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return GeneratedItem{}, errors.New("text is empty")
	}
	recType := Type(strings.TrimSpace(p.Type))
	if !recType.Valid() {
		return GeneratedItem{}, fmt.Errorf("unknown type %q", p.Type)
	}
	if p.Confidence == nil {
		return GeneratedItem{}, errors.New("confidence is missing")
	}
	if *p.Confidence < 0 || *p.Confidence > 1 {
		return GeneratedItem{}, fmt.Errorf("confidence %v outside [0,1]", *p.Confidence)
	}
	return GeneratedItem{FieldName: field, Type: recType, Text: text, Confidence: *p.Confidence}, nil
}

// stripCodeFence unwraps a response that is exactly one fenced block. Text
// outside the fence is left in place so the decoder rejects it.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
