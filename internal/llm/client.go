// Package llm holds the completion provider clients used to draft field
// recommendations.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Model      string
	Usage      TokenUsage
	StopReason string
}

// Client is a single-shot completion provider.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
