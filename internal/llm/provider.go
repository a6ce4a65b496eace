// Package llm wraps language model providers behind a single structured-output
// call. The classifier, judge, critic and generator in package agent are all
// built on Provider.
package llm

import (
	"context"
	"encoding/json"
)

// Provider sends one request to a model and returns its structured reply.
type Provider interface {
	// Generate runs req. When req.Schema is set the reply is JSON validated
	// against it; otherwise Content holds the raw text.
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

// Request is a single model call.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt builds a single-turn request.
func UserPrompt(system, prompt string, schema *Schema, maxTokens int) Request {
	return Request{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: prompt}},
		Schema:    schema,
		MaxTokens: maxTokens,
	}
}

// Schema is a named JSON Schema for structured output.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response is the model's reply.
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string
}

// Usage counts tokens for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
