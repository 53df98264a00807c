package ai

import "context"

type CompletionRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float32
}

type Completion struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	// Degraded marks a canned answer served while the provider is unavailable.
	Degraded bool `json:"degraded,omitempty"`
}

type EmbeddingRequest struct {
	Inputs []string
}

type Embedding struct {
	Vectors [][]float32 `json:"vectors"`
	Model   string      `json:"model"`
}

type ModerationRequest struct {
	Input string
}

type Moderation struct {
	Flagged    bool     `json:"flagged"`
	Categories []string `json:"categories,omitempty"`
}

// Client is the AI provider surface the application depends on. Failures
// that carry a provider code are reported as *circuitbreaker.CodedError.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Embed(ctx context.Context, req EmbeddingRequest) (Embedding, error)
	Moderate(ctx context.Context, req ModerationRequest) (Moderation, error)
	Ping(ctx context.Context, _ struct{}) (struct{}, error)
	Model() string
}
