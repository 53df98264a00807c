package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/angeloszaimis/eventguard/config"
	"github.com/angeloszaimis/eventguard/internal/circuitbreaker"
)

const CodeRateLimited = "rate_limit_exceeded"

// OpenAIClient implements Client on top of the OpenAI API.
type OpenAIClient struct {
	client          *openai.Client
	model           string
	embeddingModel  string
	moderationModel string
	systemPrompt    string
}

func NewOpenAIClient(cfg config.AIConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:          openai.NewClientWithConfig(clientCfg),
		model:           cfg.Model,
		embeddingModel:  cfg.EmbeddingModel,
		moderationModel: cfg.ModerationModel,
		systemPrompt:    cfg.SystemPrompt,
	}
}

func (o *OpenAIClient) Model() string {
	return o.model
}

func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	system := req.System
	if system == "" {
		system = o.systemPrompt
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Completion{}, fmt.Errorf("openai completion: %w", classify(err))
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("openai completion: no choices returned")
	}

	return Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func (o *OpenAIClient) Embed(ctx context.Context, req EmbeddingRequest) (Embedding, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: req.Inputs,
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return Embedding{}, fmt.Errorf("openai embedding: %w", classify(err))
	}

	out := Embedding{Model: string(resp.Model), Vectors: make([][]float32, len(resp.Data))}
	for i, d := range resp.Data {
		out.Vectors[i] = d.Embedding
	}
	return out, nil
}

func (o *OpenAIClient) Moderate(ctx context.Context, req ModerationRequest) (Moderation, error) {
	resp, err := o.client.Moderations(ctx, openai.ModerationRequest{
		Input: req.Input,
		Model: o.moderationModel,
	})
	if err != nil {
		return Moderation{}, fmt.Errorf("openai moderation: %w", classify(err))
	}

	var out Moderation
	for _, r := range resp.Results {
		if !r.Flagged {
			continue
		}
		out.Flagged = true
		out.Categories = append(out.Categories, flaggedCategories(r.Categories)...)
	}
	return out, nil
}

// Ping lists models, the cheapest authenticated call the API offers.
func (o *OpenAIClient) Ping(ctx context.Context, _ struct{}) (struct{}, error) {
	if _, err := o.client.ListModels(ctx); err != nil {
		return struct{}{}, fmt.Errorf("openai ping: %w", classify(err))
	}
	return struct{}{}, nil
}

// classify attaches the provider's error code so the breaker can tell rate
// limiting apart from an outage.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := codeString(apiErr.Code)
		if code == "" {
			code = statusCode(apiErr.HTTPStatusCode)
		}
		return circuitbreaker.NewCodedError(code, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return circuitbreaker.NewCodedError(statusCode(reqErr.HTTPStatusCode), err)
	}

	return err
}

func codeString(code any) string {
	switch v := code.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func statusCode(status int) string {
	if status == http.StatusTooManyRequests {
		return CodeRateLimited
	}
	return fmt.Sprintf("http_%d", status)
}

func flaggedCategories(c openai.ResultCategories) []string {
	var out []string
	if c.Hate {
		out = append(out, "hate")
	}
	if c.Harassment {
		out = append(out, "harassment")
	}
	if c.SelfHarm {
		out = append(out, "self-harm")
	}
	if c.Sexual {
		out = append(out, "sexual")
	}
	if c.Violence {
		out = append(out, "violence")
	}
	return out
}
