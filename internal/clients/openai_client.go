package clients

import (
	"context"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/vkuzmin/cryptosage/pkg/retrier"
	"go.uber.org/zap"
)

const (
	defaultCompletionModel = openai.GPT4
	defaultEmbeddingModel  = openai.AdaEmbeddingV2
)

// OpenAIClient wraps the OpenAI API for narrative generation and
// embedding derivation. Transient failures are retried with backoff;
// callers see only the final error.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	retrier        *retrier.Retrier
	logger         *zap.Logger
}

// NewOpenAIClient creates a client for the OpenAI API. An empty model
// selects gpt-4, matching the narrative the rest of the pipeline expects.
func NewOpenAIClient(apiKey, model string, logger *zap.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is empty")
	}
	if model == "" {
		model = defaultCompletionModel
	}

	return &OpenAIClient{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: defaultEmbeddingModel,
		retrier:        retrier.New(retrier.WithInitialInterval(2*time.Second), retrier.WithMaxRetries(2)),
		logger:         logger,
	}, nil
}

// Complete sends a chat completion request and returns the generated text.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		N:           1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	resp, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion request")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion API returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Embed derives an embedding vector for the given text. The vector
// dimensionality is fixed by the embedding model.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embeddingModel,
	}

	resp, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (openai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(ctx, req)
	})
	if err != nil {
		return nil, errors.Wrap(err, "embedding request")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding API returned no data")
	}

	return resp.Data[0].Embedding, nil
}
