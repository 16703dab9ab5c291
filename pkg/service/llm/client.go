package llm

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/vector"
)

// Client adapts a gollem LLM client to the text generation, judge and embedding providers.
// The same Client must back both indexing and querying so that embeddings share one model.
type Client struct {
	llmClient gollem.LLMClient
	dimension int
}

var (
	_ interfaces.TextGenerator = &Client{}
	_ interfaces.Judge         = &Client{}
	_ interfaces.Embedder      = &Client{}
)

// Option configures a Client
type Option func(*Client)

// WithEmbeddingDimension sets the requested embedding dimension
func WithEmbeddingDimension(dim int) Option {
	return func(c *Client) {
		if dim > 0 {
			c.dimension = dim
		}
	}
}

// New creates a Client
func New(llmClient gollem.LLMClient, opts ...Option) (*Client, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &Client{
		llmClient: llmClient,
		dimension: model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dimension returns the embedding dimension the client requests
func (c *Client) Dimension() int {
	return c.dimension
}

// Complete runs a single-turn session with the prompt's system instruction
func (c *Client) Complete(ctx context.Context, prompt model.Prompt) (string, error) {
	var sessionOpts []gollem.SessionOption
	if prompt.System != "" {
		sessionOpts = append(sessionOpts, gollem.WithSessionSystemPrompt(prompt.System))
	}

	session, err := c.llmClient.NewSession(ctx, sessionOpts...)
	if err != nil {
		return "", goerr.Wrap(model.UpstreamError(err), "failed to create LLM session")
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(prompt.User)})
	if err != nil {
		return "", goerr.Wrap(model.UpstreamError(err), "failed to generate content")
	}

	text := strings.TrimSpace(strings.Join(resp.Texts, ""))
	if text == "" {
		return "", goerr.Wrap(model.ErrUpstreamProvider, "empty response from LLM")
	}
	return text, nil
}

// Judge sends the text with the rubric as system instruction and returns the raw reply
func (c *Client) Judge(ctx context.Context, text, rubric string) (string, error) {
	reply, err := c.Complete(ctx, model.Prompt{System: rubric, User: text})
	if err != nil {
		return "", goerr.Wrap(err, "failed to judge text")
	}
	return reply, nil
}

// Embed returns the embedding of text. A vector of unexpected length is an index dimension mismatch.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.llmClient.GenerateEmbedding(ctx, c.dimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(model.UpstreamError(err), "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(model.ErrUpstreamProvider, "no embedding generated")
	}
	if len(embeddings[0]) != c.dimension {
		return nil, goerr.Wrap(model.ErrIndexDimensionMismatch, "embedding dimension differs from configuration",
			goerr.V("expected", c.dimension),
			goerr.V("actual", len(embeddings[0])))
	}

	return vector.Float64To32(embeddings[0]), nil
}
