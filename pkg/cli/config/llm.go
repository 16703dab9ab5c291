package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/service/llm"
	"github.com/urfave/cli/v3"
)

// LLM holds CLI flags for the text generation, judge and embedding provider
type LLM struct {
	provider     string
	projectID    string
	location     string
	openAIAPIKey string
	model        string
	dimension    int
}

// Flags returns CLI flags for LLM configuration
func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Category:    "LLM",
			Usage:       "LLM provider (gemini or openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("CITADEL_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Category:    "LLM",
			Usage:       "Google Cloud project ID for Gemini API",
			Sources:     cli.EnvVars("CITADEL_GEMINI_PROJECT"),
			Destination: &x.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Category:    "LLM",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Sources:     cli.EnvVars("CITADEL_GEMINI_LOCATION"),
			Destination: &x.location,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Category:    "LLM",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("CITADEL_OPENAI_API_KEY"),
			Destination: &x.openAIAPIKey,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Category:    "LLM",
			Usage:       "Model name for text generation (provider default if empty)",
			Sources:     cli.EnvVars("CITADEL_LLM_MODEL"),
			Destination: &x.model,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Category:    "LLM",
			Usage:       "Embedding vector length shared by indexing and search",
			Value:       model.EmbeddingDimension,
			Sources:     cli.EnvVars("CITADEL_EMBEDDING_DIMENSION"),
			Destination: &x.dimension,
		},
	}
}

// LogValue renders the LLM flags without the API key
func (x LLM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", x.provider),
		slog.String("project_id", x.projectID),
		slog.String("location", x.location),
		slog.String("model", x.model),
		slog.Int("dimension", x.dimension),
		slog.Bool("openai_api_key_set", x.openAIAPIKey != ""),
	)
}

// Dimension returns the configured embedding dimension
func (x *LLM) Dimension() int {
	return x.dimension
}

// Configure creates the LLM adapter used as TextGenerator, Judge and Embedder
func (x *LLM) Configure(ctx context.Context) (*llm.Client, error) {
	if x.dimension < 1 {
		return nil, goerr.Wrap(ErrInvalidConfig, "embedding dimension must be positive", goerr.V(ValueKey, x.dimension))
	}

	var client gollem.LLMClient
	switch x.provider {
	case "gemini":
		if x.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "gemini-project is required for the gemini provider")
		}
		var opts []gemini.Option
		if x.model != "" {
			opts = append(opts, gemini.WithModel(x.model))
		}
		c, err := gemini.New(ctx, x.projectID, x.location, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		client = c

	case "openai":
		if x.openAIAPIKey == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "openai-api-key is required for the openai provider")
		}
		var opts []openai.Option
		if x.model != "" {
			opts = append(opts, openai.WithModel(x.model))
		}
		c, err := openai.New(ctx, x.openAIAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		client = c

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown llm provider", goerr.V(ValueKey, x.provider))
	}

	return llm.New(client, llm.WithEmbeddingDimension(x.dimension))
}
