package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/citadel/pkg/service/evaluator"
	"github.com/secmon-lab/citadel/pkg/service/worker"
	"github.com/secmon-lab/citadel/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the application configuration loaded from TOML
type AppConfig struct {
	Generation GenerationConfig `toml:"generation"`
	Evaluation EvaluationConfig `toml:"evaluation"`
	Search     SearchConfig     `toml:"search"`
	Queue      QueueConfig      `toml:"queue"`
}

type GenerationConfig struct {
	// NoteWindow is how many recent notes feed prompts and index blobs
	NoteWindow int    `toml:"note_window"`
	Persona    string `toml:"persona"`
}

type EvaluationConfig struct {
	ContradictionPenalty float64 `toml:"contradiction_penalty"`
	JudgeRubric          string  `toml:"judge_rubric"`
}

type SearchConfig struct {
	SnippetWidth    int `toml:"snippet_width"`
	FallbackChars   int `toml:"fallback_chars"`
	SummaryMaxChars int `toml:"summary_max_chars"`
}

type QueueConfig struct {
	Capacity int `toml:"capacity"`
}

// DefaultAppConfig returns the configuration used when no file is given
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Generation: GenerationConfig{
			NoteWindow: usecase.DefaultNoteWindow,
		},
		Evaluation: EvaluationConfig{
			ContradictionPenalty: evaluator.DefaultContradictionPenalty,
		},
		Search: SearchConfig{
			SnippetWidth:    usecase.DefaultSnippetWidth,
			FallbackChars:   usecase.DefaultFallbackChars,
			SummaryMaxChars: usecase.DefaultSummaryMaxChars,
		},
		Queue: QueueConfig{
			Capacity: worker.DefaultQueueCapacity,
		},
	}
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	positive := []struct {
		field string
		value int
	}{
		{"generation.note_window", a.Generation.NoteWindow},
		{"search.snippet_width", a.Search.SnippetWidth},
		{"search.fallback_chars", a.Search.FallbackChars},
		{"search.summary_max_chars", a.Search.SummaryMaxChars},
		{"queue.capacity", a.Queue.Capacity},
	}
	for _, p := range positive {
		if p.value < 1 {
			return goerr.Wrap(ErrInvalidConfig, "value must be at least 1",
				goerr.V(FieldKey, p.field),
				goerr.V(ValueKey, p.value))
		}
	}

	if p := a.Evaluation.ContradictionPenalty; p <= 0 || p > 1 {
		return goerr.Wrap(ErrInvalidConfig, "contradiction penalty must be in (0, 1]",
			goerr.V(FieldKey, "evaluation.contradiction_penalty"),
			goerr.V(ValueKey, p))
	}
	return nil
}

// UseCaseOptions converts the configuration into use case options
func (a *AppConfig) UseCaseOptions() []usecase.Option {
	return []usecase.Option{
		usecase.WithNoteWindow(a.Generation.NoteWindow),
		usecase.WithPersona(a.Generation.Persona),
		usecase.WithSnippet(a.Search.SnippetWidth, a.Search.FallbackChars),
		usecase.WithSummaryMaxChars(a.Search.SummaryMaxChars),
	}
}

// EvaluatorOptions converts the configuration into evaluator options
func (a *AppConfig) EvaluatorOptions() []evaluator.Option {
	opts := []evaluator.Option{
		evaluator.WithContradictionPenalty(a.Evaluation.ContradictionPenalty),
	}
	if a.Evaluation.JudgeRubric != "" {
		opts = append(opts, evaluator.WithRubric(a.Evaluation.JudgeRubric))
	}
	return opts
}

// LoadAppConfiguration reads a TOML file on top of the defaults and validates it
func LoadAppConfiguration(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "failed to read config file", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	cfg := DefaultAppConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path),
			goerr.V("error", err.Error()))
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid configuration", goerr.V(ConfigPathKey, path))
	}
	return cfg, nil
}

// App holds the --config flag
type App struct {
	path string
}

func (a *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to TOML configuration file",
			Sources:     cli.EnvVars("CITADEL_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the file given by --config, or the defaults when it is empty
func (a *App) Configure() (*AppConfig, error) {
	if a.path == "" {
		return DefaultAppConfig(), nil
	}
	return LoadAppConfiguration(a.path)
}
