package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdGenerate() *cli.Command {
	var wait bool
	var timeout time.Duration
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "wait",
			Aliases:     []string{"w"},
			Usage:       "Wait for evaluation scores before exiting",
			Destination: &wait,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "How long --wait waits for scores",
			Value:       2 * time.Minute,
			Destination: &timeout,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"g"},
		Usage:     "Generate a summary of an entity",
		ArgsUsage: "<type:id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			key, _, err := parseEntityKey(c.Args().Slice())
			if err != nil {
				return err
			}

			rt, err := rtCfg.build(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if wait {
				if err := rt.worker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start evaluation worker")
				}
			}

			gen, err := rt.uc.Generation.GenerateSummary(ctx, key)
			if err != nil {
				return goerr.Wrap(err, "failed to generate summary", goerr.V("entity", key))
			}

			if wait {
				gen, err = waitGenerated(ctx, rt, gen, timeout)
				if err != nil {
					return err
				}
			}

			printGeneration(c.Root().Writer, gen)
			return nil
		},
	}
}

// waitGenerated polls until gen is GENERATED or replaced by a newer generation
func waitGenerated(ctx context.Context, rt *runtime, gen *model.Generation, timeout time.Duration) (*model.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "scores not ready", goerr.V("generation_id", gen.ID))
		case <-ticker.C:
		}

		cur, err := rt.uc.Generation.GetGeneration(ctx, gen.Key())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get generation")
		}
		if cur.ID != gen.ID || cur.Status == types.GenerationStatusGenerated {
			return cur, nil
		}
	}
}
