package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdSearch() *cli.Command {
	var limit int
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of results",
			Value:       10,
			Destination: &limit,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search indexed entities by meaning",
		ArgsUsage: "<query...>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")

			rt, err := rtCfg.build(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			results, err := rt.uc.Search.Search(ctx, query, limit)
			if err != nil {
				return goerr.Wrap(err, "failed to search", goerr.V("query", query))
			}
			printResults(c.Root().Writer, results)
			return nil
		},
	}
}

func cmdReindex() *cli.Command {
	var rtCfg runtimeConfig

	return &cli.Command{
		Name:      "reindex",
		Usage:     "Rebuild search index entries. Without arguments every indexed entity is rebuilt",
		ArgsUsage: "[type:id ...]",
		Flags:     rtCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			var keys []model.EntityKey
			for _, arg := range c.Args().Slice() {
				key, _, err := parseEntityKey([]string{arg})
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}

			rt, err := rtCfg.build(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if len(keys) == 0 {
				keys, err = rt.uc.Index.IndexedKeys(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to list indexed entities")
				}
			}

			failures, err := rt.uc.Index.RebuildAll(ctx, keys)
			printFailures(c.Root().Writer, failures)
			if err != nil {
				return goerr.Wrap(err, "reindex aborted")
			}

			logging.From(ctx).Info("Reindex completed",
				"total", len(keys),
				"failed", len(failures))
			if len(failures) > 0 {
				return goerr.New("some entities failed to reindex", goerr.V("failed", len(failures)))
			}
			return nil
		},
	}
}
