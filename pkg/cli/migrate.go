package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var collectionPrefix string
	var dimension int
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("CITADEL_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Value:       "(default)",
				Sources:     cli.EnvVars("CITADEL_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Prefix for Firestore collection names",
				Sources:     cli.EnvVars("CITADEL_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &collectionPrefix,
			},
			&cli.IntFlag{
				Name:        "embedding-dimension",
				Usage:       "Vector length of the search index embeddings",
				Value:       model.EmbeddingDimension,
				Sources:     cli.EnvVars("CITADEL_EMBEDDING_DIMENSION"),
				Destination: &dimension,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"collectionPrefix", collectionPrefix,
				"dimension", dimension,
				"dryRun", dryRun)

			if dimension < 1 {
				return goerr.New("embedding dimension must be positive", goerr.V("dimension", dimension))
			}
			indexConfig := indexConfig(collectionPrefix, dimension)

			client, err := fireconf.New(ctx, projectID, databaseID, indexConfig,
				fireconf.WithLogger(logger),
				fireconf.WithDryRun(dryRun),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if err := client.Migrate(ctx); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			if dryRun {
				logger.Info("Dry run completed, no changes applied")
			} else {
				logger.Info("Migrations applied successfully")
			}
			return nil
		},
	}
}

// indexConfig returns the Firestore indexes the repository relies on.
// Notes live in per-entity "notes" subcollections, which are not prefixed.
func indexConfig(prefix string, dimension int) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: prefix + "search_index",
				Indexes: []fireconf.Index{
					{
						Fields: []fireconf.IndexField{
							{
								Path: "Embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
			{
				Name: "notes",
				Indexes: []fireconf.Index{
					{
						Fields: []fireconf.IndexField{
							{Path: "CreatedAt", Order: fireconf.OrderDescending},
							{Path: "ID", Order: fireconf.OrderDescending},
						},
						QueryScope: fireconf.QueryScopeCollection,
					},
				},
			},
		},
	}
}
