package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/service/catalog"
	"github.com/urfave/cli/v3"
)

// Catalog holds CLI flags for the Rick and Morty API client
type Catalog struct {
	baseURL      string
	rateLimit    float64
	relatedLimit int
}

func (c *Catalog) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog-url",
			Category:    "Catalog",
			Usage:       "Base URL of the Rick and Morty API",
			Value:       catalog.DefaultBaseURL,
			Sources:     cli.EnvVars("CITADEL_CATALOG_URL"),
			Destination: &c.baseURL,
		},
		&cli.FloatFlag{
			Name:        "catalog-rate-limit",
			Category:    "Catalog",
			Usage:       "Maximum catalog requests per second",
			Value:       5,
			Sources:     cli.EnvVars("CITADEL_CATALOG_RATE_LIMIT"),
			Destination: &c.rateLimit,
		},
		&cli.IntFlag{
			Name:        "catalog-related-limit",
			Category:    "Catalog",
			Usage:       "How many residents or characters are resolved to names",
			Value:       catalog.DefaultRelatedLimit,
			Sources:     cli.EnvVars("CITADEL_CATALOG_RELATED_LIMIT"),
			Destination: &c.relatedLimit,
		},
	}
}

func (c *Catalog) Configure() (*catalog.Client, error) {
	if c.rateLimit <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "catalog rate limit must be positive", goerr.V(ValueKey, c.rateLimit))
	}

	burst := max(int(c.rateLimit), 1)
	return catalog.New(
		catalog.WithBaseURL(c.baseURL),
		catalog.WithRateLimit(c.rateLimit, burst),
		catalog.WithRelatedLimit(c.relatedLimit),
	), nil
}
