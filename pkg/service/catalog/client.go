package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/secmon-lab/citadel/pkg/utils/safe"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Rick and Morty API
	DefaultBaseURL = "https://rickandmortyapi.com/api"

	// DefaultRelatedLimit caps how many residents or characters are resolved to names
	DefaultRelatedLimit = 10

	defaultRequestsPerSecond = 5
	defaultBurst             = 5
	defaultTimeout           = 10 * time.Second
	maxResponseBytes         = 4 << 20
)

// Client fetches canonical facts from the Rick and Morty REST API
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	relatedLimit int
}

var _ interfaces.EntityCatalog = &Client{}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit throttles outgoing requests
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithRelatedLimit sets how many related residents or characters are resolved to names
func WithRelatedLimit(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.relatedLimit = n
		}
	}
}

// New creates a catalog client
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		limiter:      rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
		relatedLimit: DefaultRelatedLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCanonical fetches the entity and resolves the names of its related entities
func (c *Client) GetCanonical(ctx context.Context, key model.EntityKey) (*model.Entity, error) {
	if err := key.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrNotFound, "invalid entity key", goerr.V("key", key), goerr.V("reason", err.Error()))
	}

	switch key.Type {
	case types.EntityTypeCharacter:
		var ch apiCharacter
		if err := c.get(ctx, "character/"+strconv.FormatInt(key.ID, 10), &ch); err != nil {
			return nil, err
		}
		return characterEntity(key, &ch), nil

	case types.EntityTypeLocation:
		var loc apiLocation
		if err := c.get(ctx, "location/"+strconv.FormatInt(key.ID, 10), &loc); err != nil {
			return nil, err
		}
		residents, err := c.characterNames(ctx, loc.Residents)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve residents", goerr.V("key", key))
		}
		return locationEntity(key, &loc, residents), nil

	case types.EntityTypeEpisode:
		var ep apiEpisode
		if err := c.get(ctx, "episode/"+strconv.FormatInt(key.ID, 10), &ep); err != nil {
			return nil, err
		}
		characters, err := c.characterNames(ctx, ep.Characters)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve characters", goerr.V("key", key))
		}
		return episodeEntity(key, &ep, characters), nil
	}

	return nil, goerr.Wrap(model.ErrNotFound, "unsupported entity type", goerr.V("key", key))
}

// characterNames resolves up to relatedLimit character URLs into names with one batch request
func (c *Client) characterNames(ctx context.Context, urls []string) ([]string, error) {
	var ids []string
	for _, u := range urls {
		if len(ids) >= c.relatedLimit {
			break
		}
		if id := path.Base(u); id != "" && id != "." && id != "/" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// The API returns an object for a single id and an array otherwise.
	var characters []apiCharacter
	if len(ids) == 1 {
		var ch apiCharacter
		if err := c.get(ctx, "character/"+ids[0], &ch); err != nil {
			return nil, err
		}
		characters = []apiCharacter{ch}
	} else if err := c.get(ctx, "character/"+strings.Join(ids, ","), &characters); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(characters))
	for _, ch := range characters {
		names = append(names, ch.Name)
	}
	return names, nil
}

func (c *Client) get(ctx context.Context, resource string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return goerr.Wrap(err, "rate limiter wait failed", goerr.V("resource", resource))
	}

	url := c.baseURL + "/" + resource
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build request", goerr.V("url", url))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(model.UpstreamError(err), "catalog request failed", goerr.V("url", url))
	}
	defer safe.Close(ctx, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return goerr.Wrap(model.ErrNotFound, "entity not found in catalog", goerr.V("url", url))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return goerr.Wrap(model.UpstreamError(fmt.Errorf("unexpected status %d", resp.StatusCode)),
			"catalog request failed",
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return goerr.Wrap(model.UpstreamError(err), "failed to decode catalog response", goerr.V("url", url))
	}
	return nil
}
