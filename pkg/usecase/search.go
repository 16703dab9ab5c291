package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
	"github.com/secmon-lab/citadel/pkg/utils/vector"
)

type SearchUseCase struct {
	repo interfaces.Repository
	cfg  *settings
}

func NewSearchUseCase(repo interfaces.Repository, cfg *settings) *SearchUseCase {
	return &SearchUseCase{
		repo: repo,
		cfg:  cfg,
	}
}

// Search ranks every index entry by cosine similarity to the query and returns
// at most limit results. Equal similarities are ordered by entity key.
func (uc *SearchUseCase) Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error) {
	if limit < 1 {
		return nil, goerr.Wrap(ErrInvalidLimit, "invalid search limit", goerr.V("limit", limit))
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.SearchResult{}, nil
	}
	if uc.cfg.embedder == nil {
		return nil, goerr.Wrap(ErrNoEmbedder, "cannot search")
	}

	queryVec, err := uc.cfg.embedder.Embed(ctx, query)
	if err != nil {
		if !errors.Is(err, model.ErrUpstreamProvider) && !errors.Is(err, model.ErrIndexDimensionMismatch) {
			err = model.UpstreamError(err)
		}
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if uc.cfg.dimension > 0 && len(queryVec) != uc.cfg.dimension {
		return nil, goerr.Wrap(model.ErrIndexDimensionMismatch, "query embedding has unexpected dimension",
			goerr.V("expected", uc.cfg.dimension),
			goerr.V("actual", len(queryVec)))
	}

	entries, err := uc.repo.SearchIndex().GetAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load index entries")
	}

	type scored struct {
		entry      *model.SearchIndexEntry
		similarity float64
	}
	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != len(queryVec) {
			return nil, goerr.Wrap(model.ErrIndexDimensionMismatch, "index entry dimension differs from query",
				goerr.V(EntityKey, e.Key().String()),
				goerr.V("query", len(queryVec)),
				goerr.V("entry", len(e.Embedding)))
		}
		ranked = append(ranked, scored{entry: e, similarity: vector.CosineSimilarity(queryVec, e.Embedding)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].similarity != ranked[j].similarity {
			return ranked[i].similarity > ranked[j].similarity
		}
		return ranked[i].entry.Key().Less(ranked[j].entry.Key())
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]*model.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, &model.SearchResult{
			EntityType: r.entry.EntityType,
			EntityID:   r.entry.EntityID,
			Name:       r.entry.Name(),
			Snippet:    extractSnippet(r.entry.TextBlob, query, uc.cfg.snippetWidth, uc.cfg.fallbackChars),
			Similarity: r.similarity,
		})
	}

	logging.From(ctx).Debug("search completed", "query", query, "scanned", len(entries), "returned", len(results))
	return results, nil
}
