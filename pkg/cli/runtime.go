package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/cli/config"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/secmon-lab/citadel/pkg/service/evaluator"
	"github.com/secmon-lab/citadel/pkg/service/worker"
	"github.com/secmon-lab/citadel/pkg/usecase"
	"github.com/secmon-lab/citadel/pkg/utils/async"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// runtimeConfig is the flag set shared by every command that touches entities
type runtimeConfig struct {
	app     config.App
	repo    config.Repository
	llm     config.LLM
	catalog config.Catalog
}

func (x *runtimeConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.app.Flags()...)
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.llm.Flags()...)
	flags = append(flags, x.catalog.Flags()...)
	return flags
}

type runtime struct {
	repo   interfaces.Repository
	worker *worker.EvaluationWorker
	uc     *usecase.UseCases
	cfg    *config.AppConfig
}

// build wires repository, providers, evaluation worker and use cases.
// The worker is created but not started.
func (x *runtimeConfig) build(ctx context.Context) (*runtime, error) {
	appCfg, err := x.app.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load configuration")
	}

	catalogClient, err := x.catalog.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure catalog")
	}

	llmClient, err := x.llm.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure LLM")
	}
	logging.From(ctx).Info("LLM configured", "llm", x.llm)

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}

	eval := evaluator.New(llmClient, appCfg.EvaluatorOptions()...)

	// The finalize hook refers to uc, which needs the worker as its queue.
	var uc *usecase.UseCases
	w := worker.NewEvaluationWorker(repo, eval,
		worker.WithCapacity(appCfg.Queue.Capacity),
		worker.WithFinalizeHook(func(ctx context.Context, gen *model.Generation) error {
			return uc.Index.OnGenerationFinalized(ctx, gen)
		}),
	)

	opts := []usecase.Option{
		usecase.WithCatalog(catalogClient),
		usecase.WithTextGenerator(llmClient),
		usecase.WithEmbedder(llmClient),
		usecase.WithQueue(w),
		usecase.WithEmbeddingDimension(llmClient.Dimension()),
	}
	uc = usecase.New(repo, append(opts, appCfg.UseCaseOptions()...)...)

	return &runtime{repo: repo, worker: w, uc: uc, cfg: appCfg}, nil
}

// Close stops the worker, drains finalize hooks and closes the repository
func (rt *runtime) Close(ctx context.Context) {
	rt.worker.Stop()

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := async.Wait(waitCtx); err != nil {
		logging.From(ctx).Warn("background tasks did not finish", "error", err)
	}

	if err := rt.repo.Close(); err != nil {
		logging.From(ctx).Error("failed to close repository", "error", err.Error())
	}
}

// parseEntityKey accepts "type:id" or the pair "type" "id"
func parseEntityKey(args []string) (model.EntityKey, []string, error) {
	if len(args) == 0 {
		return model.EntityKey{}, nil, goerr.New("entity is required, e.g. character:1")
	}

	typ, id, found := strings.Cut(args[0], ":")
	rest := args[1:]
	if !found {
		if len(args) < 2 {
			return model.EntityKey{}, nil, goerr.New("entity id is required", goerr.V("type", args[0]))
		}
		id = args[1]
		rest = args[2:]
	}

	entityType, err := types.ParseEntityType(typ)
	if err != nil {
		return model.EntityKey{}, nil, goerr.Wrap(err, "invalid entity type")
	}
	entityID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || entityID < 1 {
		return model.EntityKey{}, nil, goerr.New("entity id must be a positive integer", goerr.V("id", id))
	}
	return model.EntityKey{Type: entityType, ID: entityID}, rest, nil
}
