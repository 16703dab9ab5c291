package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/repository/firestore"
	"github.com/secmon-lab/citadel/pkg/repository/memory"
	"github.com/secmon-lab/citadel/pkg/repository/sqlite"
)

// repositoryFactories lists every backend the contract tests run against
var repositoryFactories = map[string]func(t *testing.T) interfaces.Repository{
	"memory":    newMemoryRepository,
	"sqlite":    newSQLiteRepository,
	"firestore": newFirestoreRepository,
}

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	repo, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "citadel.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func runForEachBackend(t *testing.T, run func(t *testing.T, newRepo func(t *testing.T) interfaces.Repository)) {
	for name, factory := range repositoryFactories {
		t.Run(name, func(t *testing.T) {
			run(t, factory)
		})
	}
}
