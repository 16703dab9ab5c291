package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/secmon-lab/citadel/pkg/service/catalog"
)

func newTestServer(t *testing.T, routes map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Character not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newClient(srv *httptest.Server, opts ...catalog.Option) *catalog.Client {
	return catalog.New(append([]catalog.Option{
		catalog.WithBaseURL(srv.URL + "/api/"),
		catalog.WithHTTPClient(srv.Client()),
		catalog.WithRateLimit(1000, 100),
	}, opts...)...)
}

func TestClient_GetCanonical_Character(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/api/character/1": `{
			"id": 1, "name": "Rick Sanchez", "status": "Alive", "species": "Human", "type": "", "gender": "Male",
			"origin": {"name": "Earth (C-137)", "url": "https://rickandmortyapi.com/api/location/1"},
			"location": {"name": "Citadel of Ricks", "url": "https://rickandmortyapi.com/api/location/3"},
			"episode": ["https://rickandmortyapi.com/api/episode/1", "https://rickandmortyapi.com/api/episode/2"]
		}`,
	})

	key := model.EntityKey{Type: types.EntityTypeCharacter, ID: 1}
	entity, err := newClient(srv).GetCanonical(context.Background(), key)
	gt.NoError(t, err).Required()

	gt.Value(t, entity.Key).Equal(key)
	gt.Value(t, entity.Name).Equal("Rick Sanchez")
	gt.Value(t, entity.Attributes[0].Key).Equal("Status")
	gt.Value(t, entity.Attributes[0].Value).Equal("Alive")
	gt.Array(t, entity.Attributes[0].Alternatives).Length(2)
	gt.Array(t, entity.Relationships).Length(2)
	gt.Value(t, entity.Relationships[0].Values).Equal([]string{"Earth (C-137)"})
	gt.Value(t, entity.Relationships[1].Values).Equal([]string{"Citadel of Ricks"})
	gt.Value(t, entity.Counts).Equal([]model.Count{{Label: "Episodes", Value: 2}})
	gt.Value(t, entity.CanonicalText()).Equal(
		"Rick Sanchez\nStatus: Alive\nSpecies: Human\nGender: Male\n" +
			"Origin: Earth (C-137)\nLast known location: Citadel of Ricks\nEpisodes: 2")
}

func TestClient_GetCanonical_Location(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/api/location/3": `{
			"id": 3, "name": "Citadel of Ricks", "type": "Space station", "dimension": "unknown",
			"residents": [
				"https://rickandmortyapi.com/api/character/8",
				"https://rickandmortyapi.com/api/character/14",
				"https://rickandmortyapi.com/api/character/15"
			]
		}`,
		"/api/character/8,14": `[{"id": 8, "name": "Adjudicator Rick"}, {"id": 14, "name": "Alien Morty"}]`,
	})

	key := model.EntityKey{Type: types.EntityTypeLocation, ID: 3}
	entity, err := newClient(srv, catalog.WithRelatedLimit(2)).GetCanonical(context.Background(), key)
	gt.NoError(t, err).Required()

	gt.Value(t, entity.Name).Equal("Citadel of Ricks")
	gt.Value(t, entity.Relationships[0].Values).Equal([]string{"Adjudicator Rick", "Alien Morty"})
	gt.Value(t, entity.Counts[0]).Equal(model.Count{Label: "Residents", Value: 3})
}

func TestClient_GetCanonical_EpisodeWithSingleCharacter(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/api/episode/1": `{
			"id": 1, "name": "Pilot", "air_date": "December 2, 2013", "episode": "S01E01",
			"characters": ["https://rickandmortyapi.com/api/character/1"]
		}`,
		"/api/character/1": `{"id": 1, "name": "Rick Sanchez"}`,
	})

	key := model.EntityKey{Type: types.EntityTypeEpisode, ID: 1}
	entity, err := newClient(srv).GetCanonical(context.Background(), key)
	gt.NoError(t, err).Required()

	gt.Value(t, entity.Name).Equal("Pilot")
	gt.Value(t, entity.Attributes[0].Value).Equal("S01E01")
	gt.Value(t, entity.Relationships[0].Values).Equal([]string{"Rick Sanchez"})
}

func TestClient_GetCanonical_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{})

	_, err := newClient(srv).GetCanonical(context.Background(), model.EntityKey{Type: types.EntityTypeCharacter, ID: 9999})
	gt.B(t, errors.Is(err, model.ErrNotFound)).True()
}

func TestClient_GetCanonical_InvalidKey(t *testing.T) {
	srv, hits := newTestServer(t, map[string]string{})

	_, err := newClient(srv).GetCanonical(context.Background(), model.EntityKey{Type: "planet", ID: 1})
	gt.B(t, errors.Is(err, model.ErrNotFound)).True()
	gt.Value(t, atomic.LoadInt32(hits)).Equal(int32(0))
}

func TestClient_GetCanonical_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := newClient(srv).GetCanonical(context.Background(), model.EntityKey{Type: types.EntityTypeCharacter, ID: 1})
	gt.B(t, errors.Is(err, model.ErrUpstreamProvider)).True()
	gt.B(t, errors.Is(err, model.ErrNotFound)).False()
}
