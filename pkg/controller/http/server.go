package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/usecase"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
	"github.com/secmon-lab/citadel/pkg/utils/safe"
)

// GenerationUseCase creates and reads summaries
type GenerationUseCase interface {
	GenerateSummary(ctx context.Context, key model.EntityKey) (*model.Generation, error)
	GetGeneration(ctx context.Context, key model.EntityKey) (*model.Generation, error)
}

// SearchUseCase runs semantic search
type SearchUseCase interface {
	Search(ctx context.Context, query string, limit int) ([]*model.SearchResult, error)
}

// IndexUseCase rebuilds search index entries
type IndexUseCase interface {
	RebuildIndexEntry(ctx context.Context, key model.EntityKey) (*model.SearchIndexEntry, error)
}

// NoteUseCase manages notes
type NoteUseCase interface {
	AddNote(ctx context.Context, key model.EntityKey, text string) (*model.Note, error)
	DeleteNote(ctx context.Context, key model.EntityKey, id model.NoteID) error
	ListNotes(ctx context.Context, key model.EntityKey) ([]*model.Note, error)
	ImproveNote(ctx context.Context, key model.EntityKey, draft string) (string, error)
}

type Server struct {
	router       *chi.Mux
	generation   GenerationUseCase
	search       SearchUseCase
	index        IndexUseCase
	note         NoteUseCase
	defaultLimit int
}

type Options func(*Server)

// WithDefaultSearchLimit sets the limit used when a search request has none
func WithDefaultSearchLimit(n int) Options {
	return func(s *Server) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// NewFromUseCases wires every route to uc
func NewFromUseCases(uc *usecase.UseCases, opts ...Options) *Server {
	return New(uc.Generation, uc.Search, uc.Index, uc.Note, opts...)
}

func New(generation GenerationUseCase, search SearchUseCase, index IndexUseCase, note NoteUseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:       r,
		generation:   generation,
		search:       search,
		index:        index,
		note:         note,
		defaultLimit: 10,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/generations/{type}/{id}", func(r chi.Router) {
			r.Post("/", s.handleGenerate)
			r.Get("/", s.handleGetGeneration)
		})
		r.Get("/search", s.handleSearch)
		r.Post("/index/{type}/{id}", s.handleRebuildIndex)

		r.Post("/notes/improve", s.handleImproveNote)
		r.Route("/notes/{type}/{id}", func(r chi.Router) {
			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleAddNote)
			r.Delete("/{noteID}", s.handleDeleteNote)
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger puts a logger tagged with the request id into the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.With(r.Context(), logger)))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.WriteJSON(r.Context(), w, v)
}
