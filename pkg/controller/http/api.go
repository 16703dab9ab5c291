package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/domain/model"
	"github.com/secmon-lab/citadel/pkg/domain/types"
	"github.com/secmon-lab/citadel/pkg/usecase"
	"github.com/secmon-lab/citadel/pkg/utils/errutil"
)

const maxRequestBody = 64 << 10

var errBadRequest = errors.New("bad request")

type scoreResponse struct {
	Value    *float64 `json:"value"`
	Fallback bool     `json:"fallback,omitempty"`
}

type generationResponse struct {
	ID         string                   `json:"id"`
	EntityType string                   `json:"entity_type"`
	EntityID   int64                    `json:"entity_id"`
	OutputText string                   `json:"output_text"`
	Status     string                   `json:"status"`
	Scores     map[string]scoreResponse `json:"scores"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

func toGenerationResponse(g *model.Generation) generationResponse {
	score := func(s model.Score) scoreResponse {
		return scoreResponse{Value: s.Ptr(), Fallback: s.IsFallback()}
	}
	return generationResponse{
		ID:         g.ID.String(),
		EntityType: g.EntityType.String(),
		EntityID:   g.EntityID,
		OutputText: g.OutputText,
		Status:     g.Status.String(),
		Scores: map[string]scoreResponse{
			"factual":      score(g.Scores.Factual),
			"completeness": score(g.Scores.Completeness),
			"creativity":   score(g.Scores.Creativity),
			"relevance":    score(g.Scores.Relevance),
		},
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

type searchResultResponse struct {
	EntityType string  `json:"entity_type"`
	EntityID   int64   `json:"entity_id"`
	Name       string  `json:"name"`
	Snippet    string  `json:"snippet"`
	Similarity float64 `json:"similarity"`
}

type noteResponse struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

func toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:         n.ID.String(),
		EntityType: n.EntityType.String(),
		EntityID:   n.EntityID,
		Text:       n.Text,
		CreatedAt:  n.CreatedAt,
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	key, err := entityKeyParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	gen, err := s.generation.GenerateSummary(r.Context(), key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, toGenerationResponse(gen))
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	key, err := entityKeyParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	gen, err := s.generation.GetGeneration(r.Context(), key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toGenerationResponse(gen))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit := s.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleError(w, r, goerr.Wrap(errBadRequest, "limit is not a number", goerr.V("limit", raw)))
			return
		}
		limit = n
	}

	results, err := s.search.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := make([]searchResultResponse, 0, len(results))
	for _, res := range results {
		resp = append(resp, searchResultResponse{
			EntityType: res.EntityType.String(),
			EntityID:   res.EntityID,
			Name:       res.Name,
			Snippet:    res.Snippet,
			Similarity: res.Similarity,
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"results": resp})
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	key, err := entityKeyParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	entry, err := s.index.RebuildIndexEntry(r.Context(), key)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"entity_type": entry.EntityType.String(),
		"entity_id":   entry.EntityID,
		"text_blob":   entry.TextBlob,
		"dimension":   len(entry.Embedding),
		"updated_at":  entry.UpdatedAt,
	})
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	key, err := entityKeyParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	notes, err := s.note.ListNotes(r.Context(), key)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, toNoteResponse(n))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"notes": resp})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	key, err := entityKeyParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	note, err := s.note.AddNote(r.Context(), key, req.Text)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toNoteResponse(note))
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	key, err := entityKeyParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := s.note.DeleteNote(r.Context(), key, model.NoteID(chi.URLParam(r, "noteID"))); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImproveNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityType string `json:"entity_type"`
		EntityID   int64  `json:"entity_id"`
		Text       string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	key := model.EntityKey{Type: types.EntityType(req.EntityType), ID: req.EntityID}
	improved, err := s.note.ImproveNote(r.Context(), key, req.Text)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"improved_text": improved})
}

func entityKeyParam(r *http.Request) (model.EntityKey, error) {
	rawType, rawID := chi.URLParam(r, "type"), chi.URLParam(r, "id")

	entityType, err := types.ParseEntityType(rawType)
	if err != nil {
		return model.EntityKey{}, goerr.Wrap(model.ErrNotFound, "unknown entity type", goerr.V("type", rawType))
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return model.EntityKey{}, goerr.Wrap(errBadRequest, "entity id must be a positive integer", goerr.V("id", rawID))
	}
	return model.EntityKey{Type: entityType, ID: id}, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(errBadRequest, "invalid request body", goerr.V("error", err.Error()))
	}
	return nil
}

// handleError maps client mistakes to 400 and leaves the domain taxonomy to errutil
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := 0
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, usecase.ErrInvalidLimit),
		errors.Is(err, usecase.ErrEmptyNote):
		status = http.StatusBadRequest
	}
	errutil.HandleHTTP(r.Context(), w, err, status)
}
