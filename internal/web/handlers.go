package web

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"

	"github.com/JonMunkholm/census/internal/census"
	"github.com/JonMunkholm/census/internal/logging"
	"github.com/JonMunkholm/census/internal/nlp"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ColumnInfo describes one column of a census table response.
type ColumnInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// TableResponse is the JSON form of a census table. Missing and non-finite
// cells are null.
type TableResponse struct {
	Columns []ColumnInfo `json:"columns"`
	Rows    [][]any      `json:"rows"`
}

type TokenizeRequest struct {
	Text    string `json:"text"`
	Pattern string `json:"pattern,omitempty"`
}

type TokenizeResponse struct {
	Tokens []string `json:"tokens"`
}

type ZenResponse struct {
	Text   string   `json:"text"`
	Tokens []string `json:"tokens"`
}

type StoreResponse struct {
	LoadID string `json:"load_id"`
	Rows   int64  `json:"rows"`
}

type LoadPopulationResponse struct {
	LoadID      string           `json:"load_id"`
	Prefectures map[string]int64 `json:"prefectures"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": s.store != nil,
	})
}

// handleCensus returns the whole census table.
func (s *Server) handleCensus(w http.ResponseWriter, r *http.Request) {
	t, err := s.census.Load(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tableResponse(t))
}

// handlePrefectures returns the prefecture to population mapping.
func (s *Server) handlePrefectures(w http.ResponseWriter, r *http.Request) {
	t, err := s.census.Load(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	m, err := census.PopulationByPrefecture(t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

// handleTokenize splits the posted text into words. An empty pattern uses
// nlp.DefaultDisallowed.
func (s *Server) handleTokenize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req TokenizeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		// MapError reports an oversized body as 413 before the 400 rule.
		respondError(w, r, fmt.Errorf("%w: %w", errInvalidBody, err))
		return
	}

	tokens := nlp.Tokenize(req.Text)
	if req.Pattern != "" {
		seq, err := nlp.TokenizePattern(req.Text, req.Pattern)
		if err != nil {
			respondError(w, r, err)
			return
		}
		tokens = seq
	}

	out := slices.Collect(tokens)
	if out == nil {
		out = []string{}
	}
	writeJSON(w, r, http.StatusOK, TokenizeResponse{Tokens: out})
}

func (s *Server) handleZen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, ZenResponse{
		Text:   nlp.ZenOfPython,
		Tokens: nlp.Words(nlp.ZenOfPython),
	})
}

// handleStoreCensus loads the census and copies its population rows into
// the database under a new load ID.
func (s *Server) handleStoreCensus(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, errStoreDisabled)
		return
	}

	t, err := s.census.Load(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	loadID := t.LoadID()
	if loadID == uuid.Nil {
		loadID = uuid.New()
	}
	n, err := s.store.SaveTable(r.Context(), loadID, t)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("census stored", "load_id", loadID.String(), "rows", n)
	writeJSON(w, r, http.StatusCreated, StoreResponse{LoadID: loadID.String(), Rows: n})
}

func (s *Server) handleLoadPopulation(w http.ResponseWriter, r *http.Request) {
	loadID, ok := s.loadIDParam(w, r)
	if !ok {
		return
	}

	m, err := s.store.PopulationByLoad(r.Context(), loadID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, LoadPopulationResponse{LoadID: loadID.String(), Prefectures: m})
}

func (s *Server) handleDeleteLoad(w http.ResponseWriter, r *http.Request) {
	loadID, ok := s.loadIDParam(w, r)
	if !ok {
		return
	}

	n, err := s.store.DeleteLoad(r.Context(), loadID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Warn("census load deleted", "load_id", loadID.String(), "rows", n)
	writeJSON(w, r, http.StatusOK, StoreResponse{LoadID: loadID.String(), Rows: n})
}

// loadIDParam checks that storage is enabled and parses the {loadID} URL
// parameter, answering the request itself on failure.
func (s *Server) loadIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if s.store == nil {
		respondError(w, r, errStoreDisabled)
		return uuid.Nil, false
	}
	loadID, err := uuid.Parse(chi.URLParam(r, "loadID"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", errInvalidLoadID, err))
		return uuid.Nil, false
	}
	return loadID, true
}

func tableResponse(t *census.Table) TableResponse {
	names := t.Columns()
	resp := TableResponse{
		Columns: make([]ColumnInfo, len(names)),
		Rows:    make([][]any, t.Len()),
	}
	for i, name := range names {
		col, _ := t.Column(name)
		resp.Columns[i] = ColumnInfo{Name: name, Kind: col.Kind.String()}
	}
	for i := range resp.Rows {
		row := t.Row(i)
		for j, v := range row {
			if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
				row[j] = nil
			}
		}
		resp.Rows[i] = row
	}
	return resp
}
