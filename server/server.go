// Package server exposes the clipper over HTTP: capture control, the
// record under assembly, saved records, and tab management.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/jobclip/kit"
	"github.com/hazyhaar/jobclip/popup"
	"github.com/hazyhaar/jobclip/shield"
	"github.com/hazyhaar/jobclip/store"
)

// TabService drives the browser for the tab endpoints. The browser manager
// adapter implements it.
type TabService interface {
	// OpenTab opens a tab on url and returns its ID. The new tab becomes
	// active.
	OpenTab(ctx context.Context, url string) (string, error)
	CloseTab(id string) error
	Activate(id string) error
}

// Config assembles a Server.
type Config struct {
	Store      *store.Store
	Controller *popup.Controller
	Tabs       TabService
	Logger     *slog.Logger
}

// Server is the HTTP surface.
type Server struct {
	st     *store.Store
	ctrl   *popup.Controller
	tabs   TabService
	logger *slog.Logger
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		st:     cfg.Store,
		ctrl:   cfg.Controller,
		tabs:   cfg.Tabs,
		logger: logger,
	}
}

// Router builds the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.Stack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/me", s.handleMe)

		// The record under assembly.
		r.Get("/record", s.handleGetDraft)
		r.Put("/record", s.handlePutDraft)
		r.Put("/record/fields/{field}", s.handleSetField)
		r.Post("/record/save", s.handleSaveDraft)

		// Capture control.
		r.Post("/capture/{field}", s.handleStartCapture)
		r.Post("/capture/cancel", s.handleCancelCapture)

		// Saved records.
		r.Post("/records", s.handleCreateRecord)
		r.Get("/records", s.handleListRecords)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Put("/records/{id}", s.handleUpdateRecord)
		r.Delete("/records/{id}", s.handleDeleteRecord)

		// Tabs.
		r.Post("/tabs", s.handleOpenTab)
		r.Post("/tabs/{id}/activate", s.handleActivateTab)
		r.Delete("/tabs/{id}", s.handleCloseTab)
	})

	return r
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{
		"id":       kit.GetUserID(r.Context()),
		"username": kit.GetUsername(r.Context()),
	})
}

// --- record under assembly ---

type draftResponse struct {
	Record  popup.Record `json:"record"`
	Pending string       `json:"pending,omitempty"`
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, draftResponse{
		Record:  s.ctrl.Snapshot(),
		Pending: string(s.ctrl.Pending()),
	})
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var rec popup.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, 400, err)
		return
	}
	s.ctrl.SetRecord(rec)
	writeJSON(w, 200, draftResponse{Record: s.ctrl.Snapshot()})
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	field, err := popup.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		writeError(w, 400, err)
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if err := s.ctrl.SetField(field, req.Value); err != nil {
		writeError(w, 400, err)
		return
	}
	writeJSON(w, 200, draftResponse{Record: s.ctrl.Snapshot()})
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Save(r.Context()); err != nil {
		code := 500
		if errors.Is(err, popup.ErrNothingToSave) {
			code = 400
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "saved"})
}

// --- capture control ---

func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	field, err := popup.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		writeError(w, 400, err)
		return
	}
	if err := s.ctrl.StartCapture(r.Context(), field); err != nil {
		code := 502
		switch {
		case errors.Is(err, popup.ErrCapturePending), errors.Is(err, popup.ErrURLNotCaptured):
			code = 409
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "capturing", "field": string(field)})
}

func (s *Server) handleCancelCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.CancelCapture(r.Context()); err != nil {
		writeError(w, 502, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "canceled"})
}

// --- saved records ---

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req popup.Record
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Empty() {
		writeError(w, 400, fmt.Errorf("record is empty"))
		return
	}
	rec := &store.JobRecord{
		OwnerID:        kit.GetUserID(r.Context()),
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		JobURL:         req.JobURL,
		JobDescription: req.JobDescription,
	}
	if err := s.st.InsertRecord(r.Context(), rec); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 201, rec)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.st.ListRecords(r.Context(), kit.GetUserID(r.Context()))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if recs == nil {
		recs = []*store.JobRecord{}
	}
	writeJSON(w, 200, recs)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.st.GetRecord(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if rec == nil {
		writeError(w, 404, fmt.Errorf("record not found"))
		return
	}
	writeJSON(w, 200, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req popup.Record
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	rec := &store.JobRecord{
		ID:             chi.URLParam(r, "id"),
		OwnerID:        kit.GetUserID(r.Context()),
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		JobURL:         req.JobURL,
		JobDescription: req.JobDescription,
	}
	if err := s.st.UpdateRecord(r.Context(), rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, 404, fmt.Errorf("record not found"))
			return
		}
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.st.DeleteRecord(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

// --- tabs ---

func (s *Server) handleOpenTab(w http.ResponseWriter, r *http.Request) {
	if s.tabs == nil {
		writeError(w, 501, fmt.Errorf("no browser configured"))
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.URL == "" {
		writeError(w, 400, fmt.Errorf("url is required"))
		return
	}
	id, err := s.tabs.OpenTab(r.Context(), req.URL)
	if err != nil {
		writeError(w, 502, err)
		return
	}
	writeJSON(w, 201, map[string]string{"id": id, "url": req.URL})
}

func (s *Server) handleActivateTab(w http.ResponseWriter, r *http.Request) {
	if s.tabs == nil {
		writeError(w, 501, fmt.Errorf("no browser configured"))
		return
	}
	if err := s.tabs.Activate(chi.URLParam(r, "id")); err != nil {
		writeError(w, 404, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "active"})
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	if s.tabs == nil {
		writeError(w, 501, fmt.Errorf("no browser configured"))
		return
	}
	if err := s.tabs.CloseTab(chi.URLParam(r, "id")); err != nil {
		writeError(w, 404, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "closed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
