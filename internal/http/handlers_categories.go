package http

import (
	"net/http"

	applog "daisycash/internal/log"
	"daisycash/internal/services"
)

// handleListCategories lists categories, optionally only those usable for
// ?kind=credit|debit. Categories of kind both match either.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKindFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	cats, err := s.txs.ListCategories(r.Context(), kind)
	if err != nil {
		s.respondError(w, r, err, applog.OpList)
		return
	}
	NewJSONResponse().Body(map[string]any{"categories": cats}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	c, err := s.txs.CreateCategory(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err, applog.OpCreate)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/"+c.ID).
		Body(c).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		s.badBody(w, r, err)
		return
	}
	c, err := s.txs.UpdateCategory(r.Context(), pathID(r), in)
	if err != nil {
		s.respondError(w, r, err, applog.OpUpdate)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.txs.DeleteCategory(r.Context(), pathID(r)); err != nil {
		s.respondError(w, r, err, applog.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
