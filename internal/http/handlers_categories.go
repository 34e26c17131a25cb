package http

import (
	"net/http"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, userID string) {
	typ, err := ParseTypeParam(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	cats, err := s.svc.Categories.ListCategories(r.Context(), userID, typ)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(toCategories(cats)).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, userID string) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	c, err := s.svc.Categories.CreateCategory(r.Context(), userID, sanitizeInput(req.Name), typ)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/"+c.ID).
		Body(toCategory(c)).
		Write(w)
}

// handleDeleteCategory removes a category. Its subcategories go with it and
// its transactions become uncategorized.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, userID string) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := s.svc.Categories.DeleteCategory(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListSubcategories(w http.ResponseWriter, r *http.Request, userID string) {
	id := strings.TrimSpace(r.PathValue("id"))
	subs, err := s.svc.Categories.ListSubcategories(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(toSubcategories(subs)).Write(w)
}

// handleListAllSubcategories returns the subcategories of every category the
// user owns, optionally restricted by ?type=.
func (s *Server) handleListAllSubcategories(w http.ResponseWriter, r *http.Request, userID string) {
	typ, err := ParseTypeParam(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	cats, err := s.svc.Categories.ListCategories(r.Context(), userID, typ)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	ids := make([]string, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	subs, err := s.svc.Categories.ListSubcategories(r.Context(), userID, ids...)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(toSubcategories(subs)).Write(w)
}
