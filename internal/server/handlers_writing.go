package server

import (
	"net/http"

	"jobtracker/pkg/domain"
)

func (s *Server) handleListWriting(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListWritingItems(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (s *Server) handleCreateWriting(w http.ResponseWriter, r *http.Request, user domain.User) {
	req, ok := decodeBody[writingRequest](w, r)
	if !ok {
		return
	}
	created, err := s.app.CreateWritingItem(r.Context(), user.ID, req.fields())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": created})
}

func (s *Server) handleUpdateWriting(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := decodeBody[writingRequest](w, r)
	if !ok {
		return
	}
	updated, err := s.app.UpdateWritingItem(r.Context(), user.ID, id, req.patch())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": updated})
}

func (s *Server) handleDeleteWriting(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteWritingItem(r.Context(), user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse)
}
