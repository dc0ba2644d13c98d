package server

import (
	"net/http"

	"jobtracker/internal/app"
	"jobtracker/internal/metrics"
	"jobtracker/pkg/domain"
)

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request, user domain.User) {
	query := r.URL.Query()
	items, err := s.app.ListApplications(r.Context(), user.ID, query.Get("status"), query.Get("q"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": nonNil(items)})
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request, user domain.User) {
	req, ok := decodeBody[applicationRequest](w, r)
	if !ok {
		return
	}
	created, err := s.app.CreateApplication(r.Context(), user.ID, req.fields())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"application": created})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := s.app.GetApplication(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application": item})
}

func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := decodeBody[applicationRequest](w, r)
	if !ok {
		return
	}
	updated, err := s.app.UpdateApplication(r.Context(), user.ID, id, req.patch())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application": updated})
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteApplication(r.Context(), user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := decodeBody[chatRequest](w, r)
	if !ok {
		return
	}
	reply, err := s.app.Converse(r.Context(), user.ID, id, req.Message, req.turns())
	if err != nil {
		metrics.RecordChat(string(app.KindOf(err)))
		writeAppError(w, r, err)
		return
	}
	metrics.RecordChat("ok")
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleListDeliverables(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := s.app.ListDeliverables(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliverables": nonNil(items)})
}

func (s *Server) handleCreateDeliverable(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := decodeBody[deliverableRequest](w, r)
	if !ok {
		return
	}
	created, err := s.app.CreateDeliverable(r.Context(), user.ID, id, req.fields())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"deliverable": created})
}

func (s *Server) handleUpdateDeliverable(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := decodeBody[deliverableRequest](w, r)
	if !ok {
		return
	}
	updated, err := s.app.UpdateDeliverable(r.Context(), user.ID, id, req.patch())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliverable": updated})
}

func (s *Server) handleDeleteDeliverable(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteDeliverable(r.Context(), user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse)
}
