package server

import (
	"net/http"

	"jobtracker/pkg/domain"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	req, ok := decodeBody[authRequest](w, r)
	if !ok {
		return
	}
	user, token, err := s.app.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{AccessToken: token, User: publicUser(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	req, ok := decodeBody[authRequest](w, r)
	if !ok {
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{AccessToken: token, User: publicUser(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, _ := bearerToken(r)
	if err := s.app.Logout(r.Context(), token); err != nil {
		s.audit(r, "auth.logout", "fail", "user_id", user.ID)
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	me, err := s.app.Me(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": me})
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, _ := bearerToken(r)
	if err := s.app.DeleteAccount(r.Context(), user.ID, token); err != nil {
		s.audit(r, "auth.account.delete", "fail", "user_id", user.ID)
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.account.delete", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, deletedResponse)
}

func publicUser(u domain.User) userView {
	return userView{ID: u.ID, Email: u.Email}
}
