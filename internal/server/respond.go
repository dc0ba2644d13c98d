package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"jobtracker/internal/app"
	"jobtracker/internal/ratelimit"
	"jobtracker/internal/util"
)

const maxBodyBytes = 1 << 20

var deletedResponse = map[string]bool{"deleted": true}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps an application error kind to its status. Anything
// else is logged and hidden behind a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch app.KindOf(err) {
	case app.KindValidation:
		status = http.StatusBadRequest
	case app.KindAuth:
		status = http.StatusUnauthorized
	case app.KindCapacity:
		status = http.StatusForbidden
	case app.KindConflict:
		status = http.StatusConflict
	case app.KindNotFound:
		status = http.StatusNotFound
	case app.KindConfiguration, app.KindUpstream:
	default:
		util.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// decodeBody reads a JSON object from the request. A missing body or one
// that is not a JSON object decodes as an empty object so that validation
// reports what is missing. A field holding the wrong JSON type is rejected
// with 400 naming the field, and ok is false.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if r.Body == nil {
		return req, true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err == nil {
		return req, true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s has an invalid type", typeErr.Field))
		return req, false
	}
	var empty T
	return empty, true
}

// pathID parses the {id} segment. Anything that is not a positive integer
// cannot name a row and is answered with 404.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Not found")
		return 0, false
	}
	return id, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
