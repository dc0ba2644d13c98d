package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"jobtracker/internal/app"
	"jobtracker/pkg/ai"
)

type echoGenerator struct {
	history []ai.Message
	err     error
}

func (g *echoGenerator) Chat(_ context.Context, _ string, history []ai.Message, message string) (string, error) {
	g.history = history
	if g.err != nil {
		return "", g.err
	}
	return "echo: " + message, nil
}

func newTestServer(t *testing.T, gen ai.ChatGenerator, cfg Config) http.Handler {
	t.Helper()
	appCfg := app.Config{
		DatabaseURL: "sqlite://:memory:",
		JWTSecret:   "server-test-secret-123",
	}
	if gen != nil {
		appCfg.Generator = gen
	}
	a, err := app.New(appCfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	cfg.App = a
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Router()
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "198.51.100.7:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var payload map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, payload
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec, payload := do(t, h, http.MethodPost, "/auth/register", "", `{"email":"`+email+`","password":"password123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	token, _ := payload["access_token"].(string)
	if token == "" {
		t.Fatalf("register %s: missing access_token", email)
	}
	return token
}

func createApplication(t *testing.T, h http.Handler, token, company string) int64 {
	t.Helper()
	rec, payload := do(t, h, http.MethodPost, "/applications", token, `{"company":"`+company+`","role":"Engineer"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create application: status %d body %s", rec.Code, rec.Body.String())
	}
	return int64(payload["application"].(map[string]any)["id"].(float64))
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, payload map[string]any, status int, msg string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if msg != "" && payload["error"] != msg {
		t.Fatalf("error = %v, want %q", payload["error"], msg)
	}
}

func TestHealthAndMeta(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	rec, payload := do(t, h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || payload["ok"] != true {
		t.Fatalf("health = %d %v", rec.Code, payload)
	}
	if rec.Header().Get("X-Request-Id") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("middleware headers missing: %v", rec.Header())
	}

	rec, payload = do(t, h, http.MethodGet, "/meta", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("meta status %d", rec.Code)
	}
	if payload["max_users_total"] != float64(10) || payload["max_apps_per_user"] != float64(5) {
		t.Fatalf("meta = %v", payload)
	}
	if statuses, _ := payload["allowed_statuses"].([]any); len(statuses) != 6 {
		t.Fatalf("allowed_statuses = %v", payload["allowed_statuses"])
	}
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestServer(t, nil, Config{})

	rec, payload := do(t, h, http.MethodPost, "/auth/register", "", `{not json`)
	wantError(t, rec, payload, http.StatusBadRequest, "Invalid email")

	rec, payload = do(t, h, http.MethodPost, "/auth/register", "", `{"email":"a@b.com","password":"short"}`)
	wantError(t, rec, payload, http.StatusBadRequest, "Password must be at least 8 characters")

	rec, payload = do(t, h, http.MethodPost, "/auth/register", "", `{"email":" A@B.com ","password":"password123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d", rec.Code)
	}
	user := payload["user"].(map[string]any)
	if user["email"] != "a@b.com" || user["id"] == nil {
		t.Fatalf("user = %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatalf("password hash leaked")
	}

	rec, payload = do(t, h, http.MethodPost, "/auth/register", "", `{"email":"a@b.com","password":"password123"}`)
	wantError(t, rec, payload, http.StatusConflict, "Email already registered")

	rec, payload = do(t, h, http.MethodPost, "/auth/login", "", `{"email":"a@b.com","password":"nope-nope"}`)
	wantError(t, rec, payload, http.StatusUnauthorized, "Invalid credentials")

	rec, payload = do(t, h, http.MethodPost, "/auth/login", "", `{"email":"a@b.com","password":"password123"}`)
	if rec.Code != http.StatusOK || payload["access_token"] == "" {
		t.Fatalf("login = %d %v", rec.Code, payload)
	}
	token := payload["access_token"].(string)

	rec, payload = do(t, h, http.MethodGet, "/auth/me", token, "")
	if rec.Code != http.StatusOK || payload["user"].(map[string]any)["email"] != "a@b.com" {
		t.Fatalf("me = %d %v", rec.Code, payload)
	}

	rec, _ = do(t, h, http.MethodPost, "/auth/logout", token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status %d", rec.Code)
	}
	rec, payload = do(t, h, http.MethodGet, "/applications", token, "")
	wantError(t, rec, payload, http.StatusUnauthorized, "Missing or invalid token")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/applications"},
		{http.MethodPost, "/applications"},
		{http.MethodPut, "/applications/1"},
		{http.MethodPost, "/applications/1/chat"},
		{http.MethodGet, "/applications/1/deliverables"},
		{http.MethodDelete, "/deliverables/1"},
		{http.MethodGet, "/writing"},
		{http.MethodGet, "/auth/me"},
	} {
		rec, payload := do(t, h, route.method, route.path, "", "{}")
		wantError(t, rec, payload, http.StatusUnauthorized, "Missing or invalid token")
	}
	rec, payload := do(t, h, http.MethodGet, "/applications", "not-a-jwt", "")
	wantError(t, rec, payload, http.StatusUnauthorized, "")
}

func TestRegisterRateLimited(t *testing.T) {
	h := newTestServer(t, nil, Config{RegisterRateLimitPerMinute: 1})
	register(t, h, "first@b.com")
	rec, payload := do(t, h, http.MethodPost, "/auth/register", "", `{"email":"second@b.com","password":"password123"}`)
	wantError(t, rec, payload, http.StatusTooManyRequests, "too many registration attempts")
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("missing Retry-After")
	}
}

func TestRevocationOutageIsServerError(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := app.New(app.Config{
		DatabaseURL: "sqlite://:memory:",
		JWTSecret:   "server-test-secret-123",
		RedisAddr:   mr.Addr(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	srv, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	h := srv.Router()
	token := register(t, h, "a@b.com")

	mr.Close()
	rec, payload := do(t, h, http.MethodGet, "/auth/me", token, "")
	wantError(t, rec, payload, http.StatusInternalServerError, "internal error")
}

func TestCloseReleasesRedisLimiters(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := app.New(app.Config{DatabaseURL: "sqlite://:memory:", JWTSecret: "server-test-secret-123"})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	srv, err := New(Config{App: a, RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if !srv.loginLimiter.Allow("198.51.100.7") {
		t.Fatalf("login limiter should allow before close")
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if srv.registerLimiter.Allow("198.51.100.7") || srv.loginLimiter.Allow("198.51.100.7") {
		t.Fatalf("closed limiters should deny")
	}
}

func TestApplicationRoutes(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	alice := register(t, h, "alice@b.com")
	bob := register(t, h, "bob@b.com")

	rec, payload := do(t, h, http.MethodPost, "/applications", alice, `{"company":"","role":"x"}`)
	wantError(t, rec, payload, http.StatusBadRequest, "company and role are required")

	rec, payload = do(t, h, http.MethodPost, "/applications", alice,
		`{"company":"Acme","role":"Engineer","link":"  ","due_date":"2026-02-14","notes":"remote ok"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d body %s", rec.Code, rec.Body.String())
	}
	created := payload["application"].(map[string]any)
	if created["status"] != "Drafting" || created["link"] != nil || created["due_date"] != "2026-02-14T00:00:00Z" {
		t.Fatalf("created = %v", created)
	}
	if _, leaked := created["user_id"]; leaked {
		t.Fatalf("owner id should not be rendered")
	}
	id := int64(created["id"].(float64))
	path := "/applications/" + itoa(id)

	rec, payload = do(t, h, http.MethodGet, path, bob, "")
	wantError(t, rec, payload, http.StatusNotFound, "Not found")
	rec, payload = do(t, h, http.MethodGet, "/applications/abc", alice, "")
	wantError(t, rec, payload, http.StatusNotFound, "Not found")

	rec, payload = do(t, h, http.MethodPut, path, alice, `{"status":"Bogus"}`)
	wantError(t, rec, payload, http.StatusBadRequest, "status must be one of: Drafting, Submitted, Interview, Offer, Rejected, Withdrawn")

	rec, payload = do(t, h, http.MethodPut, path, alice, `{"status":"Interview","company":"","notes":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status %d body %s", rec.Code, rec.Body.String())
	}
	updated := payload["application"].(map[string]any)
	if updated["status"] != "Interview" || updated["company"] != "Acme" || updated["notes"] != nil {
		t.Fatalf("updated = %v", updated)
	}

	rec, payload = do(t, h, http.MethodGet, "/applications?status=Interview&q=acme", alice, "")
	if rec.Code != http.StatusOK || len(payload["applications"].([]any)) != 1 {
		t.Fatalf("filtered list = %v", payload)
	}
	rec, payload = do(t, h, http.MethodGet, "/applications", bob, "")
	if rec.Code != http.StatusOK || len(payload["applications"].([]any)) != 0 {
		t.Fatalf("bob list = %v", payload)
	}

	rec, payload = do(t, h, http.MethodDelete, path, alice, "")
	if rec.Code != http.StatusOK || payload["deleted"] != true {
		t.Fatalf("delete = %d %v", rec.Code, payload)
	}
	rec, payload = do(t, h, http.MethodDelete, path, alice, "")
	wantError(t, rec, payload, http.StatusNotFound, "Not found")
}

func TestApplicationCapReturnsForbidden(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	token := register(t, h, "a@b.com")
	for i := 0; i < 5; i++ {
		createApplication(t, h, token, "Co"+itoa(int64(i)))
	}
	rec, payload := do(t, h, http.MethodPost, "/applications", token, `{"company":"Six","role":"x"}`)
	wantError(t, rec, payload, http.StatusForbidden, "Application limit reached (5 per user).")
}

func TestApplicationBodyFieldTypes(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	token := register(t, h, "a@b.com")

	rec, payload := do(t, h, http.MethodPost, "/applications", token, `{"company":"Globex","role":"SWE","due_date":20260214}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create with numeric date: status %d body %s", rec.Code, rec.Body.String())
	}
	created := payload["application"].(map[string]any)
	if created["company"] != "Globex" || created["due_date"] != nil {
		t.Fatalf("created = %v", created)
	}
	path := "/applications/" + itoa(int64(created["id"].(float64)))

	rec, payload = do(t, h, http.MethodPut, path, token, `{"company":"NewCo","status":"Offer","notes":5}`)
	wantError(t, rec, payload, http.StatusBadRequest, "notes has an invalid type")
	rec, payload = do(t, h, http.MethodGet, path, token, "")
	if got := payload["application"].(map[string]any); got["company"] != "Globex" || got["status"] != "Drafting" {
		t.Fatalf("rejected update changed the row: %v", got)
	}

	rec, payload = do(t, h, http.MethodPut, path, token, `{"company":"NewCo","status":"Offer","submitted_date":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update with boolean date: status %d body %s", rec.Code, rec.Body.String())
	}
	updated := payload["application"].(map[string]any)
	if updated["company"] != "NewCo" || updated["status"] != "Offer" || updated["submitted_date"] != nil {
		t.Fatalf("updated = %v", updated)
	}

	rec, payload = do(t, h, http.MethodPost, "/applications", token, `not json`)
	wantError(t, rec, payload, http.StatusBadRequest, "company and role are required")

	deliverables := path + "/deliverables"
	rec, payload = do(t, h, http.MethodPost, deliverables, token, `{"title":"Essay","is_done":"yes"}`)
	wantError(t, rec, payload, http.StatusBadRequest, "is_done has an invalid type")
	rec, payload = do(t, h, http.MethodPost, deliverables, token, `{"title":"Essay","due_date":{"day":3}}`)
	if rec.Code != http.StatusCreated || payload["deliverable"].(map[string]any)["due_date"] != nil {
		t.Fatalf("deliverable with object date = %d %v", rec.Code, payload)
	}
}

func TestDeliverableRoutes(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	alice := register(t, h, "alice@b.com")
	bob := register(t, h, "bob@b.com")
	appID := createApplication(t, h, alice, "Acme")
	base := "/applications/" + itoa(appID) + "/deliverables"

	rec, payload := do(t, h, http.MethodPost, base, bob, `{"title":"steal"}`)
	wantError(t, rec, payload, http.StatusNotFound, "Not found")

	rec, payload = do(t, h, http.MethodPost, base, alice, `{"title":"Cover letter","dtype":"Document"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create deliverable %d %s", rec.Code, rec.Body.String())
	}
	d := payload["deliverable"].(map[string]any)
	if d["dtype"] != "Document" || d["state"] != "Not started" || d["is_done"] != false || d["application_id"] != float64(appID) {
		t.Fatalf("deliverable = %v", d)
	}
	deliverablePath := "/deliverables/" + itoa(int64(d["id"].(float64)))

	rec, payload = do(t, h, http.MethodPut, deliverablePath, alice, `{"is_done":true}`)
	if rec.Code != http.StatusOK || payload["deliverable"].(map[string]any)["state"] != "Done" {
		t.Fatalf("complete deliverable = %d %v", rec.Code, payload)
	}
	rec, payload = do(t, h, http.MethodPut, deliverablePath, bob, `{"title":"x"}`)
	wantError(t, rec, payload, http.StatusNotFound, "Not found")

	rec, payload = do(t, h, http.MethodGet, base, alice, "")
	if rec.Code != http.StatusOK || len(payload["deliverables"].([]any)) != 1 {
		t.Fatalf("list deliverables = %v", payload)
	}

	rec, payload = do(t, h, http.MethodDelete, deliverablePath, alice, "")
	if rec.Code != http.StatusOK || payload["deleted"] != true {
		t.Fatalf("delete deliverable = %d %v", rec.Code, payload)
	}
}

func TestWritingRoutes(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	token := register(t, h, "a@b.com")

	rec, payload := do(t, h, http.MethodPost, "/writing", token, `{"title":"Intro"}`)
	wantError(t, rec, payload, http.StatusBadRequest, "content is required")

	rec, payload = do(t, h, http.MethodPost, "/writing", token, `{"title":"Intro","tags":"behavioral","content":"I build things."}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item %d %s", rec.Code, rec.Body.String())
	}
	itemPath := "/writing/" + itoa(int64(payload["item"].(map[string]any)["id"].(float64)))

	rec, payload = do(t, h, http.MethodPut, itemPath, token, `{"content":""}`)
	wantError(t, rec, payload, http.StatusBadRequest, "content cannot be empty")

	rec, payload = do(t, h, http.MethodGet, "/writing?q=BEHAV", token, "")
	if rec.Code != http.StatusOK || len(payload["items"].([]any)) != 1 {
		t.Fatalf("search = %v", payload)
	}
	rec, payload = do(t, h, http.MethodDelete, itemPath, token, "")
	if rec.Code != http.StatusOK || payload["deleted"] != true {
		t.Fatalf("delete item = %d %v", rec.Code, payload)
	}
}

func TestChatRoutes(t *testing.T) {
	unconfigured := newTestServer(t, nil, Config{})
	token := register(t, unconfigured, "a@b.com")
	appID := createApplication(t, unconfigured, token, "Acme")
	chatPath := "/applications/" + itoa(appID) + "/chat"

	rec, payload := do(t, unconfigured, http.MethodPost, chatPath, token, `{"message":"   "}`)
	wantError(t, rec, payload, http.StatusBadRequest, "Message is required")
	rec, payload = do(t, unconfigured, http.MethodPost, chatPath, token, `{"message":"hi"}`)
	wantError(t, rec, payload, http.StatusInternalServerError, "GEMINI_API_KEY is not configured on the server.")

	gen := &echoGenerator{}
	h := newTestServer(t, gen, Config{})
	token = register(t, h, "a@b.com")
	appID = createApplication(t, h, token, "Acme")
	chatPath = "/applications/" + itoa(appID) + "/chat"

	rec, payload = do(t, h, http.MethodPost, "/applications/999/chat", token, `{"message":"hi"}`)
	wantError(t, rec, payload, http.StatusNotFound, "Application not found")

	body := `{"message":"next?","history":[{"role":"user","parts":"hi"},{"role":"model","parts":[{"text":"hel"},"lo"]},{"role":"assistant","text":"again"}]}`
	rec, payload = do(t, h, http.MethodPost, chatPath, token, body)
	if rec.Code != http.StatusOK || payload["reply"] != "echo: next?" {
		t.Fatalf("chat = %d %v", rec.Code, payload)
	}
	if len(gen.history) != 3 || gen.history[1].Text != "hello" || gen.history[1].Role != ai.RoleAssistant || gen.history[2].Role != ai.RoleAssistant {
		t.Fatalf("history = %+v", gen.history)
	}

	gen.err = errors.New("model overloaded")
	rec, payload = do(t, h, http.MethodPost, chatPath, token, `{"message":"again"}`)
	wantError(t, rec, payload, http.StatusInternalServerError, "model overloaded")
}

func TestDeleteAccountRoute(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	token := register(t, h, "a@b.com")
	createApplication(t, h, token, "Acme")

	rec, payload := do(t, h, http.MethodDelete, "/auth/me", token, "")
	if rec.Code != http.StatusOK || payload["deleted"] != true {
		t.Fatalf("delete account = %d %v", rec.Code, payload)
	}
	rec, payload = do(t, h, http.MethodGet, "/auth/me", token, "")
	wantError(t, rec, payload, http.StatusUnauthorized, "")
	register(t, h, "a@b.com")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil, Config{})
	do(t, h, http.MethodGet, "/health", "", "")
	rec, _ := do(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `jobtracker_http_requests_total{method="GET",route="/health",status="200"}`) {
		t.Fatalf("metrics output missing request counter:\n%s", rec.Body.String())
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
