package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testHistory = []Message{
	{Role: RoleUser, Text: "hi"},
	{Role: RoleAssistant, Text: "hello"},
}

func TestGeminiGeneratorSendsHistoryAndSystemInstruction(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("missing api key")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Prep "},{"text":"hard."}]}}]}`))
	}))
	defer srv.Close()

	gen, err := NewChatGenerator(GeneratorConfig{Provider: "gemini", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	reply, err := gen.Chat(context.Background(), "system prompt", testHistory, "next?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Prep hard." {
		t.Fatalf("reply = %q", reply)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "system prompt" {
		t.Fatalf("missing system instruction: %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(got.Contents))
	}
	roles := []string{got.Contents[0].Role, got.Contents[1].Role, got.Contents[2].Role}
	if roles[0] != "user" || roles[1] != "model" || roles[2] != "user" {
		t.Fatalf("unexpected roles: %v", roles)
	}
	if got.Contents[2].Parts[0].Text != "next?" {
		t.Fatalf("last turn = %q", got.Contents[2].Parts[0].Text)
	}
}

func TestGeminiGeneratorSurfacesProviderMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted"}}`))
	}))
	defer srv.Close()

	client, err := NewGeminiClient("k", WithGeminiBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = NewGeminiGenerator(client, "gemini-2.5-flash").Chat(context.Background(), "", nil, "hi")
	if err == nil || !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("expected provider message, got %v", err)
	}
}

func TestOpenAICompatGeneratorMapsRoles(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	gen, err := NewChatGenerator(GeneratorConfig{Provider: "openai", BaseURL: srv.URL + "/v1", APIKey: "secret", Model: "m"})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	reply, err := gen.Chat(context.Background(), "sys", testHistory, "q")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "ok" {
		t.Fatalf("reply = %q", reply)
	}
	want := []string{"system", "user", "assistant", "user"}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages = %+v", got.Messages)
	}
	for i, role := range want {
		if got.Messages[i].Role != role {
			t.Fatalf("message %d role = %q, want %q", i, got.Messages[i].Role, role)
		}
	}
}

func TestOllamaGeneratorChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			t.Errorf("expected non-streaming request")
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"from ollama"}}`))
	}))
	defer srv.Close()

	gen, err := NewChatGenerator(GeneratorConfig{Provider: "ollama", BaseURL: srv.URL, Model: "llama3"})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	reply, err := gen.Chat(context.Background(), "sys", nil, "q")
	if err != nil || reply != "from ollama" {
		t.Fatalf("reply = %q err=%v", reply, err)
	}
}

func TestNewChatGeneratorWithoutKeyIsUnconfigured(t *testing.T) {
	gen, err := NewChatGenerator(GeneratorConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen != nil {
		t.Fatalf("expected nil generator without api key")
	}
	if _, err := NewChatGenerator(GeneratorConfig{Provider: "bogus"}); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
}
