package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mkraev/switchboard/internal/domain"
	"github.com/mkraev/switchboard/internal/executor"
	"github.com/mkraev/switchboard/internal/orchestrator"
)

type stubExecutor struct{}

func (stubExecutor) Execute(_ context.Context, req executor.Request) (executor.Result, error) {
	return executor.Result{
		Messages: []domain.Message{
			{Role: domain.RoleAssistant, Content: "stub reply", Agent: req.Agent.Name},
		},
		NextAgent: "System_Triage_Agent",
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	orch := orchestrator.New(ctx, orchestrator.Options{
		LocalRoot: t.TempDir(),
		Workers:   1,
		NewExecutor: func(string) executor.Executor {
			return stubExecutor{}
		},
	})

	base := NewHandler(orch, nil)
	session := NewSessionHandler(base, "test-model")

	r := chi.NewRouter()
	session.RegisterRoutes(r)
	NewHealthHandler(base).RegisterHealth(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func initLocalSession(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := postJSON(t, srv, "/api/init", `{"container_name": "test", "local_env": true, "git_clone": false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["status"] != "success" {
		t.Errorf("init status field = %v, want success", body["status"])
	}
}

func TestGetStateBeforeInit(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["initialized"] != false {
		t.Errorf("initialized = %v, want false", body["initialized"])
	}
}

func TestChatBeforeInit(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/chat", `{"message": "hello"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Session not initialized" {
		t.Errorf("error = %v, want Session not initialized", body["error"])
	}
}

func TestChatInvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv, "/api/chat", `{not json`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestInitThenChat(t *testing.T) {
	srv := newTestServer(t)
	initLocalSession(t, srv)

	resp := postJSON(t, srv, "/api/chat", `{"message": "hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["response"] != "stub reply" {
		t.Errorf("response = %v, want stub reply", body["response"])
	}
	if body["agent_name"] != "System_Triage_Agent" {
		t.Errorf("agent_name = %v, want System_Triage_Agent", body["agent_name"])
	}

	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	state := decodeBody(t, resp)
	if state["initialized"] != true {
		t.Errorf("initialized = %v, want true", state["initialized"])
	}
	msgs, ok := state["messages"].([]interface{})
	if !ok || len(msgs) != 2 {
		t.Errorf("messages = %v, want 2 entries", state["messages"])
	}
}

func TestUploadBeforeInit(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("content")) //nolint:errcheck
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestUploadNoFiles(t *testing.T) {
	srv := newTestServer(t)
	initLocalSession(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("unrelated", "value") //nolint:errcheck
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestUploadFiles(t *testing.T) {
	srv := newTestServer(t)
	initLocalSession(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("content")) //nolint:errcheck
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/upload: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	uploaded, ok := body["uploaded_files"].([]interface{})
	if !ok || len(uploaded) != 1 {
		t.Fatalf("uploaded_files = %v, want 1 entry", body["uploaded_files"])
	}
	msg, _ := uploaded[0].(string)
	if !strings.HasPrefix(msg, "File uploaded: ") || !strings.HasSuffix(msg, "/files/notes.txt") {
		t.Errorf("uploaded_files[0] = %q", msg)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body := decodeBody(t, resp)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}
