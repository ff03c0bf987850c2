package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkraev/switchboard/internal/orchestrator"
)

// Defaults for the init request, mirroring the CLI's session defaults.
const (
	defaultContainerName = "switchboard"
	defaultPort          = 12347

	// maxUploadBytes caps a single multipart upload request.
	maxUploadBytes = 256 << 20
)

// InitRequest is the body of POST /api/init.
type InitRequest struct {
	ContainerName string `json:"container_name"`
	Port          int    `json:"port"`
	PullImage     string `json:"pull_image"`
	GitClone      bool   `json:"git_clone"`
	LocalEnv      bool   `json:"local_env"`
	Model         string `json:"model"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// SessionHandler exposes the orchestrator's operations over HTTP.
type SessionHandler struct {
	*Handler
	defaultModel string
}

// NewSessionHandler creates the session endpoint handler. defaultModel is
// used when an init request does not name a model.
func NewSessionHandler(base *Handler, defaultModel string) *SessionHandler {
	return &SessionHandler{Handler: base, defaultModel: defaultModel}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/init", h.Init)
		r.Post("/chat", h.Chat)
		r.Post("/upload", h.Upload)
		r.Get("/state", h.GetState)
	})
}

// Init initializes (or fully re-initializes) the session.
func (h *SessionHandler) Init(w http.ResponseWriter, r *http.Request) {
	req := InitRequest{
		ContainerName: defaultContainerName,
		Port:          defaultPort,
		GitClone:      true,
		Model:         h.defaultModel,
	}
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Model == "" {
		req.Model = h.defaultModel
	}

	err := h.orch.Initialize(r.Context(), orchestrator.InitParams{
		ContainerName:     req.ContainerName,
		Port:              req.Port,
		PullImage:         req.PullImage,
		GitClone:          req.GitClone,
		UseLocalExecution: req.LocalEnv,
		Model:             req.Model,
	})
	if err != nil {
		slog.Error("Session initialization failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Environment initialized",
	})
}

// Chat dispatches a single operator message.
func (h *SessionHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orch.Chat(r.Context(), req.Message)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotReady) {
			Error(w, http.StatusBadRequest, "Session not initialized")
			return
		}
		slog.Error("Chat dispatch failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, result)
}

// Upload copies multipart files (field "files") into the session's shared
// working directory.
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		Error(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		Error(w, http.StatusBadRequest, "no files provided")
		return
	}

	var files []orchestrator.UploadFile
	var closers []interface{ Close() error }
	defer func() {
		for _, c := range closers {
			c.Close() //nolint:errcheck // read-side close on request teardown
		}
	}()
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			Error(w, http.StatusBadRequest, "open uploaded file: "+err.Error())
			return
		}
		closers = append(closers, f)
		files = append(files, orchestrator.UploadFile{Filename: header.Filename, Content: f})
	}

	infos, err := h.orch.Upload(r.Context(), files)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotReady) {
			Error(w, http.StatusBadRequest, "Session not initialized")
			return
		}
		slog.Error("Upload failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	uploaded := make([]string, len(infos))
	for i, info := range infos {
		uploaded[i] = "File uploaded: " + info.Destination
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"uploaded_files": uploaded,
		"files":          infos,
	})
}

// GetState reports the session snapshot; it never fails.
func (h *SessionHandler) GetState(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.orch.State())
}
