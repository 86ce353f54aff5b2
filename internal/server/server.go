// Package server — HTTP-оболочка над одной сессией диалога.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"MultimodalChat/internal/ai"
	"MultimodalChat/internal/app/session"
	"MultimodalChat/internal/config"
	"MultimodalChat/internal/conversation"
	"MultimodalChat/internal/input"
)

// Handler HTTP-обработчики чата
type Handler struct {
	session *session.Session
	cfg     *config.Config
	logger  *zap.SugaredLogger
}

func New(sess *session.Session, cfg *config.Config, logger *zap.SugaredLogger) *Handler {
	return &Handler{session: sess, cfg: cfg, logger: logger}
}

// NewRouter подключает маршруты и middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		h.RegisterRoutes(api)
	})
	return r
}

// RegisterRoutes регистрирует маршруты чата
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages", h.handleHistory)
	r.Post("/messages", h.handleSend)
}

type sendResponse struct {
	Reply   string              `json:"reply"`
	Dropped []string            `json:"dropped,omitempty"`
	History []conversation.Turn `json:"history"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.session.History())
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in, err := h.readInput(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, status, err.Error())
		return
	}

	reply, err := h.session.HandleTurn(r.Context(), in)
	if err != nil {
		respondError(w, statusFor(err), session.UserMessage(err))
		return
	}

	respondJSON(w, http.StatusOK, sendResponse{
		Reply:   reply.Text,
		Dropped: reply.Dropped,
		History: reply.History,
	})
}

// readInput разбирает multipart (prompt + files) или JSON {"prompt": "..."}.
// Проверка расширений файлов — ответственность оболочки, ядро её не делает.
// Лимит MaxUploadBytes действует для обоих форматов.
func (h *Handler) readInput(w http.ResponseWriter, r *http.Request) (input.UserInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var payload struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("request body too large: %w", err)
			}
			return nil, errors.New("invalid request body")
		}
		return input.PlainText{Text: payload.Prompt}, nil
	}

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	text := r.FormValue("prompt")
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return input.PlainText{Text: text}, nil
	}

	blobs := make([]input.Blob, 0, len(files))
	for _, fh := range files {
		if !h.cfg.Allows(fh.Filename) {
			return nil, fmt.Errorf("file type not allowed: %s (allowed: %s)", fh.Filename, strings.Join(h.cfg.AllowedFileTypes, ", "))
		}
		blobs = append(blobs, fileBlob(fh))
	}
	return input.WithAttachments{Text: text, Blobs: blobs}, nil
}

func fileBlob(fh *multipart.FileHeader) input.Blob {
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename)))
	}
	return input.Blob{
		Name:     fh.Filename,
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func statusFor(err error) int {
	var (
		inputErr *input.InputError
		svcErr   *ai.CompletionServiceError
	)
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &svcErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Infow("HTTP запрос",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// respondJSON отправляет JSON-ответ
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError отправляет ошибку
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
