package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"MultimodalChat/internal/ai"
	"MultimodalChat/internal/app"
	"MultimodalChat/internal/config"
	"MultimodalChat/internal/conversation"
	"MultimodalChat/internal/request"
	"MultimodalChat/internal/tokenizer"
)

type recordingInvoker struct {
	reply string
	err   error
	last  request.Request
}

func (r *recordingInvoker) Invoke(_ context.Context, req request.Request) (string, error) {
	r.last = req
	return r.reply, r.err
}

func setupRouter(inv ai.Invoker) http.Handler {
	cfg := config.Defaults()
	logger := zap.NewNop().Sugar()
	sess := app.NewFactory(cfg, tokenizer.CharCounter{}, inv, logger).NewSession()
	return NewRouter(New(sess, cfg, logger))
}

type filePart struct {
	name, contentType string
	data              []byte
}

func multipartBody(t *testing.T, prompt string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", prompt))
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSendJSONPrompt(t *testing.T) {
	inv := &recordingInvoker{reply: "Hello!"}
	r := setupRouter(inv)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{"prompt":"Hi"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var body sendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Hello!", body.Reply)
	require.Len(t, body.History, 2)
	assert.Equal(t, conversation.RoleUser, body.History[0].Role)
}

func TestSendMultipartWithImages(t *testing.T) {
	inv := &recordingInvoker{reply: "a cat"}
	r := setupRouter(inv)

	body, contentType := multipartBody(t, "what is it?",
		filePart{"cat.png", "image/png", []byte("png-bytes")},
		filePart{"dog.JPG", "", []byte("jpg-bytes")},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/messages", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Len(t, inv.last.Content, 3)
	assert.Equal(t, request.KindText, inv.last.Content[0].Kind)
	assert.Equal(t, "png", inv.last.Content[1].Format)
	assert.Equal(t, "jpeg", inv.last.Content[2].Format)

	var out sendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"cat.png", "dog.JPG"}, out.History[0].AttachmentNames)
}

func TestSendRejectsDisallowedFileType(t *testing.T) {
	inv := &recordingInvoker{reply: "unused"}
	r := setupRouter(inv)

	body, contentType := multipartBody(t, "read this", filePart{"notes.txt", "text/plain", []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/api/messages", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, inv.last.Content)
}

func TestSendCompletionFailure(t *testing.T) {
	inv := &recordingInvoker{err: &ai.CompletionServiceError{Cause: errors.New("rate limited")}}
	r := setupRouter(inv)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{"prompt":"Hi"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Contains(t, resp.Body.String(), "rate limited")

	history := httptest.NewRecorder()
	r.ServeHTTP(history, httptest.NewRequest(http.MethodGet, "/api/messages", nil))
	assert.Equal(t, http.StatusOK, history.Code)
	assert.JSONEq(t, `[]`, history.Body.String())
}

func TestSendEmptyPrompt(t *testing.T) {
	r := setupRouter(&recordingInvoker{reply: "unused"})

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{"prompt":"  "}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSendInvalidBody(t *testing.T) {
	r := setupRouter(&recordingInvoker{reply: "unused"})

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte(`{`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSendJSONBodyOverLimit(t *testing.T) {
	inv := &recordingInvoker{reply: "unused"}
	cfg := config.Defaults()
	cfg.MaxUploadBytes = 1 << 10
	logger := zap.NewNop().Sugar()
	sess := app.NewFactory(cfg, tokenizer.CharCounter{}, inv, logger).NewSession()
	r := NewRouter(New(sess, cfg, logger))

	body := `{"prompt":"` + strings.Repeat("a", 4<<10) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code, resp.Body.String())
	assert.Empty(t, inv.last.Content)
	assert.Empty(t, sess.History())
}
