package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/logging"
	"ragchat/internal/server/api"
	"ragchat/internal/service"
	"ragchat/internal/session"
)

type fakeAssistant struct {
	mu        sync.Mutex
	reply     domain.Reply
	chatErr   error
	uploadErr error
	uploaded  map[string]string
	turns     []string
	scans     int
}

func (f *fakeAssistant) Chat(_ context.Context, sessionID, query string) (domain.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, sessionID+":"+query)
	return f.reply, f.chatErr
}

func (f *fakeAssistant) Upload(_ context.Context, filename string, r io.Reader) (service.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return service.UploadResult{}, f.uploadErr
	}
	if _, ok := f.uploaded[filename]; ok {
		return service.UploadResult{Filename: filename, Skipped: true}, nil
	}
	data, _ := io.ReadAll(r)
	f.uploaded[filename] = string(data)
	return service.UploadResult{Filename: filename, Chunks: 2}, nil
}

func (f *fakeAssistant) Stats() service.Stats {
	return service.Stats{Chunks: 7, Sources: []string{"policy.md"}}
}

func (f *fakeAssistant) ScanFolder(context.Context) (service.ScanReport, error) {
	f.mu.Lock()
	f.scans++
	f.mu.Unlock()
	return service.ScanReport{}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeAssistant, *session.Store) {
	t.Helper()
	fa := &fakeAssistant{
		reply:    domain.Reply{Answer: "25 days", Sources: []string{"policy.md"}, Mode: domain.ModeInternal, Score: 0.8},
		uploaded: map[string]string{},
	}
	sessions := session.NewStore()
	return New(Config{}, fa, sessions, logging.Discard()), fa, sessions
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealthy(t *testing.T) {
	s, _, _ := newTestServer(t)
	resp, body := doJSON(t, s, http.MethodGet, "/check/healthy", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"result":"ok"}`, string(body))
}

func TestChat_NewSessionIsIssued(t *testing.T) {
	s, fa, sessions := newTestServer(t)
	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"query":"How many vacation days?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out api.ChatResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "25 days", out.Answer)
	assert.Equal(t, "internal", out.Mode)
	assert.Equal(t, []string{"policy.md"}, out.Sources)
	assert.InDelta(t, 0.8, out.Score, 1e-12)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, 1, sessions.Len())
	assert.Equal(t, []string{out.SessionID + ":How many vacation days?"}, fa.turns)

	// the issued id is reused on the next turn
	resp, body = doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"query":"And sick days?","session_id":"`+out.SessionID+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second api.ChatResponse
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Equal(t, out.SessionID, second.SessionID)
	assert.Equal(t, 1, sessions.Len())
}

func TestChat_RejectsMalformedRequests(t *testing.T) {
	s, fa, _ := newTestServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"query":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "query")

	resp, body = doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"query":"hi","session_id":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "session_id")

	assert.Empty(t, fa.turns)
}

func TestChat_ProviderFailure(t *testing.T) {
	s, fa, _ := newTestServer(t)
	fa.chatErr = errors.New("generation unavailable")

	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"query":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "generation unavailable")
}

func TestChat_SessionGoneDuringTurn(t *testing.T) {
	s, fa, _ := newTestServer(t)
	fa.chatErr = fmt.Errorf("%w: %v", service.ErrUnknownSession, session.ErrNotFound)

	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"query":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "session")
}

func TestUpload(t *testing.T) {
	s, fa, _ := newTestServer(t)

	resp, err := s.App().Test(uploadRequest(t, "policy.md", "Employees get 25 days."), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out api.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "policy.md", out.Filename)
	assert.False(t, out.Skipped)
	assert.Equal(t, "Employees get 25 days.", fa.uploaded["policy.md"])

	resp, err = s.App().Test(uploadRequest(t, "policy.md", "changed"), -1)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Skipped)
	assert.Equal(t, "Employees get 25 days.", fa.uploaded["policy.md"])
}

func TestUpload_Rejections(t *testing.T) {
	s, fa, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader(""))
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = s.App().Test(uploadRequest(t, "empty.txt", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	fa.uploadErr = service.ErrNoText
	resp, err = s.App().Test(uploadRequest(t, "scan.pdf", "%PDF-1.4"), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessions(t *testing.T) {
	s, _, sessions := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out api.SessionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, sessions.Len())

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/v1/sessions/"+out.SessionID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, sessions.Len())

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/v1/sessions/"+out.SessionID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/v1/sessions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStats(t *testing.T) {
	s, _, _ := newTestServer(t)
	resp, body := doJSON(t, s, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"chunks":7,"sources":["policy.md"],"sessions":0}`, string(body))
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	fa := &fakeAssistant{uploaded: map[string]string{}}
	s := New(Config{RescanSchedule: "every now and then"}, fa, session.NewStore(), logging.Discard())
	_, err := s.scheduler(context.Background())
	assert.Error(t, err)
}

func TestRescan_CallsScan(t *testing.T) {
	s, fa, _ := newTestServer(t)
	s.rescan(context.Background())
	assert.Equal(t, 1, fa.scans)
}
