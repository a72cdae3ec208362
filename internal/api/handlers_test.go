package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ttsgate/internal/dispatch"
	"ttsgate/internal/models"
	"ttsgate/internal/queue"
	"ttsgate/internal/registry"
	"ttsgate/internal/store"
)

type apiEnv struct {
	queue  *queue.Queue
	store  *store.Store
	router http.Handler
}

func newAPIEnv(t *testing.T, cfg RouterConfig, timeout time.Duration) *apiEnv {
	t.Helper()
	root := t.TempDir()

	q := queue.New(root)
	if err := q.EnsureEngine("xtts"); err != nil {
		t.Fatalf("failed to prepare queue: %v", err)
	}
	s := store.New(root)
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("failed to prepare store: %v", err)
	}
	reg := registry.New(root)
	if err := reg.EnsureDir(); err != nil {
		t.Fatalf("failed to prepare registry: %v", err)
	}
	if err := reg.Publish(&models.ReadinessInfo{
		Engine: "xtts",
		Models: map[string]models.ModelInfo{
			"xtts": {Name: "xtts", Languages: []string{"en"}, Speakers: []string{"p001"}, SupportsCustomVoice: true},
		},
	}); err != nil {
		t.Fatalf("failed to publish readiness: %v", err)
	}

	table, err := reg.AwaitAll(context.Background(), []string{"xtts"}, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to build capability table: %v", err)
	}

	d := dispatch.New(q, s, table, timeout, 10*time.Millisecond)
	return &apiEnv{
		queue:  q,
		store:  s,
		router: NewRouter(NewHandler(d, table), cfg),
	}
}

// consume stands in for a worker: it claims the next descriptor and completes
// the job on the shared filesystem.
func (e *apiEnv) consume(t *testing.T, audio []byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pending, err := e.queue.Pending("xtts")
		if err != nil {
			t.Errorf("scan failed: %v", err)
			return
		}
		if len(pending) == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		claimed, err := e.queue.Claim("xtts", pending[0])
		if err != nil {
			continue
		}
		job, err := e.queue.Read(claimed)
		if err != nil {
			t.Errorf("read failed: %v", err)
			return
		}
		if err := e.store.WriteOutput(job.ID, audio); err != nil {
			t.Errorf("write output failed: %v", err)
			return
		}
		if err := e.queue.MarkOK(job.ID); err != nil {
			t.Errorf("mark failed: %v", err)
			return
		}
		e.queue.Discard(claimed)
		return
	}
	t.Error("no descriptor appeared for the consumer")
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !body["ok"] {
		t.Error("health endpoint did not report ok")
	}
}

func TestListModels(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []models.ModelRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Engine != "xtts" || records[0].Model != "xtts" {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if len(records[0].Speakers) != 1 || records[0].Speakers[0] != "p001" {
		t.Errorf("unexpected speakers: %v", records[0].Speakers)
	}
}

func TestSynthesizeInvalidBody(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSynthesizeValidation(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{}, time.Second)

	cases := []struct {
		name string
		req  models.TTSRequest
	}{
		{"empty text", models.TTSRequest{Engine: "xtts", Speaker: "p001"}},
		{"too long", models.TTSRequest{Text: strings.Repeat("a", 1001), Engine: "xtts", Speaker: "p001"}},
		{"no speaker", models.TTSRequest{Text: "hi", Engine: "xtts"}},
		{"unknown engine", models.TTSRequest{Text: "hi", Engine: "nope", Speaker: "p001"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, env.router, "/tts", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	// No worker is consuming, so the job must time out.
	env := newAPIEnv(t, RouterConfig{}, 100*time.Millisecond)

	rec := postJSON(t, env.router, "/tts", models.TTSRequest{Text: "hi", Engine: "xtts", Speaker: "p001"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !strings.Contains(body["error"], "Timeout") {
		t.Errorf("unexpected error message: %q", body["error"])
	}
}

func TestSynthesizeHappyPath(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{}, 2*time.Second)

	go env.consume(t, []byte("wav bytes"))

	rec := postJSON(t, env.router, "/tts", models.TTSRequest{Text: "Hello world", Engine: "xtts", Speaker: "p001"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.TTSResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Engine != "xtts" {
		t.Errorf("unexpected engine in response: %q", resp.Engine)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioData)
	if err != nil {
		t.Fatalf("audio_data is not valid base64: %v", err)
	}
	if string(audio) != "wav bytes" {
		t.Errorf("audio payload mismatch: %q", audio)
	}
}

func TestSynthesizeWithAudioRequiresFile(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{}, time.Second)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("text", "hi")
	mw.WriteField("engine", "xtts")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/tts_with_audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSynthesizeWithAudioHappyPath(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{}, 2*time.Second)

	go env.consume(t, []byte("cloned wav"))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("text", "Clone this voice")
	mw.WriteField("engine", "xtts")
	fw, err := mw.CreateFormFile("file", "ref.wav")
	if err != nil {
		t.Fatalf("failed to build form: %v", err)
	}
	fw.Write([]byte("reference audio"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/tts_with_audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("unexpected content type: %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "speech_xtts.wav") {
		t.Errorf("unexpected content disposition: %q", cd)
	}
	if rec.Body.String() != "cloned wav" {
		t.Errorf("audio payload mismatch: %q", rec.Body.String())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	env := newAPIEnv(t, RouterConfig{BackendAPIKey: "secret"}, time.Second)

	body := models.TTSRequest{Text: "hi", Engine: "xtts", Speaker: "p001"}
	data, _ := json.Marshal(body)

	// Missing key
	req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", rec.Code)
	}

	// Wrong key
	req = httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(data))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: expected 403, got %d", rec.Code)
	}

	// Correct key via bearer token; the job times out downstream but the
	// request must clear auth.
	env2 := newAPIEnv(t, RouterConfig{BackendAPIKey: "secret"}, 50*time.Millisecond)
	req = httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	env2.router.ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized || rec.Code == http.StatusForbidden {
		t.Errorf("valid key rejected with %d", rec.Code)
	}

	// Health stays public.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health must not require auth, got %d", rec.Code)
	}
}
