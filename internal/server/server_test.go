package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/deepscan/internal/metrics"
	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/pipeline"
	"github.com/ppiankov/deepscan/internal/score"
	"github.com/ppiankov/deepscan/internal/session"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	server   *Server
	sessions *session.Store
	handler  http.Handler
}

func newFixture(t *testing.T, mutate func(*model.Config), opts ...pipeline.Option) *fixture {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.Analysis.Delay = 0
	cfg.RateLimiting.RequestsPerSecond = 0
	if mutate != nil {
		mutate(cfg)
	}

	recorder := metrics.NewRecorder()
	sessions := session.NewStore(time.Minute, time.Minute)
	t.Cleanup(sessions.Close)

	opts = append(opts, pipeline.WithObserver(recorder))
	srv := New(cfg, Options{
		Pipeline: pipeline.NewPipeline(cfg, opts...),
		Sessions: sessions,
		Recorder: recorder,
	})
	return &fixture{server: srv, sessions: sessions, handler: srv.Handler()}
}

func uploadRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()
	var resp model.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestAnalyze_Success(t *testing.T) {
	f := newFixture(t, nil, pipeline.WithSampler(score.FixedSampler(87)))

	rec := f.do(uploadRequest(t, "/v1/analyze/image", "image", "photo.png", pngHeader))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode(t, rec)
	if resp.Status != "success" || !strings.HasPrefix(resp.ID, "analysis_") {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if resp.Result.IsFakeProbability != 0.87 {
		t.Errorf("expected 0.87, got %v", resp.Result.IsFakeProbability)
	}
	if resp.Result.AuthenticityScore != 13 {
		t.Errorf("expected 13, got %d", resp.Result.AuthenticityScore)
	}
	if resp.Result.Verdict != model.VerdictFake {
		t.Errorf("expected fake verdict, got %s", resp.Result.Verdict)
	}
	if len(resp.Result.DetectionFeatures) != 4 {
		t.Errorf("expected 4 features, got %d", len(resp.Result.DetectionFeatures))
	}
	if rec.Header().Get(SessionHeader) == "" {
		t.Error("expected a generated session id")
	}
}

func TestAnalyze_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		field    string
		filename string
		data     []byte
		status   int
		kind     string
	}{
		{"invalid type", "/v1/analyze/document", "document", "a.png", pngHeader, http.StatusBadRequest, "invalid_media_type"},
		{"missing field", "/v1/analyze/image", "file", "a.png", pngHeader, http.StatusBadRequest, "missing_file"},
		{"mismatch", "/v1/analyze/video", "video", "a.png", pngHeader, http.StatusUnprocessableEntity, "mismatch"},
		{"unsupported", "/v1/analyze/audio", "audio", "notes.txt", []byte("plain text"), http.StatusUnsupportedMediaType, "unsupported"},
		{"too large", "/v1/analyze/image", "image", "big.png", append(append([]byte{}, pngHeader...), make([]byte, 100)...), http.StatusRequestEntityTooLarge, "too_large"},
	}

	f := newFixture(t, func(c *model.Config) { c.Intake.MaxBytes = 64 })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(uploadRequest(t, tt.path, tt.field, tt.filename, tt.data))
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			resp := decode(t, rec)
			if resp.Status != "error" || resp.Error == nil || resp.Error.Kind != tt.kind {
				t.Errorf("expected %s error, got %+v", tt.kind, resp)
			}
			if resp.Result != nil {
				t.Error("rejections must not carry a score")
			}
		})
	}
}

func TestAnalyze_RateLimited(t *testing.T) {
	f := newFixture(t, func(c *model.Config) {
		c.RateLimiting.RequestsPerSecond = 0.001
		c.RateLimiting.BurstSize = 1
	})

	first := f.do(uploadRequest(t, "/v1/analyze/image", "image", "a.png", pngHeader))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	second := f.do(uploadRequest(t, "/v1/analyze/image", "image", "a.png", pngHeader))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestAnalyze_NewRequestSupersedesPending(t *testing.T) {
	f := newFixture(t, func(c *model.Config) { c.Analysis.Delay = 200 * time.Millisecond })

	firstReq := uploadRequest(t, "/v1/analyze/image", "image", "a.png", pngHeader)
	firstReq.Header.Set(SessionHeader, "s1")

	var wg sync.WaitGroup
	var first *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = f.do(firstReq)
	}()

	waitInFlight(t, f.sessions, "s1")

	req := uploadRequest(t, "/v1/analyze/image", "image", "b.png", pngHeader)
	req.Header.Set(SessionHeader, "s1")
	second := f.do(req)
	wg.Wait()

	if first.Code != http.StatusConflict {
		t.Errorf("expected superseded request to get 409, got %d", first.Code)
	}
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", second.Code, second.Body.String())
	}

	sess, ok := f.sessions.Get("s1")
	if !ok {
		t.Fatal("expected session to exist")
	}
	last, ok := sess.Last()
	if !ok || last.Media.Name != "b.png" {
		t.Errorf("expected last report for b.png, got %+v", last)
	}
}

func TestSession_GetAndDelete(t *testing.T) {
	f := newFixture(t, nil)

	req := uploadRequest(t, "/v1/analyze/image", "image", "a.png", pngHeader)
	req.Header.Set(SessionHeader, "s1")
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status SessionStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Report == nil || status.Media == nil || status.Media.Name != "a.png" || status.InFlight {
		t.Errorf("unexpected session status: %+v", status)
	}

	if rec := f.do(httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after reset, got %d", rec.Code)
	}
	if rec := f.do(httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for second delete, got %d", rec.Code)
	}
}

func TestSession_DeleteCancelsPending(t *testing.T) {
	f := newFixture(t, func(c *model.Config) { c.Analysis.Delay = time.Hour })

	req := uploadRequest(t, "/v1/analyze/audio", "audio", "v.wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "))
	req.Header.Set(SessionHeader, "s2")

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- f.do(req) }()

	waitInFlight(t, f.sessions, "s2")

	if rec := f.do(httptest.NewRequest(http.MethodDelete, "/v1/sessions/s2", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	select {
	case rec := <-done:
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending analysis was not cancelled by reset")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.do(uploadRequest(t, "/v1/analyze/image", "image", "a.png", pngHeader))
	f.do(uploadRequest(t, "/v1/analyze/video", "video", "a.png", pngHeader))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Sessions != 1 {
		t.Errorf("unexpected health: %+v", health)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`deepscan_analyses_total{media_type="image"`,
		`deepscan_intake_rejections_total{kind="mismatch"} 1`,
		`deepscan_http_requests_total{code="422",route="/v1/analyze"} 1`,
		`deepscan_sessions_active 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.server.Run(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func waitInFlight(t *testing.T, store *session.Store, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess, ok := store.Get(id); ok && sess.InFlight() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session %s never had an analysis in flight", id)
}
