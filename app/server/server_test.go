package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"track-forge/app/config"
	"track-forge/app/database"
	"track-forge/app/logger"
	"track-forge/app/model"
	"track-forge/app/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

// testContext stands in for testing.T.Context (Go 1.24+): the context is
// canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

const testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireTime: 1, Issuer: "track-forge"},
		Limits: config.LimitsConfig{FreeDaily: service.DefaultFreeDailyLimit, Store: "database"},
	}
	s, err := New(cfg, db, logger.NewFromZap(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func registerAndLogin(t *testing.T, s *Server) string {
	t.Helper()
	w, resp := do(t, s, http.MethodPost, "/api/auth/register", "", gin.H{
		"username":       "lofikid",
		"password":       "hunter22",
		"wallet_address": testWallet,
		"display_name":   "Lofi Kid",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register: %d %s", w.Code, resp.Message)
	}

	w, resp = do(t, s, http.MethodPost, "/api/auth/login", "", gin.H{"username": "lofikid", "password": "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, resp.Message)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &login); err != nil || login.Token == "" {
		t.Fatalf("login payload: %s", resp.Data)
	}
	return login.Token
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	if w, _ := do(t, s, http.MethodGet, "/api/limits", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLimitsForFreshWallet(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	w, resp := do(t, s, http.MethodGet, "/api/limits", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st model.LimitStatus
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.CanGenerate || st.Remaining != 3 || st.TotalToday != 0 {
		t.Fatalf("status: %+v", st)
	}
}

func TestCreateGenerationRejectsShortPrompt(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	w, resp := do(t, s, http.MethodPost, "/api/generations", token, gin.H{"prompt": "short"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d (%s)", w.Code, resp.Message)
	}
}

func TestCreateGenerationAtCapReturns429(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	ctx := testContext(t)
	for i := 0; i < 3; i++ {
		if err := s.Services.Limiter.RecordGeneration(ctx, testWallet, "seed", false); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w, resp := do(t, s, http.MethodPost, "/api/generations", token, gin.H{"prompt": "a chill lofi beat for studying"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d (%s)", w.Code, resp.Message)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	var data struct {
		Kind      string `json:"kind"`
		ResetTime string `json:"reset_time"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.Kind != "QuotaExceeded" || data.ResetTime == "" {
		t.Fatalf("data: %s", resp.Data)
	}
}

func TestRunLookupIsScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	if err := s.Services.Runs.Create(testContext(t), &model.WorkflowRun{RunID: "someone-else", Owner: "0xother", State: model.StateDone}); err != nil {
		t.Fatal(err)
	}
	if w, _ := do(t, s, http.MethodGet, "/api/generations/someone-else", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodPost, "/api/tracks/999/mint", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("mint missing track status = %d", w.Code)
	}
}

// streamRecorder gin 的 Stream 需要 CloseNotifier
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestEventsStreamEndsWithTerminalState(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)
	ctx := testContext(t)
	runID := "live-run"

	if err := s.Services.Runs.Create(ctx, &model.WorkflowRun{RunID: runID, Owner: model.NormalizeWallet(testWallet), State: model.StatePolling}); err != nil {
		t.Fatal(err)
	}
	// 先塞满订阅缓冲，再结束运行
	for i := 0; i < 40; i++ {
		s.Services.Hub.Publish(model.ProgressEvent{RunID: runID, State: model.StatePolling, Progress: 15 + i})
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		for i := 0; i < 40; i++ {
			s.Services.Hub.Publish(model.ProgressEvent{RunID: runID, State: model.StatePolling, Progress: 20 + i})
		}
		summary := &model.WorkflowSummary{RunID: runID, Generated: 1, Uploaded: 1, Minted: 1, Outcome: model.OutcomeDone}
		_ = s.Services.Runs.Finish(ctx, runID, summary, nil)
		s.Services.Hub.Publish(model.ProgressEvent{RunID: runID, State: model.StateDone, Progress: 100})
	}()

	done := make(chan *streamRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/generations/"+runID+"/events?token="+token, nil)
		w := newStreamRecorder()
		s.Handler().ServeHTTP(w, req)
		done <- w
	}()

	select {
	case w := <-done:
		body := w.Body.String()
		if !strings.Contains(body, `"state":"done"`) {
			t.Fatalf("stream ended without terminal state:\n%s", body)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("event stream did not end after the run finished")
	}
}

func TestShowcaseIsPublicAndMarksOwnTracks(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)
	ctx := testContext(t)

	seed := []model.GeneratedTrack{
		{SourceID: "mine", Owner: model.NormalizeWallet(testWallet), Title: "Mine", Minted: true, TokenID: "1", TxHash: "0x1"},
		{SourceID: "theirs", Owner: "0xother", Title: "Theirs", Minted: true, TokenID: "2", TxHash: "0x2"},
		{SourceID: "draft", Owner: "0xother", Title: "Draft"},
	}
	for i := range seed {
		if err := s.Services.Tracks.Save(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	type item struct {
		Title string `json:"title"`
		Mine  bool   `json:"mine"`
	}
	list := func(token string) map[string]bool {
		t.Helper()
		w, resp := do(t, s, http.MethodGet, "/api/showcase", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var page struct {
			Items []item `json:"items"`
			Total int64  `json:"total"`
		}
		if err := json.Unmarshal(resp.Data, &page); err != nil {
			t.Fatal(err)
		}
		if page.Total != 2 {
			t.Fatalf("total = %d, want only minted tracks", page.Total)
		}
		out := map[string]bool{}
		for _, it := range page.Items {
			out[it.Title] = it.Mine
		}
		return out
	}

	if got := list(""); got["Mine"] || got["Theirs"] {
		t.Fatalf("anonymous listing marked ownership: %v", got)
	}
	if got := list(token); !got["Mine"] || got["Theirs"] {
		t.Fatalf("authenticated listing = %v", got)
	}
}
