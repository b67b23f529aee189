package sessions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sreyaes/DubMaster/auth"
	"github.com/Sreyaes/DubMaster/media"
	"github.com/Sreyaes/DubMaster/models"
	"github.com/Sreyaes/DubMaster/recording"
	"github.com/Sreyaes/DubMaster/studio"
	"github.com/Sreyaes/DubMaster/tasks"
	"github.com/gin-gonic/gin"
)

// stubGateway answers every capability instantly with canned results.
type stubGateway struct{}

func (stubGateway) GenerateScript(ctx context.Context, prompt, language string) (*models.Scene, error) {
	return &models.Scene{
		ID:       "scene-1",
		Title:    "A Duel at Dawn",
		Context:  "Mist, pistols, regret.",
		Dialogue: []models.DialogueLine{{Character: "Ash", Text: "Fight me.", Emotion: "tense"}},
		Language: language,
	}, nil
}

func (stubGateway) GenerateConceptImage(ctx context.Context, title, sceneContext string) (string, error) {
	return "", nil
}

func (stubGateway) GenerateSceneVideo(ctx context.Context, prompt, seedImageURL string) (string, error) {
	return "", nil
}

func (stubGateway) GenerateLipSyncVideo(ctx context.Context, baseVideoURL, transcript, sceneContext string) (string, error) {
	return "", nil
}

func (stubGateway) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) string {
	return "fight me"
}

func (stubGateway) SynthesizeReferenceAudio(ctx context.Context, text, voiceID string) ([]byte, error) {
	return []byte{1, 2, 3, 4}, nil
}

func (stubGateway) RequestDirectorFeedback(ctx context.Context, scene *models.Scene, duration float64, transcript string) string {
	return "Bravo."
}

// syncQueue executes accepted commands inline instead of round-tripping
// through Redis, making HTTP tests deterministic.
type syncQueue struct {
	o *studio.Orchestrator
}

func (q *syncQueue) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	switch task := payload.(type) {
	case tasks.ProductionTaskPayload:
		q.o.RunProduction(ctx, task.Prompt, task.Language, task.IncludeVideo)
	case tasks.AnalysisTaskPayload:
		q.o.RunAnalysis(ctx)
	case tasks.LipSyncTaskPayload:
		q.o.RunLipSync(ctx)
	}
	return nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	registry := studio.NewRegistry(time.Hour, func(sessionID string) *studio.Orchestrator {
		q := &syncQueue{}
		o := studio.NewOrchestrator(sessionID, studio.NewStore(), stubGateway{}, recording.NewSession(recording.NewUplink()), q, nil)
		q.o = o
		return o
	})

	mediaStore := media.NewStore()
	handler := NewHandler(registry, mediaStore)

	router := gin.New()
	router.POST("/sessions", handler.CreateSession)
	router.GET("/media/:id", handler.ServeMedia)

	protected := router.Group("/sessions")
	protected.Use(auth.Middleware(registry))
	{
		protected.GET("/state", handler.GetState)
		protected.POST("/production", handler.SubmitProduction)
		protected.POST("/recording/start", handler.StartRecording)
		protected.POST("/recording/chunks", handler.UploadChunk)
		protected.POST("/recording/stop", handler.StopRecording)
		protected.POST("/lipsync", handler.RequestLipSync)
		protected.POST("/video-variant", handler.ToggleVideoVariant)
		protected.GET("/performance/audio", handler.PerformanceAudio)
		protected.POST("/reference-audio", handler.ReferenceAudio)
	}
	return router
}

func createSession(t *testing.T, router *gin.Engine) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sessions", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("create session: status %d", w.Code)
	}
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			return cookie
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func do(router *gin.Engine, cookie *http.Cookie, method, path, body, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	router.ServeHTTP(w, req)
	return w
}

func stateOf(t *testing.T, router *gin.Engine, cookie *http.Cookie) studio.Snapshot {
	t.Helper()
	w := do(router, cookie, "GET", "/sessions/state", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get state: status %d: %s", w.Code, w.Body)
	}
	var snap studio.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return snap
}

func TestStateRequiresSessionCookie(t *testing.T) {
	router := newTestRouter(t)
	w := do(router, nil, "GET", "/sessions/state", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProductionFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	cookie := createSession(t, router)

	w := do(router, cookie, "POST", "/sessions/production",
		`{"prompt": "A duel at dawn", "language": "en", "include_video": false}`, "application/json")
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit: status %d: %s", w.Code, w.Body)
	}

	snap := stateOf(t, router, cookie)
	if snap.Phase != studio.PhaseReady {
		t.Fatalf("phase = %s, want ready", snap.Phase)
	}
	if snap.Scene == nil || snap.Scene.Title == "" {
		t.Fatal("scene not populated")
	}
	if snap.Scene.VideoURL != "" {
		t.Fatal("video present although not requested")
	}
}

func TestWhitespacePromptRefused(t *testing.T) {
	router := newTestRouter(t)
	cookie := createSession(t, router)

	w := do(router, cookie, "POST", "/sessions/production",
		`{"prompt": "   "}`, "application/json")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if snap := stateOf(t, router, cookie); snap.Phase != studio.PhaseIdle {
		t.Fatalf("phase = %s, want idle", snap.Phase)
	}
}

func TestUnsupportedLanguageRejected(t *testing.T) {
	router := newTestRouter(t)
	cookie := createSession(t, router)

	w := do(router, cookie, "POST", "/sessions/production",
		`{"prompt": "A duel", "language": "xx"}`, "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRecordingFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	cookie := createSession(t, router)

	do(router, cookie, "POST", "/sessions/production", `{"prompt": "A duel at dawn"}`, "application/json")

	if w := do(router, cookie, "POST", "/sessions/recording/start", "", ""); w.Code != http.StatusOK {
		t.Fatalf("start: status %d: %s", w.Code, w.Body)
	}
	if w := do(router, cookie, "POST", "/sessions/recording/chunks", "audio-bytes", "audio/webm"); w.Code != http.StatusNoContent {
		t.Fatalf("chunk: status %d", w.Code)
	}
	if w := do(router, cookie, "POST", "/sessions/recording/stop", "", ""); w.Code != http.StatusAccepted {
		t.Fatalf("stop: status %d: %s", w.Code, w.Body)
	}

	snap := stateOf(t, router, cookie)
	if snap.Performance == nil || snap.Performance.Transcription != "fight me" {
		t.Fatalf("performance = %+v", snap.Performance)
	}
	if snap.Feedback == "" {
		t.Fatal("no feedback after analysis")
	}

	w := do(router, cookie, "GET", "/sessions/performance/audio", "", "")
	if w.Code != http.StatusOK || w.Body.String() != "audio-bytes" {
		t.Fatalf("audio playback: status %d body %q", w.Code, w.Body)
	}
}

func TestChunkWithoutRecordingRejected(t *testing.T) {
	router := newTestRouter(t)
	cookie := createSession(t, router)

	w := do(router, cookie, "POST", "/sessions/recording/chunks", "stray", "audio/webm")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestToggleWithoutSyncedVideoRefused(t *testing.T) {
	router := newTestRouter(t)
	cookie := createSession(t, router)

	w := do(router, cookie, "POST", "/sessions/video-variant", `{"synced": true}`, "application/json")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestReferenceAudioReturnsPCM(t *testing.T) {
	router := newTestRouter(t)
	cookie := createSession(t, router)

	w := do(router, cookie, "POST", "/sessions/reference-audio",
		`{"text": "Fight me.", "voice": "onyx"}`, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if got := w.Header().Get("X-Sample-Rate"); got != "24000" {
		t.Fatalf("sample rate header = %q, want 24000", got)
	}
	if w.Body.Len() == 0 {
		t.Fatal("empty PCM body")
	}
}

func TestServeMediaNotFound(t *testing.T) {
	router := newTestRouter(t)
	w := do(router, nil, "GET", "/media/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
