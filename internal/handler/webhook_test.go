package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/songhatch/api/internal/middleware"
	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/service"
	"github.com/songhatch/api/internal/store"
)

const testWebhookSecret = "test-secret"

func newWebhookApp(t *testing.T, secret string) (*fiber.App, *store.Store) {
	t.Helper()

	st := store.NewMemoryStore()
	notify := service.NewNotificationService(st, nil)
	reconciler := service.NewReconcileService(st, nil, nil, nil, nil, notify)
	handler := NewWebhookHandler(reconciler)

	app := fiber.New()
	app.Post("/webhooks/suno", middleware.WebhookSignature(secret), handler.Receive)
	return app, st
}

func seedWebhookGeneration(t *testing.T, st *store.Store, taskID string, conversionIDs ...string) *model.Generation {
	t.Helper()

	song := &model.Song{ID: uuid.New().String(), UserID: "user-1", Title: "Neon Nights", CreatedAt: time.Now()}
	if err := st.Songs.Save(context.Background(), song); err != nil {
		t.Fatalf("failed to seed song: %v", err)
	}
	g := &model.Generation{
		ID:                    uuid.New().String(),
		SongID:                song.ID,
		UserID:                song.UserID,
		Status:                model.GenerationStatusProcessing,
		ProviderTaskID:        taskID,
		ProviderConversionIDs: conversionIDs,
		CreatedAt:             time.Now(),
	}
	if err := st.Generations.Save(context.Background(), g); err != nil {
		t.Fatalf("failed to seed generation: %v", err)
	}
	return g
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/suno", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(middleware.SignatureHeader, signature)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, raw)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error.Code
}

func completionBody(t *testing.T, taskID, conversionID, path string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"task_id":         taskID,
		"conversion_id":   conversionID,
		"conversion_path": path,
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return body
}

func TestWebhook_MissingSignature(t *testing.T) {
	app, st := newWebhookApp(t, testWebhookSecret)
	seedWebhookGeneration(t, st, "task-1", "c1")

	body := completionBody(t, "task-1", "c1", "https://x/a.mp3")
	resp := postWebhook(t, app, body, "")
	assertStatus(t, resp, http.StatusUnauthorized)
	if code := errorCode(t, resp); code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED, got %s", code)
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	app, st := newWebhookApp(t, testWebhookSecret)
	seedWebhookGeneration(t, st, "task-1", "c1")

	body := completionBody(t, "task-1", "c1", "https://x/a.mp3")
	resp := postWebhook(t, app, body, signBody(body, "wrong-secret"))
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestWebhook_ValidSignatureProcesses(t *testing.T) {
	app, st := newWebhookApp(t, testWebhookSecret)
	g := seedWebhookGeneration(t, st, "task-1", "c1")

	body := completionBody(t, "task-1", "c1", "https://x/a.mp3")
	resp := postWebhook(t, app, body, signBody(body, testWebhookSecret))
	assertStatus(t, resp, http.StatusOK)

	got, err := st.Generations.Get(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("failed to load generation: %v", err)
	}
	if got.Status != model.GenerationStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestWebhook_NoSecretSkipsVerification(t *testing.T) {
	app, st := newWebhookApp(t, "")
	g := seedWebhookGeneration(t, st, "task-1", "c1")

	body := completionBody(t, "task-1", "c1", "https://x/a.mp3")
	resp := postWebhook(t, app, body, "")
	assertStatus(t, resp, http.StatusOK)

	got, err := st.Generations.Get(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("failed to load generation: %v", err)
	}
	if got.Status != model.GenerationStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestWebhook_MalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing task_id", map[string]any{"conversion_id": "c1", "conversion_path": "https://x/a.mp3"}},
		{"missing conversion_id", map[string]any{"task_id": "t1", "conversion_path": "https://x/a.mp3"}},
		{"completion missing conversion_path", map[string]any{"task_id": "t1", "conversion_id": "c1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newWebhookApp(t, "")
			body, err := json.Marshal(tt.body)
			if err != nil {
				t.Fatalf("failed to marshal body: %v", err)
			}
			resp := postWebhook(t, app, body, "")
			assertStatus(t, resp, http.StatusBadRequest)
			if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %s", code)
			}
		})
	}
}

func TestWebhook_UnmatchedAcknowledged(t *testing.T) {
	app, _ := newWebhookApp(t, "")

	body := completionBody(t, "task-unknown", "c-unknown", "https://x/a.mp3")
	resp := postWebhook(t, app, body, "")
	assertStatus(t, resp, http.StatusOK)
}

func TestWebhook_DuplicateAcknowledged(t *testing.T) {
	app, st := newWebhookApp(t, "")
	seedWebhookGeneration(t, st, "task-1", "c1", "c2")

	body := completionBody(t, "task-1", "c1", "https://x/a.mp3")
	assertStatus(t, postWebhook(t, app, body, ""), http.StatusOK)
	assertStatus(t, postWebhook(t, app, body, ""), http.StatusOK)
}

func TestWebhook_MissingSongIsIntegrityError(t *testing.T) {
	app, st := newWebhookApp(t, "")
	g := &model.Generation{
		ID:                    uuid.New().String(),
		SongID:                "gone",
		UserID:                "user-1",
		Status:                model.GenerationStatusProcessing,
		ProviderTaskID:        "task-1",
		ProviderConversionIDs: []string{"c1"},
		CreatedAt:             time.Now(),
	}
	if err := st.Generations.Save(context.Background(), g); err != nil {
		t.Fatalf("failed to seed generation: %v", err)
	}

	body := completionBody(t, "task-1", "c1", "https://x/a.mp3")
	resp := postWebhook(t, app, body, "")
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestWebhook_LyricsUpdate(t *testing.T) {
	app, st := newWebhookApp(t, "")
	g := seedWebhookGeneration(t, st, "task-1", "c1")

	body, err := json.Marshal(map[string]any{
		"task_id":       "task-1",
		"conversion_id": "c1",
		"subtype":       "lyrics",
		"lyrics":        "verse one",
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp := postWebhook(t, app, body, "")
	assertStatus(t, resp, http.StatusOK)

	got, err := st.Generations.Get(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("failed to load generation: %v", err)
	}
	if got.Status != model.GenerationStatusProcessing {
		t.Errorf("lyrics update must not change status, got %s", got.Status)
	}
	if got.Output.Lyrics["c1"].Text != "verse one" {
		t.Errorf("lyrics not patched: %+v", got.Output.Lyrics)
	}
}
