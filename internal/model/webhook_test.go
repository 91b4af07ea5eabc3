package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestWebhookEvent_Classification(t *testing.T) {
	tests := []struct {
		name     string
		subtype  string
		isLyrics bool
	}{
		{"completion has no subtype", "", false},
		{"lyrics subtype", WebhookSubtypeLyrics, true},
		{"timestamped lyrics subtype", WebhookSubtypeLyricsTimestamped, true},
		{"unknown subtype routes to completion", "mastering", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &WebhookEvent{Subtype: tt.subtype}
			if got := ev.IsLyricsUpdate(); got != tt.isLyrics {
				t.Errorf("IsLyricsUpdate() = %v, want %v", got, tt.isLyrics)
			}
		})
	}
}

func TestWebhookEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      WebhookEvent
		wantErr error
	}{
		{
			name:    "missing task id",
			ev:      WebhookEvent{ConversionID: "c1", ConversionPath: "https://x/a.mp3"},
			wantErr: ErrMissingTaskID,
		},
		{
			name:    "missing conversion id",
			ev:      WebhookEvent{TaskID: "t1", ConversionPath: "https://x/a.mp3"},
			wantErr: ErrMissingConversionID,
		},
		{
			name:    "completion without audio path",
			ev:      WebhookEvent{TaskID: "t1", ConversionID: "c1"},
			wantErr: ErrMissingConversionPath,
		},
		{
			name: "lyrics update without audio path is valid",
			ev:   WebhookEvent{TaskID: "t1", ConversionID: "c1", Subtype: WebhookSubtypeLyrics},
		},
		{
			name: "full completion",
			ev:   WebhookEvent{TaskID: "t1", ConversionID: "c1", ConversionPath: "https://x/a.mp3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWebhookEvent_WireShape(t *testing.T) {
	payload := `{
		"task_id": "t1",
		"conversion_id": "c1",
		"conversion_path": "https://x/a.mp3",
		"conversion_path_wav": "https://x/a.wav",
		"conversion_duration": 182.5,
		"is_flagged": true,
		"title": "Neon Nights"
	}`

	var ev WebhookEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if ev.TaskID != "t1" || ev.ConversionID != "c1" {
		t.Errorf("identifier fields not decoded: %+v", ev)
	}
	if ev.ConversionPathWAV != "https://x/a.wav" {
		t.Errorf("wav path not decoded: %q", ev.ConversionPathWAV)
	}
	if ev.ConversionDuration != 182.5 || !ev.IsFlagged {
		t.Errorf("numeric/flag fields not decoded: %+v", ev)
	}
}

func TestGeneration_FullyProcessed(t *testing.T) {
	g := &Generation{ProviderConversionIDs: []string{"c1", "c2"}}
	if g.FullyProcessed() {
		t.Error("no processed conversions must not be fully processed")
	}
	g.ProviderProcessedConversions = []string{"c1"}
	if g.FullyProcessed() {
		t.Error("one of two must not be fully processed")
	}
	g.ProviderProcessedConversions = append(g.ProviderProcessedConversions, "c2")
	if !g.FullyProcessed() {
		t.Error("all expected conversions processed must complete")
	}

	// Unknown expected count: any processed conversion completes.
	legacy := &Generation{ProviderProcessedConversions: []string{"c9"}}
	if !legacy.FullyProcessed() {
		t.Error("empty expected list must complete on any processed conversion")
	}
	empty := &Generation{}
	if empty.FullyProcessed() {
		t.Error("nothing processed must never be complete")
	}
}
