package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/songhatch/api/internal/model"
)

func TestMemoryNotifications_CreateIfAbsent(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	n := &model.Notification{
		ID:           "n1",
		UserID:       "user-1",
		SongID:       "song-1",
		GenerationID: "gen-1",
		Type:         model.NotificationTypeSongReady,
		CreatedAt:    time.Now(),
	}

	stored, created, err := st.Notifications.CreateIfAbsent(ctx, n)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if !created || stored.ID != "n1" {
		t.Errorf("first create must insert, got created=%v id=%s", created, stored.ID)
	}

	dup := &model.Notification{
		ID:           "n2",
		UserID:       "user-1",
		SongID:       "song-1",
		GenerationID: "gen-1",
		Type:         model.NotificationTypeSongReady,
		CreatedAt:    time.Now(),
	}
	stored, created, err = st.Notifications.CreateIfAbsent(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate create failed: %v", err)
	}
	if created {
		t.Error("same (user, song, generation) triple must not insert twice")
	}
	if stored.ID != "n1" {
		t.Errorf("duplicate create must return the original, got %s", stored.ID)
	}

	list, err := st.Notifications.ListByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected one stored notification, got %d", len(list))
	}
}

func TestMemoryNotifications_ListNewestFirst(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	for i, gen := range []string{"gen-1", "gen-2", "gen-3"} {
		n := &model.Notification{
			ID:           gen,
			UserID:       "user-1",
			SongID:       "song-1",
			GenerationID: gen,
			CreatedAt:    time.Now().Add(time.Duration(i) * time.Second),
		}
		if _, _, err := st.Notifications.CreateIfAbsent(ctx, n); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	list, err := st.Notifications.ListByUser(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("limit not applied, got %d", len(list))
	}
	if list[0].GenerationID != "gen-3" || list[1].GenerationID != "gen-2" {
		t.Errorf("expected newest first, got %s then %s", list[0].GenerationID, list[1].GenerationID)
	}
}

func TestMemoryGenerations_FindActiveSkipsTerminal(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	done := &model.Generation{
		ID:                    "gen-done",
		Status:                model.GenerationStatusCompleted,
		ProviderConversionIDs: []string{"c1"},
	}
	active := &model.Generation{
		ID:                    "gen-active",
		Status:                model.GenerationStatusProcessing,
		ProviderConversionIDs: []string{"c1"},
	}
	for _, g := range []*model.Generation{done, active} {
		if err := st.Generations.Save(ctx, g); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	got, err := st.Generations.FindActiveByConversionID(ctx, "c1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.ID != "gen-active" {
		t.Errorf("terminal generations must be skipped, got %s", got.ID)
	}

	if _, err := st.Generations.FindActiveByConversionID(ctx, "c-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryGenerations_FindByTaskID(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	g := &model.Generation{ID: "gen-1", ProviderTaskID: "task-1", Status: model.GenerationStatusProcessing}
	if err := st.Generations.Save(ctx, g); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	// A generation without a task id must never match the empty string.
	legacy := &model.Generation{ID: "gen-legacy", Status: model.GenerationStatusProcessing}
	if err := st.Generations.Save(ctx, legacy); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := st.Generations.FindByTaskID(ctx, "task-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.ID != "gen-1" {
		t.Errorf("wrong generation matched: %s", got.ID)
	}

	if _, err := st.Generations.FindByTaskID(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty task id must not match, got %v", err)
	}
}

func TestMemoryGenerations_GetReturnsCopy(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	g := &model.Generation{
		ID:                    "gen-1",
		Status:                model.GenerationStatusProcessing,
		ProviderConversionIDs: []string{"c1", "c2"},
		Output: model.GenerationOutput{
			Metadata: map[string]model.ConversionMetadata{"c1": {AudioURL: "https://x/a.mp3"}},
		},
	}
	if err := st.Generations.Save(ctx, g); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	first, err := st.Generations.Get(ctx, "gen-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	first.ProviderConversionIDs[0] = "mutated"
	first.Output.Metadata["c1"] = model.ConversionMetadata{AudioURL: "mutated"}

	second, err := st.Generations.Get(ctx, "gen-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if second.ProviderConversionIDs[0] != "c1" {
		t.Error("callers must not be able to mutate stored slices")
	}
	if second.Output.Metadata["c1"].AudioURL != "https://x/a.mp3" {
		t.Error("callers must not be able to mutate stored maps")
	}
}
