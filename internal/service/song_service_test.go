package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/store"
)

func seedVersion(t *testing.T, st *store.Store, songID string, number int, primary bool) *model.SongVersion {
	t.Helper()
	v := &model.SongVersion{
		ID:            uuid.New().String(),
		SongID:        songID,
		VersionNumber: number,
		AudioURL:      "https://x/v.mp3",
		IsPrimary:     primary,
		CreatedAt:     time.Now(),
	}
	if err := st.Songs.SaveVersion(context.Background(), v); err != nil {
		t.Fatalf("failed to seed version: %v", err)
	}
	return v
}

func TestSetPrimaryVersion_FlipsExactlyOne(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewSongService(st)
	ctx := context.Background()

	song, err := svc.CreateSong(ctx, "user-1", &model.CreateSongRequest{Title: "Midnight Run"})
	if err != nil {
		t.Fatalf("failed to create song: %v", err)
	}
	seedVersion(t, st, song.ID, 1, true)
	v2 := seedVersion(t, st, song.ID, 2, false)

	if err := svc.SetPrimaryVersion(ctx, song.ID, v2.ID); err != nil {
		t.Fatalf("failed to set primary: %v", err)
	}

	versions, err := svc.GetSongVersions(ctx, song.ID)
	if err != nil {
		t.Fatalf("failed to list versions: %v", err)
	}
	for _, v := range versions {
		want := v.ID == v2.ID
		if v.IsPrimary != want {
			t.Errorf("version %d primary=%v, want %v", v.VersionNumber, v.IsPrimary, want)
		}
	}

	got, err := svc.GetSong(ctx, song.ID)
	if err != nil {
		t.Fatalf("failed to load song: %v", err)
	}
	if got.CurrentVersionID != v2.ID {
		t.Errorf("song pointer not updated, got %s want %s", got.CurrentVersionID, v2.ID)
	}
}

func TestSetPrimaryVersion_UnknownVersion(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewSongService(st)
	ctx := context.Background()

	song, err := svc.CreateSong(ctx, "user-1", &model.CreateSongRequest{Title: "Midnight Run"})
	if err != nil {
		t.Fatalf("failed to create song: %v", err)
	}

	err = svc.SetPrimaryVersion(ctx, song.ID, "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSongVersions_OrderedByNumber(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewSongService(st)
	ctx := context.Background()

	song, err := svc.CreateSong(ctx, "user-1", &model.CreateSongRequest{Title: "Midnight Run"})
	if err != nil {
		t.Fatalf("failed to create song: %v", err)
	}
	seedVersion(t, st, song.ID, 3, false)
	seedVersion(t, st, song.ID, 1, true)
	seedVersion(t, st, song.ID, 2, false)

	versions, err := svc.GetSongVersions(ctx, song.ID)
	if err != nil {
		t.Fatalf("failed to list versions: %v", err)
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Errorf("position %d has version number %d", i, v.VersionNumber)
		}
	}
}

func TestCreateSong_UnknownArtistRejected(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewSongService(st)

	_, err := svc.CreateSong(context.Background(), "user-1", &model.CreateSongRequest{
		Title:    "Midnight Run",
		ArtistID: "missing",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown artist")
	}
}

func TestFollow_UnknownArtistRejected(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewSongService(st)

	if err := svc.Follow(context.Background(), "missing", "user-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
