package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/store"
)

// SongService manages songs, their versions, and artists.
type SongService struct {
	store *store.Store
}

func NewSongService(st *store.Store) *SongService {
	return &SongService{store: st}
}

// CreateSong creates a song owned by the given user.
func (s *SongService) CreateSong(ctx context.Context, userID string, req *model.CreateSongRequest) (*model.Song, error) {
	song := &model.Song{
		ID:        uuid.New().String(),
		ArtistID:  req.ArtistID,
		UserID:    userID,
		Title:     req.Title,
		Public:    req.Public,
		CreatedAt: time.Now(),
	}

	if req.ArtistID != "" {
		if _, err := s.store.Artists.Get(ctx, req.ArtistID); err != nil {
			return nil, fmt.Errorf("failed to load artist: %w", err)
		}
	}

	if err := s.store.Songs.Save(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to save song: %w", err)
	}
	return song, nil
}

// GetSong returns one song document.
func (s *SongService) GetSong(ctx context.Context, songID string) (*model.Song, error) {
	return s.store.Songs.Get(ctx, songID)
}

// GetSongVersions returns a song's versions ordered by version number.
func (s *SongService) GetSongVersions(ctx context.Context, songID string) ([]*model.SongVersion, error) {
	if _, err := s.store.Songs.Get(ctx, songID); err != nil {
		return nil, err
	}
	return s.store.Songs.ListVersions(ctx, songID)
}

// SetPrimaryVersion promotes a version to primary. The previous primary
// is demoted and the song pointer updated in the same batch.
func (s *SongService) SetPrimaryVersion(ctx context.Context, songID, versionID string) error {
	return s.store.Songs.SetPrimaryVersion(ctx, songID, versionID)
}

// CreateArtist creates an AI artist persona owned by the given user.
func (s *SongService) CreateArtist(ctx context.Context, userID string, req *model.CreateArtistRequest) (*model.Artist, error) {
	artist := &model.Artist{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      req.Name,
		Persona:   req.Persona,
		CreatedAt: time.Now(),
	}
	if err := s.store.Artists.Save(ctx, artist); err != nil {
		return nil, fmt.Errorf("failed to save artist: %w", err)
	}
	return artist, nil
}

// GetArtist returns one artist document.
func (s *SongService) GetArtist(ctx context.Context, artistID string) (*model.Artist, error) {
	return s.store.Artists.Get(ctx, artistID)
}

// Follow subscribes a user to an artist's song-ready notifications.
func (s *SongService) Follow(ctx context.Context, artistID, userID string) error {
	if _, err := s.store.Artists.Get(ctx, artistID); err != nil {
		return err
	}
	return s.store.Artists.Follow(ctx, artistID, userID)
}

// Unfollow removes the subscription.
func (s *SongService) Unfollow(ctx context.Context, artistID, userID string) error {
	return s.store.Artists.Unfollow(ctx, artistID, userID)
}
