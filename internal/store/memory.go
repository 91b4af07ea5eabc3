package store

import (
	"context"
	"sync"

	"github.com/songhatch/api/internal/model"
)

// NewMemoryStore returns a Store backed by in-process maps. It is used
// by tests and as the dev fallback when Redis is not available.
func NewMemoryStore() *Store {
	return &Store{
		Generations: &memoryGenerationStore{generations: make(map[string]*model.Generation)},
		Songs: &memorySongStore{
			songs:    make(map[string]*model.Song),
			versions: make(map[string]map[string]*model.SongVersion),
		},
		Notifications: &memoryNotificationStore{
			byKey:  make(map[string]*model.Notification),
			byUser: make(map[string][]string),
		},
		Artists: &memoryArtistStore{
			artists:   make(map[string]*model.Artist),
			followers: make(map[string]map[string]bool),
		},
	}
}

type memoryGenerationStore struct {
	mu          sync.RWMutex
	generations map[string]*model.Generation
}

func (s *memoryGenerationStore) Get(ctx context.Context, id string) (*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.generations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGeneration(g), nil
}

func (s *memoryGenerationStore) Save(ctx context.Context, g *model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[g.ID] = copyGeneration(g)
	return nil
}

func (s *memoryGenerationStore) FindByTaskID(ctx context.Context, taskID string) (*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.generations {
		if g.ProviderTaskID != "" && g.ProviderTaskID == taskID {
			return copyGeneration(g), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryGenerationStore) FindActiveByConversionID(ctx context.Context, conversionID string) (*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.generations {
		if g.Status.IsTerminal() {
			continue
		}
		if g.Expects(conversionID) {
			return copyGeneration(g), nil
		}
	}
	return nil, ErrNotFound
}

type memorySongStore struct {
	mu       sync.RWMutex
	songs    map[string]*model.Song
	versions map[string]map[string]*model.SongVersion // songID -> versionID -> version
}

func (s *memorySongStore) Get(ctx context.Context, id string) (*model.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	song, ok := s.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *song
	return &cp, nil
}

func (s *memorySongStore) Save(ctx context.Context, song *model.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *song
	s.songs[song.ID] = &cp
	return nil
}

func (s *memorySongStore) ListVersions(ctx context.Context, songID string) ([]*model.SongVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := make([]*model.SongVersion, 0, len(s.versions[songID]))
	for _, v := range s.versions[songID] {
		cp := *v
		versions = append(versions, &cp)
	}
	sortVersions(versions)
	return versions, nil
}

func (s *memorySongStore) SaveVersion(ctx context.Context, v *model.SongVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[v.SongID] == nil {
		s.versions[v.SongID] = make(map[string]*model.SongVersion)
	}
	cp := *v
	s.versions[v.SongID][v.ID] = &cp
	return nil
}

func (s *memorySongStore) SetPrimaryVersion(ctx context.Context, songID, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, ok := s.songs[songID]
	if !ok {
		return ErrNotFound
	}
	versions := s.versions[songID]
	if _, ok := versions[versionID]; !ok {
		return ErrNotFound
	}

	for _, v := range versions {
		v.IsPrimary = v.ID == versionID
	}
	song.CurrentVersionID = versionID
	return nil
}

type memoryNotificationStore struct {
	mu     sync.Mutex
	byKey  map[string]*model.Notification
	byUser map[string][]string // userID -> keys, newest first
}

func (s *memoryNotificationStore) CreateIfAbsent(ctx context.Context, n *model.Notification) (*model.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := n.Key()
	if existing, ok := s.byKey[key]; ok {
		cp := *existing
		return &cp, false, nil
	}

	cp := *n
	s.byKey[key] = &cp
	s.byUser[n.UserID] = append([]string{key}, s.byUser[n.UserID]...)
	return n, true, nil
}

func (s *memoryNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	keys := s.byUser[userID]
	if len(keys) > limit {
		keys = keys[:limit]
	}

	notifications := make([]*model.Notification, 0, len(keys))
	for _, key := range keys {
		if n, ok := s.byKey[key]; ok {
			cp := *n
			notifications = append(notifications, &cp)
		}
	}
	return notifications, nil
}

type memoryArtistStore struct {
	mu        sync.RWMutex
	artists   map[string]*model.Artist
	followers map[string]map[string]bool
}

func (s *memoryArtistStore) Get(ctx context.Context, id string) (*model.Artist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artists[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryArtistStore) Save(ctx context.Context, a *model.Artist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.artists[a.ID] = &cp
	return nil
}

func (s *memoryArtistStore) Follow(ctx context.Context, artistID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.followers[artistID] == nil {
		s.followers[artistID] = make(map[string]bool)
	}
	s.followers[artistID][userID] = true
	return nil
}

func (s *memoryArtistStore) Unfollow(ctx context.Context, artistID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.followers[artistID], userID)
	return nil
}

func (s *memoryArtistStore) Followers(ctx context.Context, artistID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	followers := make([]string, 0, len(s.followers[artistID]))
	for userID := range s.followers[artistID] {
		followers = append(followers, userID)
	}
	return followers, nil
}

// copyGeneration deep-copies the slices and maps mutated by the
// reconciler so callers cannot alias store state.
func copyGeneration(g *model.Generation) *model.Generation {
	cp := *g
	cp.ProviderConversionIDs = append([]string(nil), g.ProviderConversionIDs...)
	cp.ProviderProcessedConversions = append([]string(nil), g.ProviderProcessedConversions...)
	if g.Output.Stems != nil {
		cp.Output.Stems = append([]string(nil), g.Output.Stems...)
	}
	if g.Output.Metadata != nil {
		cp.Output.Metadata = make(map[string]model.ConversionMetadata, len(g.Output.Metadata))
		for k, v := range g.Output.Metadata {
			cp.Output.Metadata[k] = v
		}
	}
	if g.Output.Lyrics != nil {
		cp.Output.Lyrics = make(map[string]model.LyricsContent, len(g.Output.Lyrics))
		for k, v := range g.Output.Lyrics {
			cp.Output.Lyrics[k] = v
		}
	}
	return &cp
}
