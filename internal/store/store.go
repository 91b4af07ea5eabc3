package store

import (
	"context"
	"errors"
	"sort"

	"github.com/songhatch/api/internal/model"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// GenerationStore persists Generation documents and the lookup indexes
// the webhook matcher needs.
type GenerationStore interface {
	Get(ctx context.Context, id string) (*model.Generation, error)
	Save(ctx context.Context, g *model.Generation) error

	// FindByTaskID resolves a generation by its provider task id.
	FindByTaskID(ctx context.Context, taskID string) (*model.Generation, error)

	// FindActiveByConversionID scans pending/processing generations for
	// one whose expected conversion list contains the given id.
	FindActiveByConversionID(ctx context.Context, conversionID string) (*model.Generation, error)
}

// SongStore persists Song and SongVersion documents.
type SongStore interface {
	Get(ctx context.Context, id string) (*model.Song, error)
	Save(ctx context.Context, s *model.Song) error

	ListVersions(ctx context.Context, songID string) ([]*model.SongVersion, error)
	SaveVersion(ctx context.Context, v *model.SongVersion) error

	// SetPrimaryVersion flips isPrimary across the song's versions and
	// updates the song's current-version pointer in one batch.
	SetPrimaryVersion(ctx context.Context, songID, versionID string) error
}

// NotificationStore persists Notification documents keyed by the
// (userId, songId, generationId) triple.
type NotificationStore interface {
	// CreateIfAbsent writes the notification unless one with the same
	// key exists; it returns the stored record and whether it was
	// created by this call.
	CreateIfAbsent(ctx context.Context, n *model.Notification) (*model.Notification, bool, error)

	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}

// ArtistStore persists Artist documents and their follower sets.
type ArtistStore interface {
	Get(ctx context.Context, id string) (*model.Artist, error)
	Save(ctx context.Context, a *model.Artist) error

	Follow(ctx context.Context, artistID, userID string) error
	Unfollow(ctx context.Context, artistID, userID string) error
	Followers(ctx context.Context, artistID string) ([]string, error)
}

// sortVersions orders versions by version number ascending.
func sortVersions(versions []*model.SongVersion) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber < versions[j].VersionNumber
	})
}

// Store bundles the collection stores behind one dependency.
type Store struct {
	Generations   GenerationStore
	Songs         SongStore
	Notifications NotificationStore
	Artists       ArtistStore
}
