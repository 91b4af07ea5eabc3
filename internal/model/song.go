package model

import "time"

// Song is a user-owned creative work. It points at its canonical
// rendering through CurrentVersionID and carries denormalized album art
// filled in by enrichment (first write wins across all generations).
type Song struct {
	ID       string `json:"id"`
	ArtistID string `json:"artistId,omitempty"`
	UserID   string `json:"userId"`
	Title    string `json:"title"`

	CurrentVersionID    string `json:"currentVersionId,omitempty"`
	AlbumCoverPath      string `json:"albumCoverPath,omitempty"`
	AlbumCoverThumbnail string `json:"albumCoverThumbnail,omitempty"`

	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"createdAt"`
}

// SongVersion is one concrete audio rendering of a Song, corresponding
// 1:1 with a completed provider conversion.
type SongVersion struct {
	ID            string `json:"id"`
	SongID        string `json:"songId"`
	VersionNumber int    `json:"versionNumber"`
	Title         string `json:"title,omitempty"`
	AudioURL      string `json:"audioUrl"`

	// ProviderOutputID is the provider's conversion id. It is never
	// reused within one song's version set; a reused id signals a
	// duplicate webhook delivery.
	ProviderOutputID string `json:"providerOutputId,omitempty"`

	IsPrimary       bool      `json:"isPrimary"`
	ParentVersionID string    `json:"parentVersionId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	CreatedBy       string    `json:"createdBy,omitempty"`
}

// Artist is an AI artist persona owned by a user. Followers are kept in
// the store, not on the document.
type Artist struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Persona   string    `json:"persona,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateSongRequest is the payload for POST /api/songs.
type CreateSongRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=200"`
	ArtistID string `json:"artistId,omitempty"`
	Public   bool   `json:"public"`
}

// CreateArtistRequest is the payload for POST /api/artists.
type CreateArtistRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=100"`
	Persona string `json:"persona,omitempty" validate:"max=2000"`
}

// StartGenerationRequest is the payload for POST /api/songs/:songId/generate.
type StartGenerationRequest struct {
	Prompt       string `json:"prompt" validate:"required,min=1,max=3000"`
	Style        string `json:"style,omitempty" validate:"max=200"`
	Instrumental bool   `json:"instrumental"`
}
