package model

import "time"

// Notification types
const (
	NotificationTypeSongReady = "song_ready"
)

// Notification is a fire-once record keyed by (userId, songId,
// generationId). Existence of a record with that key is the idempotency
// check for delivery.
type Notification struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	UserID       string    `json:"userId"`
	SongID       string    `json:"songId"`
	GenerationID string    `json:"generationId"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Key returns the idempotency key for the notification.
func (n *Notification) Key() string {
	return NotificationKey(n.UserID, n.SongID, n.GenerationID)
}

// NotificationKey builds the (userId, songId, generationId) triple key.
func NotificationKey(userID, songID, generationID string) string {
	return userID + ":" + songID + ":" + generationID
}
