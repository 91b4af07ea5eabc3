package model

// WebSocket message types
const (
	WSMessageTypeStatus   = "status"
	WSMessageTypeComplete = "complete"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage is pushed when a generation's status or processed
// conversion set changes.
type WSStatusMessage struct {
	Type         string           `json:"type"`
	GenerationID string           `json:"generationId"`
	Status       GenerationStatus `json:"status"`
	Processed    int              `json:"processed"`
	Expected     int              `json:"expected"`
}

// WSCompleteMessage is pushed once when a generation completes.
type WSCompleteMessage struct {
	Type         string `json:"type"`
	GenerationID string `json:"generationId"`
	SongID       string `json:"songId"`
	AudioURL     string `json:"audioUrl,omitempty"`
}
