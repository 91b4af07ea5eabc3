package model

import "time"

// Generation status
type GenerationStatus string

const (
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// Generation represents one request to the music provider for one or
// more song output variants. It is created pending by the generate
// endpoint and mutated only by the webhook reconciler afterwards.
type Generation struct {
	ID     string `json:"id"`
	SongID string `json:"songId"`
	UserID string `json:"userId"`

	Status   GenerationStatus `json:"status"`
	Provider string           `json:"provider"`
	Prompt   string           `json:"prompt,omitempty"`

	// ProviderTaskID correlates the generation with the provider task.
	// May be empty until the provider acknowledges the request.
	ProviderTaskID string `json:"providerTaskId,omitempty"`

	// ProviderConversionIDs is the ordered list of output ids the
	// provider is expected to deliver. Empty means the count is unknown
	// (legacy generations), in which case a single completion event
	// completes the generation.
	ProviderConversionIDs []string `json:"providerConversionIds,omitempty"`

	// ProviderProcessedConversions is append-only and duplicate-free.
	// Membership here means the conversion has been folded into this
	// generation's state.
	ProviderProcessedConversions []string `json:"providerProcessedConversions,omitempty"`

	Output GenerationOutput `json:"output"`
	Error  *string          `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// GenerationOutput accumulates per-conversion results as webhook events
// arrive. AudioURL and Stems hold the last processed conversion's paths;
// per-variant data stays recoverable from Metadata.
type GenerationOutput struct {
	AudioURL string                        `json:"audioUrl,omitempty"`
	Stems    []string                      `json:"stems,omitempty"`
	Metadata map[string]ConversionMetadata `json:"metadata,omitempty"`
	Lyrics   map[string]LyricsContent      `json:"lyrics,omitempty"`
}

// ConversionMetadata is the per-variant blob merged into the generation
// as each conversion completes, later enriched by the detail fetch.
type ConversionMetadata struct {
	AudioURL   string     `json:"audioUrl,omitempty"`
	WAVURL     string     `json:"wavUrl,omitempty"`
	Duration   float64    `json:"duration,omitempty"`
	Title      string     `json:"title,omitempty"`
	Flagged    bool       `json:"flagged,omitempty"`
	Status     string     `json:"status,omitempty"`
	CreatedAt  string     `json:"createdAt,omitempty"`
	UpdatedAt  string     `json:"updatedAt,omitempty"`
	ReceivedAt time.Time  `json:"receivedAt"`
	EnrichedAt *time.Time `json:"enrichedAt,omitempty"`
}

// LyricsContent holds plain and word-timestamped lyrics for one conversion.
type LyricsContent struct {
	Text        string `json:"text,omitempty"`
	Timestamped any    `json:"timestamped,omitempty"`
}

// Processed reports whether a conversion id has already been folded in.
func (g *Generation) Processed(conversionID string) bool {
	for _, id := range g.ProviderProcessedConversions {
		if id == conversionID {
			return true
		}
	}
	return false
}

// Expects reports whether a conversion id is in the expected output list.
func (g *Generation) Expects(conversionID string) bool {
	for _, id := range g.ProviderConversionIDs {
		if id == conversionID {
			return true
		}
	}
	return false
}

// FullyProcessed reports whether every expected conversion has been
// processed. With an unknown expected list, any processed conversion
// counts as full completion.
func (g *Generation) FullyProcessed() bool {
	if len(g.ProviderConversionIDs) == 0 {
		return len(g.ProviderProcessedConversions) > 0
	}
	for _, id := range g.ProviderConversionIDs {
		if !g.Processed(id) {
			return false
		}
	}
	return true
}
