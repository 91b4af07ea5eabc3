package model

// Webhook payload subtypes that carry lyrics instead of audio.
const (
	WebhookSubtypeLyrics            = "lyrics"
	WebhookSubtypeLyricsTimestamped = "lyrics_timestamped"
)

// WebhookEvent is the provider's callback envelope. Two shapes share
// this one ingress point: conversion completions (carry ConversionPath)
// and lyrics updates (Subtype set, no audio URL).
type WebhookEvent struct {
	TaskID             string  `json:"task_id"`
	ConversionID       string  `json:"conversion_id"`
	ConversionPath     string  `json:"conversion_path,omitempty"`
	ConversionPathWAV  string  `json:"conversion_path_wav,omitempty"`
	ConversionDuration float64 `json:"conversion_duration,omitempty"`
	IsFlagged          bool    `json:"is_flagged"`
	Lyrics             string  `json:"lyrics,omitempty"`
	LyricsTimestamped  any     `json:"lyrics_timestamped,omitempty"`
	Title              string  `json:"title,omitempty"`
	Subtype            string  `json:"subtype,omitempty"`
}

// IsLyricsUpdate reports whether the event is a lyrics-only update.
// Lyrics updates patch generation metadata and never touch versions or
// generation status.
func (e *WebhookEvent) IsLyricsUpdate() bool {
	return e.Subtype == WebhookSubtypeLyrics || e.Subtype == WebhookSubtypeLyricsTimestamped
}

// Validate checks the required fields for the event's branch. Both
// branches require task_id and conversion_id; completions additionally
// require the audio path.
func (e *WebhookEvent) Validate() error {
	if e.TaskID == "" {
		return ErrMissingTaskID
	}
	if e.ConversionID == "" {
		return ErrMissingConversionID
	}
	if !e.IsLyricsUpdate() && e.ConversionPath == "" {
		return ErrMissingConversionPath
	}
	return nil
}

// LyricsContent extracts the lyric fields of a lyrics update.
func (e *WebhookEvent) LyricsContent() LyricsContent {
	return LyricsContent{
		Text:        e.Lyrics,
		Timestamped: e.LyricsTimestamped,
	}
}

type webhookError string

func (err webhookError) Error() string { return string(err) }

// Webhook validation errors.
const (
	ErrMissingTaskID         = webhookError("missing task_id")
	ErrMissingConversionID   = webhookError("missing conversion_id")
	ErrMissingConversionPath = webhookError("missing conversion_path")
)
