package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/songhatch/api/internal/client"
	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/store"
	"github.com/songhatch/api/internal/websocket"
)

const TaskTypeEnrich = "generation:enrich"

// ErrSongMissing indicates a matched generation whose parent song no
// longer exists. This is a data-integrity problem, not a transient one.
var ErrSongMissing = errors.New("song not found for generation")

// EnrichTaskPayload is the payload of a generation:enrich task.
type EnrichTaskPayload struct {
	GenerationID string `json:"generationId"`
	SongID       string `json:"songId"`
	ConversionID string `json:"conversionId"`
}

// ReconcileOutcome reports what a webhook delivery did.
type ReconcileOutcome struct {
	Matched      bool
	Duplicate    bool
	GenerationID string
	VersionID    string
	Completed    bool
}

// ReconcileService folds provider webhook events onto the
// generation/songVersion state machine. Deliveries are retried,
// duplicated, and unordered, so every step re-checks current state and
// all writes to one generation are serialized through a per-generation
// lock.
type ReconcileService struct {
	store        *store.Store
	provider     client.MusicGenerator
	storage      client.StorageClient
	asynqClient  *asynq.Client
	hub          *websocket.Hub
	notification *NotificationService

	locks generationLocks
}

func NewReconcileService(
	st *store.Store,
	provider client.MusicGenerator,
	storage client.StorageClient,
	asynqClient *asynq.Client,
	hub *websocket.Hub,
	notification *NotificationService,
) *ReconcileService {
	return &ReconcileService{
		store:        st,
		provider:     provider,
		storage:      storage,
		asynqClient:  asynqClient,
		hub:          hub,
		notification: notification,
	}
}

// HandleConversionComplete processes a conversion-completion event: it
// resolves the generation, creates the song version unless the event is
// a duplicate, folds the conversion into the generation's state, and
// fires completion effects when the last expected conversion arrives.
func (s *ReconcileService) HandleConversionComplete(ctx context.Context, ev *model.WebhookEvent) (*ReconcileOutcome, error) {
	matched, err := s.matchCompletion(ctx, ev)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		// Unknown or superseded generation. Acknowledge so the provider
		// stops retrying.
		log.Printf("[Webhook] unmatched completion task=%s conversion=%s", ev.TaskID, ev.ConversionID)
		return &ReconcileOutcome{Matched: false}, nil
	}

	outcome, g, song, err := s.applyCompletion(ctx, matched.ID, ev)
	if err != nil {
		return nil, err
	}
	if outcome.Duplicate {
		return outcome, nil
	}

	// Effects run after the generation lock is released: the inline
	// enrichment path re-acquires the same lock.
	s.broadcastStatus(g)
	if outcome.Completed {
		s.onCompleted(ctx, g, song)
	}
	s.scheduleEnrichment(ctx, g.ID, song.ID, ev.ConversionID)

	return outcome, nil
}

// applyCompletion runs the locked state transition for a completion
// event: idempotency guards, version materialization, and the reducer.
func (s *ReconcileService) applyCompletion(ctx context.Context, generationID string, ev *model.WebhookEvent) (*ReconcileOutcome, *model.Generation, *model.Song, error) {
	unlock := s.locks.lock(generationID)
	defer unlock()

	// Re-read under the lock; the matched copy may be stale.
	g, err := s.store.Generations.Get(ctx, generationID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to reload generation: %w", err)
	}

	outcome := &ReconcileOutcome{Matched: true, GenerationID: g.ID}

	// Terminal generations never change; a late or repeated delivery is
	// acknowledged without mutation.
	if g.Status.IsTerminal() {
		outcome.Duplicate = true
		return outcome, g, nil, nil
	}
	if g.Processed(ev.ConversionID) {
		outcome.Duplicate = true
		return outcome, g, nil, nil
	}

	song, err := s.store.Songs.Get(ctx, g.SongID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("%w: generation=%s song=%s", ErrSongMissing, g.ID, g.SongID)
		}
		return nil, nil, nil, err
	}

	versions, err := s.store.Songs.ListVersions(ctx, song.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list versions: %w", err)
	}

	// Version-level idempotency: the version may already exist if a
	// previous delivery crashed between the version write and the
	// generation update. Skip creation but still repair the processed
	// list below.
	if existing := versionByOutputID(versions, ev.ConversionID); existing != nil {
		log.Printf("[Webhook] version %s already exists for conversion %s, repairing generation %s",
			existing.ID, ev.ConversionID, g.ID)
	} else {
		version, err := s.materializeVersion(ctx, g, song, versions, ev)
		if err != nil {
			return nil, nil, nil, err
		}
		outcome.VersionID = version.ID
	}

	completed, err := s.reduce(ctx, g, ev)
	if err != nil {
		return nil, nil, nil, err
	}
	outcome.Completed = completed

	return outcome, g, song, nil
}

// HandleLyricsUpdate patches lyric content into the generation's
// metadata. It never creates versions and never changes status; an
// unmatched update is dropped with an acknowledged no-op.
func (s *ReconcileService) HandleLyricsUpdate(ctx context.Context, ev *model.WebhookEvent) (*ReconcileOutcome, error) {
	g, err := s.matchLyrics(ctx, ev)
	if err != nil {
		return nil, err
	}
	if g == nil {
		log.Printf("[Webhook] unmatched lyrics update task=%s conversion=%s", ev.TaskID, ev.ConversionID)
		return &ReconcileOutcome{Matched: false}, nil
	}

	unlock := s.locks.lock(g.ID)
	defer unlock()

	g, err = s.store.Generations.Get(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload generation: %w", err)
	}

	outcome := &ReconcileOutcome{Matched: true, GenerationID: g.ID}
	if g.Status.IsTerminal() {
		outcome.Duplicate = true
		return outcome, nil
	}

	if g.Output.Lyrics == nil {
		g.Output.Lyrics = make(map[string]model.LyricsContent)
	}
	g.Output.Lyrics[ev.ConversionID] = ev.LyricsContent()

	if err := s.store.Generations.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to save generation: %w", err)
	}
	return outcome, nil
}

// ApplyEnrichment fetches provider detail metadata for one conversion
// and merges it into the generation and, first-write-wins, the song's
// album art. All failures are logged and swallowed: enrichment is
// additive, never load-bearing.
func (s *ReconcileService) ApplyEnrichment(ctx context.Context, generationID, songID, conversionID string) error {
	if s.provider == nil || !s.provider.IsConfigured() {
		return nil
	}

	details, err := s.provider.GetConversionDetails(ctx, conversionID)
	if err != nil {
		log.Printf("[Enrich] detail fetch failed for conversion %s: %v", conversionID, err)
		return nil
	}
	if !details.Success {
		log.Printf("[Enrich] provider reported failure for conversion %s", conversionID)
		return nil
	}
	conv := details.Conversion

	unlock := s.locks.lock(generationID)
	defer unlock()

	g, err := s.store.Generations.Get(ctx, generationID)
	if err != nil {
		log.Printf("[Enrich] generation %s not found: %v", generationID, err)
		return nil
	}

	meta := g.Output.Metadata[conversionID]
	if conv.Duration > 0 {
		meta.Duration = conv.Duration
	}
	if conv.Status != "" {
		meta.Status = conv.Status
	}
	if conv.CreatedAt != "" {
		meta.CreatedAt = conv.CreatedAt
	}
	if conv.UpdatedAt != "" {
		meta.UpdatedAt = conv.UpdatedAt
	}
	now := time.Now()
	meta.EnrichedAt = &now
	if g.Output.Metadata == nil {
		g.Output.Metadata = make(map[string]model.ConversionMetadata)
	}
	g.Output.Metadata[conversionID] = meta

	if conv.Lyrics != "" || conv.LyricsTimestamped != nil {
		if g.Output.Lyrics == nil {
			g.Output.Lyrics = make(map[string]model.LyricsContent)
		}
		lyrics := g.Output.Lyrics[conversionID]
		if conv.Lyrics != "" {
			lyrics.Text = conv.Lyrics
		}
		if conv.LyricsTimestamped != nil {
			lyrics.Timestamped = conv.LyricsTimestamped
		}
		g.Output.Lyrics[conversionID] = lyrics
	}

	if err := s.store.Generations.Save(ctx, g); err != nil {
		log.Printf("[Enrich] failed to save generation %s: %v", generationID, err)
		return nil
	}

	s.applyAlbumArt(ctx, songID, conversionID, &conv)
	return nil
}

// applyAlbumArt sets the song's album art from enrichment data. All of
// a song's variants share one cover, so the first writer wins.
func (s *ReconcileService) applyAlbumArt(ctx context.Context, songID, conversionID string, conv *client.Conversion) {
	if conv.AlbumCoverPath == "" {
		return
	}

	song, err := s.store.Songs.Get(ctx, songID)
	if err != nil {
		log.Printf("[Enrich] song %s not found: %v", songID, err)
		return
	}
	if song.AlbumCoverPath != "" {
		return
	}

	coverPath := conv.AlbumCoverPath
	thumbnail := conv.AlbumCoverThumbnail
	if s.storage != nil {
		key := fmt.Sprintf("covers/%s/%s.jpg", songID, conversionID)
		if mirrored, err := s.storage.MirrorURL(ctx, key, conv.AlbumCoverPath); err != nil {
			log.Printf("[Enrich] cover mirror failed for song %s: %v", songID, err)
		} else {
			coverPath = mirrored
		}
	}

	song.AlbumCoverPath = coverPath
	song.AlbumCoverThumbnail = thumbnail
	if err := s.store.Songs.Save(ctx, song); err != nil {
		log.Printf("[Enrich] failed to save song %s: %v", songID, err)
	}
}

// matchCompletion resolves a completion event to a generation: exact
// task-id match first, then a scan of active generations by expected
// conversion id. A nil result means no match.
func (s *ReconcileService) matchCompletion(ctx context.Context, ev *model.WebhookEvent) (*model.Generation, error) {
	g, err := s.store.Generations.FindByTaskID(ctx, ev.TaskID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	g, err = s.store.Generations.FindActiveByConversionID(ctx, ev.ConversionID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

// matchLyrics resolves a lyrics update: conversion-id scan first, task
// id as fallback. Lyrics are enrichment, so no match just drops the
// update.
func (s *ReconcileService) matchLyrics(ctx context.Context, ev *model.WebhookEvent) (*model.Generation, error) {
	g, err := s.store.Generations.FindActiveByConversionID(ctx, ev.ConversionID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	g, err = s.store.Generations.FindByTaskID(ctx, ev.TaskID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

// materializeVersion creates the SongVersion for a completed conversion.
// The first version ever created for a song is primary; later ones stay
// secondary until explicitly promoted.
func (s *ReconcileService) materializeVersion(ctx context.Context, g *model.Generation, song *model.Song, existing []*model.SongVersion, ev *model.WebhookEvent) (*model.SongVersion, error) {
	nextNumber := 1
	for _, v := range existing {
		if v.VersionNumber >= nextNumber {
			nextNumber = v.VersionNumber + 1
		}
	}

	title := ev.Title
	if title == "" {
		title = song.Title
	}

	version := &model.SongVersion{
		ID:               uuid.New().String(),
		SongID:           song.ID,
		VersionNumber:    nextNumber,
		Title:            title,
		AudioURL:         ev.ConversionPath,
		ProviderOutputID: ev.ConversionID,
		IsPrimary:        len(existing) == 0,
		ParentVersionID:  song.CurrentVersionID,
		CreatedAt:        time.Now(),
		CreatedBy:        g.UserID,
	}

	if err := s.store.Songs.SaveVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	if version.IsPrimary {
		song.CurrentVersionID = version.ID
		if err := s.store.Songs.Save(ctx, song); err != nil {
			return nil, fmt.Errorf("failed to update song pointer: %w", err)
		}
	}

	log.Printf("[Webhook] created version %d (%s) for song %s, conversion %s",
		version.VersionNumber, version.ID, song.ID, ev.ConversionID)
	return version, nil
}

// reduce folds the completion event into the generation: marks the
// conversion processed, merges its metadata blob, and decides whether
// the generation is now fully processed. Returns true when this call
// transitioned the generation to completed.
func (s *ReconcileService) reduce(ctx context.Context, g *model.Generation, ev *model.WebhookEvent) (bool, error) {
	// A task-id match can deliver a conversion the expected list never
	// mentioned. Record it as expected too, keeping the processed list
	// a subset of the expected list.
	if len(g.ProviderConversionIDs) > 0 && !g.Expects(ev.ConversionID) {
		g.ProviderConversionIDs = append(g.ProviderConversionIDs, ev.ConversionID)
	}

	if !g.Processed(ev.ConversionID) {
		g.ProviderProcessedConversions = append(g.ProviderProcessedConversions, ev.ConversionID)
	}

	if g.Output.Metadata == nil {
		g.Output.Metadata = make(map[string]model.ConversionMetadata)
	}
	meta := g.Output.Metadata[ev.ConversionID]
	meta.AudioURL = ev.ConversionPath
	meta.WAVURL = ev.ConversionPathWAV
	meta.Title = ev.Title
	meta.Flagged = ev.IsFlagged
	if ev.ConversionDuration > 0 {
		meta.Duration = ev.ConversionDuration
	}
	meta.ReceivedAt = time.Now()
	g.Output.Metadata[ev.ConversionID] = meta

	if ev.Lyrics != "" || ev.LyricsTimestamped != nil {
		if g.Output.Lyrics == nil {
			g.Output.Lyrics = make(map[string]model.LyricsContent)
		}
		g.Output.Lyrics[ev.ConversionID] = ev.LyricsContent()
	}

	// TODO(stems): this replaces rather than accumulates per-variant
	// stems, so the last processed conversion's WAV wins. Matches the
	// webapp behavior; revisit once multi-variant stem downloads ship.
	if ev.ConversionPathWAV != "" {
		g.Output.Stems = []string{ev.ConversionPathWAV}
	}

	completed := g.FullyProcessed()
	if completed {
		g.Status = model.GenerationStatusCompleted
		now := time.Now()
		g.CompletedAt = &now
		g.Output.AudioURL = ev.ConversionPath
	} else if g.Status == model.GenerationStatusPending {
		g.Status = model.GenerationStatusProcessing
	}

	if err := s.store.Generations.Save(ctx, g); err != nil {
		return false, fmt.Errorf("failed to save generation: %w", err)
	}
	return completed, nil
}

// onCompleted fires the completion effects: the owner's song-ready
// notification (exactly once per generation) and the follower fan-out.
// Effect failures never undo the completed state.
func (s *ReconcileService) onCompleted(ctx context.Context, g *model.Generation, song *model.Song) {
	if s.hub != nil {
		s.hub.BroadcastComplete(g.ID, song.ID, g.Output.AudioURL)
	}

	if s.notification == nil {
		return
	}
	if _, err := s.notification.CreateSongReady(ctx, song.UserID, song.ID, g.ID); err != nil {
		log.Printf("[Webhook] song-ready notification failed for generation %s: %v", g.ID, err)
	}
	if err := s.notification.ScheduleFanOut(ctx, song.ID, g.ID, song.UserID); err != nil {
		log.Printf("[Webhook] fan-out scheduling failed for generation %s: %v", g.ID, err)
	}
}

// scheduleEnrichment queues the best-effort detail fetch. Without an
// asynq client (tests, dev) it runs inline; either way the core state
// transition has already committed.
func (s *ReconcileService) scheduleEnrichment(ctx context.Context, generationID, songID, conversionID string) {
	if s.provider == nil || !s.provider.IsConfigured() {
		return
	}

	if s.asynqClient == nil {
		_ = s.ApplyEnrichment(ctx, generationID, songID, conversionID)
		return
	}

	payload, err := json.Marshal(EnrichTaskPayload{
		GenerationID: generationID,
		SongID:       songID,
		ConversionID: conversionID,
	})
	if err != nil {
		log.Printf("[Webhook] failed to marshal enrich payload: %v", err)
		return
	}

	task := asynq.NewTask(TaskTypeEnrich, payload)
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("enrich"),
		asynq.MaxRetry(2),
		asynq.Retention(24*time.Hour),
	); err != nil {
		log.Printf("[Webhook] failed to enqueue enrich task: %v", err)
	}
}

func (s *ReconcileService) broadcastStatus(g *model.Generation) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastStatus(g.ID, g.Status, len(g.ProviderProcessedConversions), len(g.ProviderConversionIDs))
}

func versionByOutputID(versions []*model.SongVersion, outputID string) *model.SongVersion {
	for _, v := range versions {
		if v.ProviderOutputID != "" && v.ProviderOutputID == outputID {
			return v
		}
	}
	return nil
}

// generationLocks serializes all writers of one generation. Provider
// retries and near-simultaneous variant completions make concurrent
// deliveries for the same generation the normal case, and the
// processed-list append is not safe under concurrent read-modify-write.
// Entries are refcounted and evicted once uncontended, so the map holds
// only generations with an in-flight delivery.
type generationLocks struct {
	mu    sync.Mutex
	locks map[string]*generationLock
}

type generationLock struct {
	mu   sync.Mutex
	refs int
}

func (l *generationLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*generationLock)
	}
	e, ok := l.locks[id]
	if !ok {
		e = &generationLock{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
