package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/songhatch/api/internal/client"
	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/store"
)

// GenerationService starts provider generations. The resulting state is
// then owned by the webhook reconciler.
type GenerationService struct {
	store        *store.Store
	provider     client.MusicGenerator
	providerName string
	callbackURL  string
}

func NewGenerationService(st *store.Store, provider client.MusicGenerator, callbackURL string) *GenerationService {
	return &GenerationService{
		store:        st,
		provider:     provider,
		providerName: "suno",
		callbackURL:  callbackURL,
	}
}

// StartGeneration creates a pending generation for the song, submits it
// to the provider, and records the provider's task and expected
// conversion ids. Completion arrives later via webhook.
func (s *GenerationService) StartGeneration(ctx context.Context, userID, songID string, req *model.StartGenerationRequest) (*model.Generation, error) {
	song, err := s.store.Songs.Get(ctx, songID)
	if err != nil {
		return nil, err
	}

	g := &model.Generation{
		ID:        uuid.New().String(),
		SongID:    song.ID,
		UserID:    userID,
		Status:    model.GenerationStatusPending,
		Provider:  s.providerName,
		Prompt:    req.Prompt,
		CreatedAt: time.Now(),
	}

	if err := s.store.Generations.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to save generation: %w", err)
	}

	if s.provider == nil || !s.provider.IsConfigured() {
		// Dev fallback: the generation stays pending under a synthetic
		// task id so webhook tooling can still drive it.
		g.ProviderTaskID = "dev-" + uuid.New().String()
		log.Printf("[Generate] provider not configured, generation %s stays pending (task=%s)", g.ID, g.ProviderTaskID)
		if err := s.store.Generations.Save(ctx, g); err != nil {
			return nil, fmt.Errorf("failed to save generation: %w", err)
		}
		return g, nil
	}

	resp, err := s.provider.GenerateMusic(ctx, &client.GenerateMusicRequest{
		Prompt:           req.Prompt,
		Style:            req.Style,
		Title:            song.Title,
		MakeInstrumental: req.Instrumental,
		CallbackURL:      s.callbackURL,
	})
	if err != nil {
		msg := err.Error()
		g.Status = model.GenerationStatusFailed
		g.Error = &msg
		now := time.Now()
		g.CompletedAt = &now
		if saveErr := s.store.Generations.Save(ctx, g); saveErr != nil {
			log.Printf("[Generate] failed to mark generation %s failed: %v", g.ID, saveErr)
		}
		return nil, fmt.Errorf("music generation request failed: %w", err)
	}

	g.ProviderTaskID = resp.TaskID
	g.ProviderConversionIDs = resp.ConversionIDs
	g.Status = model.GenerationStatusProcessing
	if err := s.store.Generations.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to save generation: %w", err)
	}

	log.Printf("[Generate] started generation %s (task=%s, conversions=%d)", g.ID, g.ProviderTaskID, len(g.ProviderConversionIDs))
	return g, nil
}

// GetGeneration returns one generation document.
func (s *GenerationService) GetGeneration(ctx context.Context, id string) (*model.Generation, error) {
	return s.store.Generations.Get(ctx, id)
}
