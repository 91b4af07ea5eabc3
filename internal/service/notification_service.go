package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/store"
)

const TaskTypeFanOut = "notification:fanout"

// FanOutTaskPayload is the payload of a notification:fanout task.
type FanOutTaskPayload struct {
	SongID        string `json:"songId"`
	GenerationID  string `json:"generationId"`
	ExcludeUserID string `json:"excludeUserId,omitempty"`
}

// NotificationService creates song-ready notifications. Creation is
// idempotent on the (userId, songId, generationId) key so completion
// effects can be retried freely.
type NotificationService struct {
	store       *store.Store
	asynqClient *asynq.Client
}

func NewNotificationService(st *store.Store, asynqClient *asynq.Client) *NotificationService {
	return &NotificationService{
		store:       st,
		asynqClient: asynqClient,
	}
}

// CreateSongReady creates the notification unless one with the same key
// already exists, in which case the existing record is returned.
func (s *NotificationService) CreateSongReady(ctx context.Context, userID, songID, generationID string) (*model.Notification, error) {
	n := &model.Notification{
		ID:           uuid.New().String(),
		Type:         model.NotificationTypeSongReady,
		UserID:       userID,
		SongID:       songID,
		GenerationID: generationID,
		CreatedAt:    time.Now(),
	}

	stored, created, err := s.store.Notifications.CreateIfAbsent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	if !created {
		return stored, nil
	}
	return n, nil
}

// List returns the newest notifications for a user.
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	return s.store.Notifications.ListByUser(ctx, userID, limit)
}

// ScheduleFanOut queues notification delivery to the song artist's
// followers. Without an asynq client it runs inline.
func (s *NotificationService) ScheduleFanOut(ctx context.Context, songID, generationID, excludeUserID string) error {
	if s.asynqClient == nil {
		return s.FanOutSongReady(ctx, songID, generationID, excludeUserID)
	}

	payload, err := json.Marshal(FanOutTaskPayload{
		SongID:        songID,
		GenerationID:  generationID,
		ExcludeUserID: excludeUserID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal fan-out payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeFanOut, payload)
	if _, err := s.asynqClient.Enqueue(task,
		asynq.Queue("notify"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	); err != nil {
		return fmt.Errorf("failed to enqueue fan-out task: %w", err)
	}
	return nil
}

// FanOutSongReady creates one idempotent notification per follower of
// the song's artist. The creates are independent, so one follower's
// failure is logged without aborting the rest.
func (s *NotificationService) FanOutSongReady(ctx context.Context, songID, generationID, excludeUserID string) error {
	song, err := s.store.Songs.Get(ctx, songID)
	if err != nil {
		return fmt.Errorf("failed to load song: %w", err)
	}
	if song.ArtistID == "" {
		return nil
	}

	followers, err := s.store.Artists.Followers(ctx, song.ArtistID)
	if err != nil {
		return fmt.Errorf("failed to load followers: %w", err)
	}

	for _, userID := range followers {
		if userID == excludeUserID {
			continue
		}
		if _, err := s.CreateSongReady(ctx, userID, songID, generationID); err != nil {
			log.Printf("[FanOut] notification for user %s failed: %v", userID, err)
		}
	}
	return nil
}
