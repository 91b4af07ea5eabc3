package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/songhatch/api/internal/service"
)

// FanOutWorker delivers song-ready notifications to artist followers.
type FanOutWorker struct {
	notifications *service.NotificationService
}

func NewFanOutWorker(notifications *service.NotificationService) *FanOutWorker {
	return &FanOutWorker{notifications: notifications}
}

// ProcessTask handles a notification:fanout task
func (w *FanOutWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.FanOutTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal fan-out payload: %w", err)
	}

	log.Printf("Fanning out song-ready notifications for song %s, generation %s", payload.SongID, payload.GenerationID)
	return w.notifications.FanOutSongReady(ctx, payload.SongID, payload.GenerationID, payload.ExcludeUserID)
}
