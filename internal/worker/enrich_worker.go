package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/songhatch/api/internal/service"
)

// EnrichWorker runs the best-effort provider detail fetch off the
// webhook's critical path.
type EnrichWorker struct {
	reconciler *service.ReconcileService
}

func NewEnrichWorker(reconciler *service.ReconcileService) *EnrichWorker {
	return &EnrichWorker{reconciler: reconciler}
}

// ProcessTask handles a generation:enrich task
func (w *EnrichWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.EnrichTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal enrich payload: %w", err)
	}

	log.Printf("Enriching generation %s, conversion %s", payload.GenerationID, payload.ConversionID)
	return w.reconciler.ApplyEnrichment(ctx, payload.GenerationID, payload.SongID, payload.ConversionID)
}
