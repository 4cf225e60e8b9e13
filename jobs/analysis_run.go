package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/delta-app/delta/internal/analysis"
)

// AnalysisRunJob executes queued analysis runs against the pipeline.
type AnalysisRunJob struct {
	Service *analysis.Service
	Logger  *slog.Logger
}

// Handle processes TaskTypeAnalysisRun tasks.
func (j *AnalysisRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AnalysisRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := uuid.Parse(payload.AnalysisID)
	if err != nil {
		return asynq.SkipRetry
	}
	if err := j.Service.Run(ctx, id); err != nil {
		if j.Logger != nil {
			j.Logger.Error("analysis run", slog.Any("error", err), slog.String("analysis_id", payload.AnalysisID))
		}
		return err
	}
	return nil
}
