package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/delta-app/delta/internal/reports"
)

// ReportBuildJob executes queued report builds against the pipeline.
type ReportBuildJob struct {
	Service *reports.Service
	Logger  *slog.Logger
}

// Handle processes TaskTypeReportBuild tasks.
func (j *ReportBuildJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReportBuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := uuid.Parse(payload.ReportID)
	if err != nil {
		return asynq.SkipRetry
	}
	if err := j.Service.Build(ctx, id); err != nil {
		if j.Logger != nil {
			j.Logger.Error("report build", slog.Any("error", err), slog.String("report_id", payload.ReportID))
		}
		return err
	}
	return nil
}
