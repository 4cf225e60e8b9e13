package jobs

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAnalysisRun dispatches one analysis pipeline run.
	TaskTypeAnalysisRun = "analysis:run"
	// TaskTypeReportBuild dispatches one report build.
	TaskTypeReportBuild = "report:build"
)

// AnalysisRunPayload identifies the analysis row to execute.
type AnalysisRunPayload struct {
	AnalysisID string `json:"analysis_id"`
}

// ReportBuildPayload identifies the report row to build.
type ReportBuildPayload struct {
	ReportID string `json:"report_id"`
}

// NewAnalysisRunTask constructs an Asynq task.
func NewAnalysisRunTask(payload AnalysisRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAnalysisRun, data), nil
}

// NewReportBuildTask constructs an Asynq task.
func NewReportBuildTask(payload ReportBuildPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReportBuild, data), nil
}

// Client submits jobs to the queue. It satisfies the enqueuer
// contracts of the analysis and reports services.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueAnalysisRun enqueues an analysis run task.
func (c *Client) EnqueueAnalysisRun(ctx context.Context, analysisID uuid.UUID) error {
	task, err := NewAnalysisRunTask(AnalysisRunPayload{AnalysisID: analysisID.String()})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// EnqueueReportBuild enqueues a report build task.
func (c *Client) EnqueueReportBuild(ctx context.Context, reportID uuid.UUID) error {
	task, err := NewReportBuildTask(ReportBuildPayload{ReportID: reportID.String()})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
