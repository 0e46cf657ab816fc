// internal/workers/scrape-planning/summarize-session/handler.go
package summarizesession

import (
	"context"
	stderrors "errors"
	"time"

	"scrape-planner/internal/common/errors"
	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/common/metrics"
	"scrape-planner/internal/common/observability"
	"scrape-planner/internal/common/validation"
	"scrape-planner/internal/nlu/conversation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "summarize-session"

var schema = validation.MustCompile(TaskType+" input", InputSchema)

type Summarizer interface {
	Summarize(ctx context.Context, sessionID string) conversation.Summary
}

type Handler struct {
	config       *Config
	sessions     Summarizer
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, sessions Summarizer, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		sessions:     sessions,
		obs:          obs,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	var input Input
	if err := schema.DecodeValidated([]byte(job.GetVariables()), &input); err != nil {
		h.failJob(ctx, client, job, errors.NewInvalidInputError(err.Error()), startTime)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err, startTime)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.failJob(ctx, client, job, errors.NewSessionStoreFailedError("encode summary", err), startTime)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

// Execute summarizes the session. An unknown session is a normal outcome
// (Found=false); a store failure is returned as a retryable error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	summary := h.sessions.Summarize(ctx, input.SessionID)

	switch {
	case summary.Err == nil:
		return &Output{Summary: summary, Found: true}, nil
	case stderrors.Is(summary.Err, conversation.ErrSessionNotFound):
		h.logger.Debug("session not found", map[string]interface{}{"sessionId": input.SessionID})
		return &Output{Summary: summary, Found: false}, nil
	default:
		return nil, errors.NewSessionStoreFailedError("summarize", summary.Err).
			WithMetadata("sessionId", input.SessionID)
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, startTime time.Time) {
	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "failed")

	h.errorHandler.HandleJobError(ctx, client, job, err)
}
