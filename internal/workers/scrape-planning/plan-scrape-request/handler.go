// internal/workers/scrape-planning/plan-scrape-request/handler.go
package planscraperequest

import (
	"context"
	"fmt"
	"time"

	"scrape-planner/internal/common/errors"
	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/common/metrics"
	"scrape-planner/internal/common/observability"
	"scrape-planner/internal/common/validation"
	"scrape-planner/internal/nlu/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "plan-scrape-request"

var schema = validation.MustCompile(TaskType+" input", InputSchema)

// Planner plans one conversational turn.
type Planner interface {
	Plan(ctx context.Context, sessionID, text string) *pipeline.Result
}

type Handler struct {
	config       *Config
	planner      Planner
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, planner Planner, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		planner:      planner,
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

	input, err := parseInput(job.GetVariables())
	if err != nil {
		h.failJob(ctx, client, job, err, startTime)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, startTime)
		return
	}

	h.completeJob(ctx, client, job, output, startTime)
}

func parseInput(variables string) (*Input, error) {
	var input Input
	if err := schema.DecodeValidated([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

// Execute plans the turn. Component fallbacks are reported through
// Output.Degraded; only a missing result is an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (output *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			output, err = nil, errors.NewPlanningFailedError(fmt.Errorf("panic: %v", r))
		}
	}()

	result := h.planner.Plan(ctx, input.SessionID, input.Text)
	if result == nil || result.ExecutionPlan == nil {
		return nil, errors.NewPlanningFailedError(fmt.Errorf("no plan produced for session %s", input.SessionID))
	}

	h.logger.Info("request planned", map[string]interface{}{
		"sessionId":     input.SessionID,
		"intentType":    result.Intent.Type,
		"executionMode": result.ExecutionPlan.ExecutionMode,
		"steps":         len(result.ExecutionPlan.Steps),
		"degraded":      result.Degraded,
	})

	return &Output{
		Intent:            result.Intent,
		Entities:          result.Entities,
		ConditionAnalysis: result.ConditionAnalysis,
		ExecutionPlan:     result.ExecutionPlan,
		Degraded:          result.Degraded,
		DegradedReasons:   result.Reasons,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, startTime time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(ctx, client, job, errors.NewPlanningFailedError(err), startTime)
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
