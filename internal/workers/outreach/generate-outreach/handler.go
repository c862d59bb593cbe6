package generateoutreach

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"prospect-workers/internal/common/errors"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/outreach"
)

const (
	TaskType = "generate-outreach"
)

type Drafter interface {
	Generate(ctx context.Context, req outreach.Request) (models.OutreachMessage, error)
}

type Handler struct {
	config     *Config
	drafter    Drafter
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, drafter Drafter, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		drafter:    drafter,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, stdErr := parseInput(job.Variables)
	if stdErr != nil {
		h.errHandler.HandleJobError(context.Background(), client, job, stdErr)
		return stdErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		stdErr := mapError(err)
		h.errHandler.HandleJobError(context.Background(), client, job, stdErr)
		return stdErr
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func parseInput(variables string) (*Input, *errors.StandardError) {
	if res := validation.ValidateJSON(variables, InputSchema()); !res.Valid {
		return nil, errors.NewInvalidInputError(strings.Join(res.GetErrorMessages(), "; "))
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	msg, err := h.drafter.Generate(ctx, outreach.Request{
		Prospect:   input.Prospect,
		Enrichment: input.Enrichment,
		Tier:       input.Tier,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("outreach drafted", map[string]interface{}{
		"prospectId": msg.ProspectID,
		"generator":  msg.Generator,
	})
	return &Output{Outreach: msg}, nil
}

func mapError(err error) *errors.StandardError {
	switch {
	case stderrors.Is(err, outreach.ErrNoRecipient):
		// Retrying will not produce an address; let the process route around it.
		stdErr := errors.NewOutreachGenerationFailedError(err)
		stdErr.Retryable = false
		return stdErr
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewOutreachTimeoutError()
	default:
		return errors.NewOutreachGenerationFailedError(err)
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
