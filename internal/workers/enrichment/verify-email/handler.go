package verifyemail

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"prospect-workers/internal/common/errors"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/prospect/lookup"
)

const (
	TaskType = "verify-email"
)

type Verifier interface {
	Verify(ctx context.Context, email string) lookup.Verification
}

type Handler struct {
	config     *Config
	verifier   Verifier
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, verifier Verifier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		verifier:   verifier,
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

	output := h.execute(ctx, input)

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

// execute never fails: an address that cannot be checked comes back with an
// unknown or invalid status and the process decides what to do with it.
func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	v := h.verifier.Verify(ctx, input.Email)
	h.logger.Debug("email verified", map[string]interface{}{
		"status": v.Status,
		"source": v.Source,
	})
	return &Output{
		Verification: v,
		ProspectID:   input.ProspectID,
		Deliverable:  v.Deliverable(),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}
