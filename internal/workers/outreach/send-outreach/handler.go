package sendoutreach

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"prospect-workers/internal/common/aws"
	"prospect-workers/internal/common/errors"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/models"
)

const (
	TaskType = "send-outreach"
)

type Mailer interface {
	Send(ctx context.Context, e aws.Email) (string, error)
}

type Recorder interface {
	RecordOutreach(ctx context.Context, rec models.OutreachRecord) error
}

type Handler struct {
	config     *Config
	mailer     Mailer
	recorder   Recorder
	errHandler *errors.ErrorHandler
	logger     logger.Logger
	now        func() time.Time
}

func NewHandler(config *Config, mailer Mailer, recorder Recorder, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		mailer:     mailer,
		recorder:   recorder,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
		now:        time.Now,
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
	if !validation.ValidateEmail(input.Outreach.To) {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("outreach.to is not a valid email: %q", input.Outreach.To))
	}
	if input.ProspectID == "" {
		input.ProspectID = input.Outreach.ProspectID
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if !h.config.Enabled || h.mailer == nil {
		h.logger.Info("mail delivery disabled, skipping", map[string]interface{}{"prospectId": input.ProspectID})
		return &Output{Reason: "delivery_disabled"}, nil
	}

	msg := input.Outreach
	messageID, err := h.mailer.Send(ctx, aws.Email{
		From:    h.config.From,
		To:      msg.To,
		ReplyTo: h.config.ReplyTo,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return nil, err
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}
	out := &Output{Sent: true, MessageID: messageID}

	if h.recorder == nil || input.ProspectID == "" {
		return out, nil
	}

	// The mail is already out; a failed record must not make Zeebe retry the send.
	err = h.recorder.RecordOutreach(ctx, models.OutreachRecord{
		MessageID:  messageID,
		ProspectID: input.ProspectID,
		To:         msg.To,
		Subject:    msg.Subject,
		Provider:   h.config.Provider,
		SentAt:     h.now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to record outreach", map[string]interface{}{
			"prospectId": input.ProspectID,
			"messageId":  messageID,
			"error":      err.Error(),
		})
		return out, nil
	}
	out.Recorded = true
	return out, nil
}

func mapError(err error) *errors.StandardError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError("ses", err)
	}
	return errors.NewOutreachSendFailedError(err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
