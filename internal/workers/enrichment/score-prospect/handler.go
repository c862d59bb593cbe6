package scoreprospect

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
	"prospect-workers/internal/common/metrics"
	"prospect-workers/internal/common/validation"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/scoring"
	"prospect-workers/internal/prospect/store"
)

const (
	TaskType = "score-prospect"
)

// ScoreStore loads prospects and keeps their score snapshots.
type ScoreStore interface {
	Get(ctx context.Context, id string) (*models.Prospect, error)
	SaveScore(ctx context.Context, prospectID string, score models.ScoreBreakdown, tier string) error
}

type Handler struct {
	config     *Config
	store      ScoreStore
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, store ScoreStore, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		store:      store,
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
	if input.Prospect == nil && input.ProspectID == "" {
		return nil, errors.NewInvalidInputError("either prospect or prospectId is required")
	}
	return &input, nil
}

// execute scores the given prospect, or the stored one when only an id is
// passed. Scores of prospects with an id are persisted as a new snapshot.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var prospect models.Prospect
	if input.Prospect != nil {
		prospect = *input.Prospect
		if prospect.ID == "" {
			prospect.ID = input.ProspectID
		}
	} else {
		loaded, err := h.store.Get(ctx, input.ProspectID)
		if err != nil {
			return nil, err
		}
		prospect = *loaded
	}

	score := scoring.Score(prospect)
	tier := scoring.Tier(score.Total)
	metrics.ProspectTier.WithLabelValues(tier).Inc()

	out := &Output{
		ProspectID: prospect.ID,
		Score:      score.Total,
		Breakdown:  score.Breakdown,
		Tier:       tier,
	}
	if prospect.ID == "" || h.store == nil {
		return out, nil
	}

	if err := h.store.SaveScore(ctx, prospect.ID, score, tier); err != nil {
		return nil, err
	}
	out.Persisted = true

	h.logger.Debug("prospect scored", map[string]interface{}{
		"prospectId": prospect.ID,
		"score":      score.Total,
		"tier":       tier,
	})
	return out, nil
}

func mapError(err error) *errors.StandardError {
	switch {
	case stderrors.Is(err, store.ErrProspectNotFound):
		return errors.NewProspectNotFoundError(err.Error())
	case stderrors.Is(err, store.ErrDatabaseQuery):
		return errors.NewDatabaseUpdateFailedError(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewTimeoutError(TaskType, err)
	default:
		return errors.Normalize(err)
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
