package enrichprospect

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
	"prospect-workers/internal/prospect/pipeline"
	"prospect-workers/internal/prospect/scoring"
	"prospect-workers/internal/prospect/store"
)

const (
	TaskType = "enrich-prospect"
)

var (
	ErrEnrichmentFailed = stderrors.New("ENRICHMENT_FAILED")
)

type Enricher interface {
	Enrich(ctx context.Context, p models.Prospect) (models.EnrichedProspect, error)
}

type ProspectLoader interface {
	Get(ctx context.Context, id string) (*models.Prospect, error)
}

// Notifier publishes hot leads. Optional.
type Notifier interface {
	Publish(ctx context.Context, subject, message string, attributes map[string]string) (string, error)
}

type Handler struct {
	config     *Config
	enricher   Enricher
	loader     ProspectLoader
	notifier   Notifier
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, enricher Enricher, loader ProspectLoader, notifier Notifier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		enricher:   enricher,
		loader:     loader,
		notifier:   notifier,
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
		h.failJob(client, job, stdErr)
		return stdErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		stdErr := mapError(err)
		h.failJob(client, job, stdErr)
		return stdErr
	}

	return h.completeJob(client, job, output)
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var prospect models.Prospect
	if input.Prospect != nil {
		prospect = *input.Prospect
		if prospect.ID == "" {
			prospect.ID = input.ProspectID
		}
	} else {
		loaded, err := h.loader.Get(ctx, input.ProspectID)
		if err != nil {
			return nil, err
		}
		prospect = *loaded
	}

	ep, err := h.enricher.Enrich(ctx, prospect)
	if err != nil {
		return nil, err
	}

	if ep.Tier == scoring.TierHot {
		h.notifyHotLead(ctx, ep)
	}

	return &Output{
		ProspectID: ep.Prospect.ID,
		RunID:      ep.RunID,
		Enrichment: ep.Enrichment,
		Score:      ep.Score,
		Tier:       ep.Tier,
		Sources:    ep.Sources,
		Prospect:   ep.Prospect,
	}, nil
}

type hotLeadMessage struct {
	ProspectID   string `json:"prospectId"`
	PropertyName string `json:"propertyName"`
	City         string `json:"city,omitempty"`
	ContactName  string `json:"contactName,omitempty"`
	Email        string `json:"email,omitempty"`
	Score        int    `json:"score"`
}

func (h *Handler) notifyHotLead(ctx context.Context, ep models.EnrichedProspect) {
	if !h.config.NotifyHotLeads || h.notifier == nil {
		return
	}
	body, _ := json.Marshal(hotLeadMessage{
		ProspectID:   ep.Prospect.ID,
		PropertyName: ep.Prospect.PropertyName,
		City:         ep.Prospect.City,
		ContactName:  ep.Prospect.ContactName,
		Email:        ep.Prospect.Email,
		Score:        ep.Score.Total,
	})
	subject := fmt.Sprintf("Hot lead: %s", ep.Prospect.PropertyName)
	if len(subject) > 100 {
		subject = subject[:100]
	}
	if _, err := h.notifier.Publish(ctx, subject, string(body), map[string]string{"tier": ep.Tier}); err != nil {
		h.logger.Warn("hot lead notification failed", map[string]interface{}{
			"prospectId": ep.Prospect.ID,
			"error":      err.Error(),
		})
	}
}

func mapError(err error) *errors.StandardError {
	var stdErr *errors.StandardError
	switch {
	case stderrors.As(err, &stdErr):
		return stdErr
	case stderrors.Is(err, pipeline.ErrInvalidProspect):
		return errors.NewInvalidInputError(err.Error())
	case stderrors.Is(err, store.ErrProspectNotFound):
		return errors.NewProspectNotFoundError(err.Error())
	case stderrors.Is(err, store.ErrDatabaseQuery):
		return errors.NewQueryExecutionFailedError("load_prospect", err)
	case stderrors.Is(err, pipeline.ErrPersistFailed):
		return errors.NewDatabaseUpdateFailedError(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewTimeoutError(TaskType, err)
	default:
		return errors.NewEnrichmentFailedError(fmt.Errorf("%w: %v", ErrEnrichmentFailed, err))
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, stdErr *errors.StandardError) {
	h.errHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
