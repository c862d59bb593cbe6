package main

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"prospect-workers/internal/common/config"
	"prospect-workers/internal/common/errors"
	"prospect-workers/internal/common/validation"
	"prospect-workers/pkg/registry"

	ep "prospect-workers/internal/workers/enrichment/enrich-prospect"
	sp "prospect-workers/internal/workers/enrichment/score-prospect"
	ve "prospect-workers/internal/workers/enrichment/verify-email"
	gno "prospect-workers/internal/workers/outreach/generate-outreach"
	so "prospect-workers/internal/workers/outreach/send-outreach"
)

type entry struct {
	taskType    string
	displayName string
	description string
	category    string
	schema      validation.JSONSchema
	output      interface{}
	errorCodes  []errors.ErrorCode
	tags        []string
}

// catalog lists every job type the worker manager registers.
func catalog() []entry {
	return []entry{
		{
			taskType:    ep.TaskType,
			displayName: "Enrich Prospect",
			description: "Crawls the property website, queries search, RDAP, Apollo and Places, resolves the best contact email and scores the result.",
			category:    "enrichment",
			schema:      ep.InputSchema(),
			output:      ep.Output{},
			errorCodes: []errors.ErrorCode{
				errors.ErrCodeInvalidInput, errors.ErrCodeProspectNotFound, errors.ErrCodeQueryExecutionFailed,
				errors.ErrCodeDatabaseUpdateFailed, errors.ErrCodeEnrichmentFailed, errors.ErrCodeTimeout,
			},
			tags: []string{"crawl", "email-discovery", "scoring"},
		},
		{
			taskType:    sp.TaskType,
			displayName: "Score Prospect",
			description: "Scores a prospect from its enriched fields and stores the breakdown.",
			category:    "enrichment",
			schema:      sp.InputSchema(),
			output:      sp.Output{},
			errorCodes: []errors.ErrorCode{
				errors.ErrCodeInvalidInput, errors.ErrCodeProspectNotFound, errors.ErrCodeDatabaseUpdateFailed, errors.ErrCodeTimeout,
			},
			tags: []string{"scoring"},
		},
		{
			taskType:    ve.TaskType,
			displayName: "Verify Email",
			description: "Checks deliverability through Hunter, falling back to an MX lookup.",
			category:    "enrichment",
			schema:      ve.InputSchema(),
			output:      ve.Output{},
			errorCodes:  []errors.ErrorCode{errors.ErrCodeInvalidInput},
			tags:        []string{"email", "hunter", "dns"},
		},
		{
			taskType:    gno.TaskType,
			displayName: "Generate Outreach",
			description: "Drafts a personalised first-touch email, using the LLM when configured and templates otherwise.",
			category:    "outreach",
			schema:      gno.InputSchema(),
			output:      gno.Output{},
			errorCodes: []errors.ErrorCode{
				errors.ErrCodeInvalidInput, errors.ErrCodeOutreachGenerationFailed, errors.ErrCodeOutreachTimeout,
			},
			tags: []string{"llm", "email"},
		},
		{
			taskType:    so.TaskType,
			displayName: "Send Outreach",
			description: "Sends a drafted outreach email through SES and records it against the prospect.",
			category:    "outreach",
			schema:      so.InputSchema(),
			output:      so.Output{},
			errorCodes: []errors.ErrorCode{
				errors.ErrCodeInvalidInput, errors.ErrCodeOutreachSendFailed, errors.ErrCodeTimeout,
			},
			tags: []string{"ses", "email"},
		},
	}
}

// buildActivity renders a catalog entry, taking timeout and retries from the
// worker section of the service config.
func buildActivity(e entry, cfg *config.Config, version string) registry.Activity {
	wcfg := config.GetWorkerConfig(cfg, e.taskType)
	codes := make([]string, len(e.errorCodes))
	for i, c := range e.errorCodes {
		codes[i] = string(c)
	}
	return registry.Activity{
		ID:              e.taskType,
		DisplayName:     e.displayName,
		Description:     e.description,
		Category:        e.category,
		Version:         version,
		TaskType:        e.taskType,
		InputSchema:     schemaMap(e.schema),
		OutputVariables: outputVariables(e.output),
		ErrorCodes:      codes,
		Timeout:         (time.Duration(wcfg.Timeout) * time.Millisecond).String(),
		Retries:         wcfg.MaxRetries,
		Tags:            e.tags,
	}
}

func schemaMap(s validation.JSONSchema) map[string]interface{} {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]interface{}{}
	}
	m := map[string]interface{}{}
	_ = json.Unmarshal(data, &m)
	return m
}

// outputVariables lists the top-level process variables a worker sets,
// flattening embedded structs the way encoding/json does.
func outputVariables(v interface{}) []string {
	var names []string
	var walk func(t reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			tag := f.Tag.Get("json")
			if f.Anonymous && tag == "" && f.Type.Kind() == reflect.Struct {
				walk(f.Type)
				continue
			}
			if !f.IsExported() || tag == "-" {
				continue
			}
			name := strings.Split(tag, ",")[0]
			if name == "" {
				name = f.Name
			}
			names = append(names, name)
		}
	}
	walk(reflect.TypeOf(v))
	return names
}
