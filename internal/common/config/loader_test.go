package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: prospects
    user: prospects
  redis:
    address: localhost:6379
workers:
  enrich-prospect:
    enabled: true
  send-outreach:
    enabled: false
    max_jobs_active: 1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearKeyEnv(t *testing.T) {
	for _, key := range []string{"APOLLO_API_KEY", "HUNTER_API_KEY", "GOOGLE_PLACES_API_KEY", "XAI_API_KEY", "SCRAPER_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadFromFile_Defaults(t *testing.T) {
	clearKeyEnv(t)
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Camunda.MaxJobsActive)
	assert.Equal(t, "prospect-enrichment", cfg.Camunda.ProcessID)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "prospects", cfg.Database.Elasticsearch.ProspectIndex)
	assert.False(t, cfg.Database.Elasticsearch.Enabled())

	assert.Equal(t, "decision_maker_only", cfg.Enrichment.EmailPolicy)
	assert.Equal(t, 5, cfg.Enrichment.MaxSubpages)
	assert.Equal(t, "none", cfg.Fetch.Proxy.Mode)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, "https://api.hunter.io/v2", cfg.APIs.Hunter.BaseURL)
	assert.Equal(t, "grok-3-mini", cfg.APIs.XAI.Model)

	assert.Equal(t, "eu-west-1", cfg.Outreach.SES.Region)
	assert.Equal(t, cfg.Outreach.SES.Region, cfg.Notifications.SNS.Region)
	assert.Equal(t, ":8080", cfg.Observability.MetricsAddress)

	enrich := cfg.Workers["enrich-prospect"]
	assert.True(t, enrich.Enabled)
	assert.Equal(t, 3, enrich.MaxJobsActive)
	assert.Equal(t, 120000, enrich.Timeout)

	send := cfg.Workers["send-outreach"]
	assert.False(t, send.Enabled)
	assert.Equal(t, 1, send.MaxJobsActive)
}

func TestLoadFromFile_ExpandsEnvironment(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("TEST_ZEEBE_ADDRESS", "zeebe:26500")
	t.Setenv("HUNTER_API_KEY", "hunter-from-env")

	body := minimalYAML + `
apis:
  xai:
    api_key: ${TEST_XAI_KEY}
`
	t.Setenv("TEST_XAI_KEY", "xai-secret")
	body = replaceBroker(body, "${TEST_ZEEBE_ADDRESS}")

	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, "zeebe:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "xai-secret", cfg.APIs.XAI.APIKey)
	assert.Equal(t, "hunter-from-env", cfg.APIs.Hunter.APIKey)
}

func replaceBroker(body, broker string) string {
	return strings.Replace(body, "broker_address: localhost:26500", "broker_address: "+broker, 1)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		want  string
	}{
		{"unknown email policy", "enrichment:\n  email_policy: anything_goes\n", "enrichment.email_policy"},
		{"scraperapi without key", "fetch:\n  proxy:\n    mode: scraperapi\n", "scraper_api_key"},
		{"custom proxy without list", "fetch:\n  proxy:\n    mode: custom\n", "custom_proxies"},
		{"unknown proxy mode", "fetch:\n  proxy:\n    mode: tor\n", "fetch.proxy.mode"},
		{"sns without topic", "notifications:\n  sns:\n    enabled: true\n", "topic_arn"},
		{"ses without sender", "outreach:\n  ses:\n    enabled: true\n", "sender_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			_, err := LoadFromFile(writeConfig(t, minimalYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile_MissingBroker(t *testing.T) {
	clearKeyEnv(t)
	_, err := LoadFromFile(writeConfig(t, replaceBroker(minimalYAML, `""`)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camunda.broker_address")
}

func TestWorkerLookups(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"send-outreach": {Enabled: false, MaxJobsActive: 1, Timeout: 20000},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "send-outreach"))
	assert.True(t, IsWorkerEnabled(cfg, "score-prospect"), "unlisted workers run by default")

	wc := GetWorkerConfig(cfg, "score-prospect")
	assert.Equal(t, 3, wc.MaxJobsActive)
	assert.Equal(t, 2*time.Minute, GetDuration(wc.Timeout))
}
