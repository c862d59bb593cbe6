package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/circuit"
)

var testSender = Sender{Name: "Lena Hoffmann", Email: "lena@directbook.io", Product: "DirectBook"}

func adlonRequest() Request {
	email := "anna.weber@adlon.de"
	return Request{
		Prospect: models.Prospect{ID: "p-1", PropertyName: "Hotel Adlon", City: "Berlin"},
		Enrichment: models.EnrichmentResult{
			ContactName:    "Anna Weber",
			ContactRole:    "General Manager",
			ValidatedEmail: &email,
		},
		Tier: "hot",
	}
}

type stubCompleter struct {
	text string
	err  error

	system, user string
}

func (s *stubCompleter) Complete(_ context.Context, system, user string) (string, error) {
	s.system, s.user = system, user
	return s.text, s.err
}

func TestGenerator_TemplateWithoutLLM(t *testing.T) {
	g := NewGenerator(nil, testSender, logger.NewTestLogger(t))

	msg, err := g.Generate(context.Background(), adlonRequest())
	require.NoError(t, err)

	assert.Equal(t, GeneratorTemplate, msg.Generator)
	assert.Equal(t, "anna.weber@adlon.de", msg.To)
	assert.Equal(t, "p-1", msg.ProspectID)
	assert.Equal(t, "DirectBook for Hotel Adlon", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Anna,")
	assert.Contains(t, msg.Body, "Hotel Adlon in Berlin")
	assert.Contains(t, msg.Body, "as General Manager")
	assert.Contains(t, msg.Body, "Lena Hoffmann\nlena@directbook.io")
}

func TestGenerator_TemplateIsDeterministic(t *testing.T) {
	g := NewGenerator(nil, testSender, logger.NewTestLogger(t))
	a, _ := g.Generate(context.Background(), adlonRequest())
	b, _ := g.Generate(context.Background(), adlonRequest())
	assert.Equal(t, a, b)
}

func TestGenerator_NoContactUsesNeutralGreeting(t *testing.T) {
	req := Request{Prospect: models.Prospect{ID: "p-2", PropertyName: "Pension Sonne", Email: "info@sonne.de"}}
	msg, err := NewGenerator(nil, Sender{Name: "Lena"}, logger.NewTestLogger(t)).Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "info@sonne.de", msg.To)
	assert.Equal(t, "Our platform for Pension Sonne", msg.Subject)
	assert.True(t, len(msg.Body) > 0 && msg.Body[:6] == "Hello,")
}

func TestGenerator_NoRecipient(t *testing.T) {
	_, err := NewGenerator(nil, testSender, logger.NewTestLogger(t)).Generate(context.Background(), Request{Prospect: models.Prospect{ID: "p-3", PropertyName: "X"}})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestGenerator_UsesLLMDraft(t *testing.T) {
	llm := &stubCompleter{text: "Subject: More direct bookings for Hotel Adlon\n\nDear Anna,\nshort pitch.\n\nLena"}
	g := NewGenerator(llm, testSender, logger.NewTestLogger(t))

	msg, err := g.Generate(context.Background(), adlonRequest())
	require.NoError(t, err)

	assert.Equal(t, GeneratorGrok, msg.Generator)
	assert.Equal(t, "More direct bookings for Hotel Adlon", msg.Subject)
	assert.Equal(t, "Dear Anna,\nshort pitch.\n\nLena", msg.Body)
	assert.Contains(t, llm.user, "Recipient: Anna Weber")
	assert.Contains(t, llm.user, "Lead tier: hot")
	assert.Contains(t, llm.system, "DirectBook")
}

func TestGenerator_FallsBackOnLLMFailure(t *testing.T) {
	tests := []struct {
		name string
		llm  *stubCompleter
	}{
		{"error", &stubCompleter{err: errors.New("status 500")}},
		{"missing subject line", &stubCompleter{text: "Dear Anna, hello."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewGenerator(tt.llm, testSender, logger.NewTestLogger(t)).Generate(context.Background(), adlonRequest())
			require.NoError(t, err)
			assert.Equal(t, GeneratorTemplateFallback, msg.Generator)
			assert.Equal(t, "DirectBook for Hotel Adlon", msg.Subject)
		})
	}
}

func TestGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator(&stubCompleter{err: context.Canceled}, testSender, logger.NewTestLogger(t)).Generate(ctx, adlonRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitDraft(t *testing.T) {
	s, b := splitDraft("  SUBJECT:  Hi there \n\nBody text\n")
	assert.Equal(t, "Hi there", s)
	assert.Equal(t, "Body text", b)

	s, b = splitDraft("no subject")
	assert.Empty(t, s)
	assert.Empty(t, b)
}

func createTestFetcher(t *testing.T) *commonhttp.Fetcher {
	t.Helper()
	f, err := commonhttp.NewFetcher(commonhttp.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	return f
}

func TestGrokClient_Complete(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Subject: Hi\n\nBody"}}]}`))
	}))
	defer srv.Close()

	c := NewGrokClient(createTestFetcher(t), circuit.NewRegistry(), GrokOptions{
		BaseURL: srv.URL + "/v1/", APIKey: "xai-key", Model: "grok-3-mini", MaxTokens: 600, Temperature: 0.7,
	})
	text, err := c.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)

	assert.Equal(t, "Subject: Hi\n\nBody", text)
	assert.Equal(t, "Bearer xai-key", auth)
	assert.Equal(t, "grok-3-mini", got.Model)
	assert.Equal(t, 600, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "usr", got.Messages[1].Content)
}

func TestGrokClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		is     error
	}{
		{"server error", http.StatusInternalServerError, `{}`, nil},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyCompletion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			breaker := circuit.NewRegistry()
			c := NewGrokClient(createTestFetcher(t), breaker, GrokOptions{BaseURL: srv.URL, APIKey: "k"})
			_, err := c.Complete(context.Background(), "s", "u")
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestGrokClient_OpenCircuitSkipsCall(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	breaker := circuit.NewRegistry()
	for i := 0; i < circuit.DefaultOptions().FailureThreshold; i++ {
		breaker.RecordFailure(ServiceXAI, errors.New("connection refused"))
	}

	c := NewGrokClient(createTestFetcher(t), breaker, GrokOptions{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, circuit.ErrCircuitOpen)
	assert.Zero(t, hits)
}
