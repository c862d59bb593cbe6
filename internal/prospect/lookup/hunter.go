package lookup

import (
	"context"
	"net/url"
	"strings"
	"time"

	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/prospect/circuit"
)

// Verification statuses produced locally, alongside Hunter's own
// (valid, invalid, accept_all, webmail, disposable, unknown).
const (
	StatusMXOnly        = "mx_only"
	StatusNoMX          = "no_mx"
	StatusInvalidFormat = "invalid_format"
	StatusUnknown       = "unknown"
)

type Verification struct {
	Email     string   `json:"email"`
	Status    string   `json:"status"`
	Result    string   `json:"result,omitempty"`
	Score     int      `json:"score"`
	MXRecords []string `json:"mxRecords,omitempty"`
	Source    string   `json:"source"`
}

// Deliverable is true for addresses worth sending to.
func (v Verification) Deliverable() bool {
	switch v.Status {
	case "valid", "accept_all", "webmail", StatusMXOnly:
		return true
	}
	return false
}

type mxLookup interface {
	Lookup(ctx context.Context, domain string) ([]string, error)
}

// HunterVerifier checks an address with Hunter.io and falls back to an MX
// lookup when no key is configured or Hunter is unavailable.
type HunterVerifier struct {
	adapter
	baseURL string
	apiKey  string
	mx      mxLookup
}

func NewHunterVerifier(fetcher Fetcher, breaker *circuit.Registry, log logger.Logger, baseURL, apiKey string, timeout time.Duration, mx mxLookup) *HunterVerifier {
	v := &HunterVerifier{
		adapter: newAdapter(fetcher, breaker, log, ServiceHunter, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		mx:      mx,
	}
	v.secret = apiKey
	return v
}

type hunterResponse struct {
	Data struct {
		Status string `json:"status"`
		Result string `json:"result"`
		Score  int    `json:"score"`
		MXRecs bool   `json:"mx_records"`
	} `json:"data"`
}

func (v *HunterVerifier) Verify(ctx context.Context, email string) Verification {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return Verification{Email: email, Status: StatusInvalidFormat, Source: "local"}
	}

	if v.apiKey != "" {
		if res, ok := v.hunter(ctx, email); ok {
			return res
		}
	}
	return v.mxFallback(ctx, email, email[at+1:])
}

func (v *HunterVerifier) hunter(ctx context.Context, email string) (Verification, bool) {
	target := v.baseURL + "/email-verifier?" + url.Values{"email": {email}, "api_key": {v.apiKey}}.Encode()
	resp, err := v.call(ctx, func(ctx context.Context) (*commonhttp.Response, error) {
		return v.fetcher.Get(ctx, target, map[string]string{"Accept": "application/json"})
	})
	if err != nil || !resp.OK() {
		return Verification{}, false
	}

	var parsed hunterResponse
	if err := resp.JSON(&parsed); err != nil || parsed.Data.Status == "" {
		return Verification{}, false
	}
	return Verification{
		Email:  email,
		Status: parsed.Data.Status,
		Result: parsed.Data.Result,
		Score:  parsed.Data.Score,
		Source: ServiceHunter,
	}, true
}

func (v *HunterVerifier) mxFallback(ctx context.Context, email, domain string) Verification {
	out := Verification{Email: email, Status: StatusUnknown, Source: "dns"}
	if v.mx == nil {
		return out
	}

	hosts, err := v.mx.Lookup(ctx, domain)
	if err != nil {
		v.logger.Info("mx lookup failed", map[string]interface{}{"domain": domain, "error": err.Error()})
		return out
	}
	if len(hosts) == 0 {
		out.Status = StatusNoMX
		return out
	}
	out.Status = StatusMXOnly
	out.MXRecords = hosts
	return out
}
