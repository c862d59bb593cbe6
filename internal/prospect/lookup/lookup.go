// Package lookup holds the external data sources consulted while enriching a
// prospect. Every adapter is best effort: failures are logged and turned into
// empty results, never returned to the caller.
package lookup

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/prospect/circuit"
)

// Breaker keys, one per upstream.
const (
	ServiceSearch = "duckduckgo"
	ServiceRDAP   = "rdap"
	ServiceApollo = "apollo"
	ServicePlaces = "google_places"
	ServiceHunter = "hunter"
)

// SourceNoAPIKey marks an adapter that was skipped because its key is not configured.
const SourceNoAPIKey = "no_api_key"

// Fetcher is the part of the shared HTTP fetcher the adapters use.
type Fetcher interface {
	Get(ctx context.Context, target string, headers map[string]string) (*commonhttp.Response, error)
	Post(ctx context.Context, target string, body []byte, headers map[string]string) (*commonhttp.Response, error)
}

// adapter carries what every upstream call needs.
type adapter struct {
	fetcher Fetcher
	breaker *circuit.Registry
	logger  logger.Logger
	service string
	timeout time.Duration
	secret  string
	// htmlPages marks upstreams that answer with HTML and may serve a bot
	// challenge with a 2xx status.
	htmlPages bool
}

func newAdapter(fetcher Fetcher, breaker *circuit.Registry, log logger.Logger, service string, timeout time.Duration) adapter {
	return adapter{
		fetcher: fetcher,
		breaker: breaker,
		logger:  log.WithFields(map[string]interface{}{"service": service}),
		service: service,
		timeout: timeout,
	}
}

// call runs send under the breaker with the adapter timeout. A 404 is a valid
// "nothing here" answer and is not recorded as a failure.
func (a *adapter) call(ctx context.Context, send func(ctx context.Context) (*commonhttp.Response, error)) (*commonhttp.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := circuit.Execute(ctx, a.breaker, a.service, func(ctx context.Context) (*commonhttp.Response, error) {
		resp, err := send(ctx)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			return resp, nil
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}
		if a.htmlPages && circuit.BodyIndicatesBlock(resp.Text()) {
			return nil, circuit.ErrChallengePage
		}
		return resp, nil
	})
	if err != nil {
		a.logFailure(err)
		return nil, err
	}
	return resp, nil
}

func (a *adapter) logFailure(err error) {
	msg := err.Error()
	if a.secret != "" {
		msg = strings.ReplaceAll(msg, a.secret, "***")
	}
	fields := map[string]interface{}{"error": msg}

	switch {
	case errors.Is(err, circuit.ErrCircuitOpen):
		a.logger.Debug("lookup skipped", fields)
	case circuit.IsBlockingError(err), circuit.IsRateLimitError(err):
		a.logger.Warn("lookup blocked", fields)
	default:
		a.logger.Info("lookup failed", fields)
	}
}

func jsonHeaders(extra map[string]string) map[string]string {
	h := map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"Cache-Control": "no-cache",
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}
