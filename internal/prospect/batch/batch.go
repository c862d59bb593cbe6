// Package batch enriches many prospects with bounded concurrency. Prospects are
// processed in small batches with a pause in between so free-tier API quotas
// are respected, and a global rate limiter caps the request rate across workers.
package batch

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/pipeline"
)

type FailurePolicy int

const (
	// FailurePolicyPartialOutput records per-prospect errors and keeps going.
	FailurePolicyPartialOutput FailurePolicy = iota
	// FailurePolicyFailFast stops at the first failed prospect.
	FailurePolicyFailFast
)

type Enricher interface {
	Enrich(ctx context.Context, p models.Prospect) (models.EnrichedProspect, error)
}

type Options struct {
	// Workers bounds concurrency inside a batch.
	Workers int
	// BatchSize is how many prospects are started before pausing for BatchDelay.
	BatchSize  int
	BatchDelay time.Duration

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64

	MaxRetries     int
	RequestTimeout time.Duration
	FailurePolicy  FailurePolicy

	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffJitterFrac float64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.BatchSize <= 0 {
		o.BatchSize = o.Workers
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 2 * time.Minute
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Second
	}
	if o.BackoffJitterFrac < 0 {
		o.BackoffJitterFrac = 0
	}
	return o
}

type Output struct {
	ProspectID string
	Result     models.EnrichedProspect
	Err        error
}

// Summary counts outcomes of a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	ByTier    map[string]int
}

func Summarize(out []Output) Summary {
	s := Summary{Total: len(out), ByTier: map[string]int{}}
	for _, o := range out {
		switch {
		case o.Err != nil:
			s.Failed++
		case o.Result.RunID == "":
			s.Skipped++
		default:
			s.Succeeded++
			s.ByTier[o.Result.Tier]++
		}
	}
	return s
}

type Runner struct {
	enricher Enricher
	opts     Options
	logger   logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRunner(enricher Enricher, opts Options, log logger.Logger) *Runner {
	return &Runner{
		enricher: enricher,
		opts:     opts.withDefaults(),
		logger:   log.WithFields(map[string]interface{}{"component": "batch-runner"}),
		sleep:    sleepCtx,
	}
}

// Run enriches prospects and returns one Output per input, in input order.
// Under FailurePolicyFailFast the first error is returned and no output is.
func (r *Runner) Run(ctx context.Context, prospects []models.Prospect) ([]Output, error) {
	opts := r.opts

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Output, len(prospects))
	for i, p := range prospects {
		out[i].ProspectID = p.ID
	}

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for start := 0; start < len(prospects); start += opts.BatchSize {
		if start > 0 && opts.BatchDelay > 0 {
			if err := r.sleep(runCtx, opts.BatchDelay); err != nil {
				break
			}
		}
		if runCtx.Err() != nil {
			break
		}

		end := start + opts.BatchSize
		if end > len(prospects) {
			end = len(prospects)
		}
		r.logger.Debug("starting batch", map[string]interface{}{"from": start, "to": end, "total": len(prospects)})

		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < opts.Workers && w < end-start; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range jobs {
					if runCtx.Err() != nil {
						return
					}
					res, err := r.enrichWithRetry(runCtx, prospects[idx], limiter)
					out[idx].Result = res
					out[idx].Err = err
					if err != nil {
						r.logger.Warn("prospect enrichment failed", map[string]interface{}{
							"prospectId": prospects[idx].ID,
							"error":      err.Error(),
						})
						if opts.FailurePolicy == FailurePolicyFailFast {
							fail(err)
							return
						}
					}
				}
			}()
		}

	feed:
		for idx := start; idx < end; idx++ {
			select {
			case jobs <- idx:
			case <-runCtx.Done():
				break feed
			}
		}
		close(jobs)
		wg.Wait()
	}

	if opts.FailurePolicy == FailurePolicyFailFast {
		mu.Lock()
		err := firstErr
		mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *Runner) enrichWithRetry(ctx context.Context, p models.Prospect, limiter *rate.Limiter) (models.EnrichedProspect, error) {
	opts := r.opts
	var lastErr error
	attempts := 1 + opts.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.EnrichedProspect{}, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return models.EnrichedProspect{}, err
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
		res, err := r.enricher.Enrich(reqCtx, p)
		cancel()
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return res, ctx.Err()
		}
		lastErr = err
		if !isTransient(err) || attempt == attempts-1 {
			return res, err
		}

		if err := r.sleep(ctx, backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)); err != nil {
			return res, err
		}
	}
	return models.EnrichedProspect{}, lastErr
}

// isTransient treats timeouts and persistence failures as worth another try.
// Invalid input never is.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, pipeline.ErrInvalidProspect) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pipeline.ErrPersistFailed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
