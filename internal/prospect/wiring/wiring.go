// Package wiring builds the enrichment stack from configuration. It is shared
// by the worker manager and the batch tool.
package wiring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"prospect-workers/internal/common/config"
	commonhttp "prospect-workers/internal/common/http"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/prospect/batch"
	"prospect-workers/internal/prospect/circuit"
	"prospect-workers/internal/prospect/crawl"
	"prospect-workers/internal/prospect/lookup"
	"prospect-workers/internal/prospect/outreach"
	"prospect-workers/internal/prospect/pipeline"
	"prospect-workers/internal/prospect/resolve"
	"prospect-workers/internal/prospect/store"
)

// Backends are the already-connected stores. Redis and Elasticsearch are optional.
type Backends struct {
	DB    *sql.DB
	Redis *redis.Client
	ES    *elasticsearch.Client
}

type Components struct {
	Breakers  *circuit.Registry
	Store     *store.ProspectStore
	Pipeline  *pipeline.Pipeline
	Verifier  *lookup.HunterVerifier
	Generator *outreach.Generator
}

// Build wires fetchers, breakers, adapters and stores into a pipeline.
func Build(cfg *config.Config, b Backends, log logger.Logger) (*Components, error) {
	breakers := circuit.NewRegistry(
		circuit.WithOptions(circuit.Options{
			FailureThreshold:       cfg.Circuit.FailureThreshold,
			SuccessThreshold:       cfg.Circuit.SuccessThreshold,
			OpenDuration:           config.GetDuration(cfg.Circuit.OpenDuration),
			RateLimitBase:          config.GetDuration(cfg.Circuit.RateLimitBase),
			RateLimitMaxMultiplier: cfg.Circuit.RateLimitMaxMultiplier,
		}),
		circuit.WithLogger(log),
	)

	siteFetcher, err := commonhttp.NewFetcher(commonhttp.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    config.GetDuration(cfg.Enrichment.CrawlTimeout),
		MaxRetries: cfg.Fetch.MaxRetries,
		RetryDelay: config.GetDuration(cfg.Fetch.RetryDelay),
		MaxBytes:   cfg.Fetch.MaxBytes,
		Proxy: commonhttp.ProxyConfig{
			Mode:          commonhttp.ProxyMode(cfg.Fetch.Proxy.Mode),
			ScraperAPIKey: cfg.Fetch.Proxy.ScraperAPIKey,
			ScraperAPIURL: cfg.Fetch.Proxy.ScraperAPIURL,
			CustomProxies: cfg.Fetch.Proxy.CustomProxies,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("site fetcher: %w", err)
	}

	// Third-party APIs are never routed through the scraping proxy.
	apiFetcher, err := commonhttp.NewFetcher(commonhttp.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		MaxRetries: cfg.Fetch.MaxRetries,
		RetryDelay: config.GetDuration(cfg.Fetch.RetryDelay),
		MaxBytes:   cfg.Fetch.MaxBytes,
		Proxy:      commonhttp.ProxyConfig{Mode: commonhttp.ProxyNone},
	})
	if err != nil {
		return nil, fmt.Errorf("api fetcher: %w", err)
	}

	apis := cfg.APIs
	deps := pipeline.Deps{
		Crawler: crawl.New(siteFetcher, breakers, log,
			crawl.WithMaxSubpages(cfg.Enrichment.MaxSubpages),
			crawl.WithPageTimeout(config.GetDuration(cfg.Enrichment.CrawlTimeout)),
		),
		Search: lookup.NewSearchAdapter(siteFetcher, breakers, log, apis.Search.BaseURL, config.GetDuration(apis.Search.Timeout)),
		RDAP:   lookup.NewRDAPAdapter(apiFetcher, breakers, log, apis.RDAP.BaseURL, config.GetDuration(apis.RDAP.Timeout)),
		People: lookup.NewApolloAdapter(apiFetcher, breakers, log, apis.Apollo.BaseURL, apis.Apollo.APIKey, config.GetDuration(apis.Apollo.Timeout)),
		Places: lookup.NewPlacesAdapter(apiFetcher, breakers, log, apis.GooglePlaces.BaseURL, apis.GooglePlaces.APIKey, config.GetDuration(apis.GooglePlaces.Timeout)),
	}

	prospects := store.NewProspectStore(b.DB, log)
	deps.Recorder = prospects
	if b.Redis != nil {
		deps.Cache = store.NewExtractCache(b.Redis, time.Duration(cfg.Enrichment.ExtractCacheTTL)*time.Second, log)
	}
	if b.ES != nil {
		deps.Indexer = store.NewProspectIndex(b.ES, cfg.Database.Elasticsearch.ProspectIndex, log)
	}

	resolver := resolve.New(resolve.Policy(cfg.Enrichment.EmailPolicy), log)

	verifier := lookup.NewHunterVerifier(apiFetcher, breakers, log,
		apis.Hunter.BaseURL, apis.Hunter.APIKey, config.GetDuration(apis.Hunter.Timeout),
		lookup.NewMXResolver(config.GetDuration(apis.Hunter.Timeout)),
	)

	var llm outreach.Completer
	if apis.XAI.APIKey != "" {
		llm = outreach.NewGrokClient(apiFetcher, breakers, outreach.GrokOptions{
			BaseURL:     apis.XAI.BaseURL,
			APIKey:      apis.XAI.APIKey,
			Model:       apis.XAI.Model,
			MaxTokens:   apis.XAI.MaxTokens,
			Temperature: apis.XAI.Temperature,
			Timeout:     config.GetDuration(apis.XAI.Timeout),
		})
	}
	generator := outreach.NewGenerator(llm, outreach.Sender{
		Name:    cfg.Outreach.SenderName,
		Email:   cfg.Outreach.SenderEmail,
		Product: cfg.Outreach.Product,
	}, log)

	return &Components{
		Breakers:  breakers,
		Store:     prospects,
		Pipeline:  pipeline.New(deps, resolver, log),
		Verifier:  verifier,
		Generator: generator,
	}, nil
}

// BatchOptions maps the enrichment section onto runner options.
func BatchOptions(cfg *config.Config) batch.Options {
	return batch.Options{
		Workers:        cfg.Enrichment.BatchSize,
		BatchSize:      cfg.Enrichment.BatchSize,
		BatchDelay:     config.GetDuration(cfg.Enrichment.BatchDelay),
		RateLimitRPS:   cfg.Enrichment.RateLimitRPS,
		MaxRetries:     cfg.Fetch.MaxRetries,
		// One crawl can touch the homepage plus every subpage.
		RequestTimeout: time.Duration(cfg.Enrichment.MaxSubpages+2) * config.GetDuration(cfg.Enrichment.CrawlTimeout),
	}
}
