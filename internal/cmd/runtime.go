package cmd

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/namelens/entryguard/internal/config"
	"github.com/namelens/entryguard/internal/core/checker"
	"github.com/namelens/entryguard/internal/core/engine"
	"github.com/namelens/entryguard/internal/core/forge"
	"github.com/namelens/entryguard/internal/core/store"
)

type pipelineOptions struct {
	noCache bool
}

// buildPipeline wires discovery, checkers and the shared rate limiter from
// cfg. A nil db disables both the response cache and persisted limiter state.
func buildPipeline(cfg *config.Config, db *store.Store, logger *logging.Logger, opts pipelineOptions) *engine.Pipeline {
	limiter := &engine.RateLimiter{}
	var responses checker.ResponseStore
	if db != nil {
		limiter.Store = db
		responses = db
	}
	limiter.Configure(cfg.RateLimits, cfg.RateLimitMargin)

	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	useCache := cfg.Cache.Enabled && !opts.noCache && responses != nil

	rank := &checker.RankChecker{
		Store:   responses,
		Client:  client,
		Limiter: limiter,
		CachePolicy: checker.CachePolicy{
			PositiveTTL: cfg.Cache.RankTTL,
			ErrorTTL:    cfg.Cache.ErrorTTL,
		},
		UseCache:  useCache,
		BaseURL:   cfg.Rank.BaseURL,
		UserAgent: cfg.HTTP.UserAgent,
		Logger:    logger,
		APIKeys:   cfg.Rank.APIKeys,
		Threshold: cfg.Rank.Threshold,
	}

	blocklist := &checker.BlocklistChecker{
		Lists:     cfg.Blocklist.Lists,
		Cache:     checker.NewBlocklistCache(cfg.Blocklist.CacheTTL, cfg.Blocklist.FailureTTL),
		Client:    client,
		Limiter:   limiter,
		UserAgent: cfg.HTTP.UserAgent,
		Logger:    logger,
	}

	handle := &checker.HandleChecker{
		Store:   responses,
		Client:  client,
		Limiter: limiter,
		CachePolicy: checker.CachePolicy{
			PositiveTTL: cfg.Cache.HandleTTL,
			ErrorTTL:    cfg.Cache.ErrorTTL,
		},
		UseCache:  useCache,
		BaseURL:   cfg.Handle.BaseURL,
		UserAgent: cfg.HTTP.UserAgent,
		Logger:    logger,
	}

	discoverer := &forge.GitHubDiscoverer{
		Owner:      cfg.GitHub.Owner,
		APIURL:     cfg.GitHub.APIURL,
		Token:      cfg.GitHub.Token,
		EntriesDir: cfg.GitHub.EntriesDir,
		UserAgent:  cfg.HTTP.UserAgent,
		Client:     client,
		Limiter:    limiter,
		Logger:     logger,
	}

	return &engine.Pipeline{
		Discoverer: discoverer,
		Orchestrator: &engine.Orchestrator{
			Rank:        rank,
			Blocklist:   blocklist,
			Handle:      handle,
			Logger:      logger,
			Concurrency: cfg.Workers,
		},
		Logger: logger,
	}
}
