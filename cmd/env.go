package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/harvestline/leadgen-cli/internal/config"
	"github.com/harvestline/leadgen-cli/internal/dedup"
	"github.com/harvestline/leadgen-cli/internal/enrich"
	"github.com/harvestline/leadgen-cli/internal/ingest"
	"github.com/harvestline/leadgen-cli/internal/requester"
	"github.com/harvestline/leadgen-cli/internal/scoring"
	"github.com/harvestline/leadgen-cli/internal/store"
	"github.com/harvestline/leadgen-cli/pkg/websearch"
)

// env holds the initialized store and the shared requester every command
// builds on. Callers defer env.Close().
type env struct {
	Store     store.Store
	Requester *requester.Requester
	Engine    *scoring.Engine
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens and migrates the store and wires the shared requester
// from configuration.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	weights := scoring.DefaultWeights()
	if cfg.Scoring.WeightsFile != "" {
		weights, err = scoring.LoadWeights(cfg.Scoring.WeightsFile)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	return &env{
		Store:     st,
		Requester: newRequester(cfg.Requester),
		Engine:    scoring.NewEngine(weights),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newRequester(rc config.RequesterConfig) *requester.Requester {
	return requester.New(requester.Options{
		UserAgents:     rc.UserAgents,
		MinDelay:       rc.MinDelay(),
		MaxDelay:       rc.MaxDelay(),
		Timeout:        time.Duration(rc.TimeoutSecs) * time.Second,
		ConnectTimeout: time.Duration(rc.ConnectTimeoutSecs) * time.Second,
		MaxRetries:     cfg.Source.MaxRetries,
		Seed:           rc.Seed,
	})
}

// newSource builds the registry cursor for the chosen acquisition path.
func newSource(e *env, useAPI, useCA bool, states []string, maxLeads int) ingest.Cursor {
	filter := ingest.Filter{States: states, MaxLeads: maxLeads}
	if useCA {
		return ingest.NewCDPHSource(e.Requester, ingest.CDPHOptions{
			DataURL:  cfg.Source.CAUrl,
			CacheDir: cfg.Source.CacheDir,
			CacheTTL: time.Duration(cfg.Source.CacheTTLHours) * time.Hour,
			Filter:   filter,
		})
	}
	if useAPI {
		return ingest.NewPagedSource(e.Requester, ingest.PagedOptions{
			CountURL:  cfg.Source.CountURL,
			SearchURL: cfg.Source.SearchURL,
			BatchSize: cfg.Source.BatchSize,
			Filter:    filter,
		})
	}
	return ingest.NewBulkSource(e.Requester, ingest.BulkOptions{
		BulkURL:  cfg.Source.BulkURL,
		CacheDir: cfg.Source.CacheDir,
		CacheTTL: time.Duration(cfg.Source.CacheTTLHours) * time.Hour,
		Filter:   filter,
	})
}

// newWriter builds the deduplicating writer.
func newWriter(e *env) *dedup.Writer {
	return dedup.NewWriter(e.Store)
}

// newCoordinator assembles the full enrichment chain.
func newCoordinator(e *env) *enrich.Coordinator {
	finder := websearch.NewFinder([]websearch.Engine{
		websearch.NewDuckDuckGo(e.Requester, ""),
		websearch.NewBing(e.Requester, ""),
	}, cfg.Enrich.DirectoryBlocklist...)

	chain := []enrich.Enricher{
		enrich.NewWebsiteFinder(finder),
		enrich.NewContactExtractor(e.Requester),
		enrich.NewTechFingerprinter(e.Requester, nil),
		enrich.NewClassifier(),
	}

	return enrich.NewCoordinator(e.Store, e.Engine, chain, enrich.Options{
		Concurrency:  cfg.Enrich.Concurrency,
		StageTimeout: time.Duration(cfg.Enrich.StageTimeoutSecs) * time.Second,
		HomeCountry:  cfg.Enrich.HomeCountry,
	})
}
