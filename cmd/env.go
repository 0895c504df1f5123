package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compare-agent/internal/agent"
	"github.com/sells-group/compare-agent/internal/config"
	"github.com/sells-group/compare-agent/internal/snapshot"
	"github.com/sells-group/compare-agent/internal/store"
	"github.com/sells-group/compare-agent/pkg/anthropic"
	"github.com/sells-group/compare-agent/pkg/search"
)

// initStore opens the Postgres store from config.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is not configured")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
}

// buildRunner wires the orchestrator from config: capture provider,
// recall provider, offer provider, and the judge.
func buildRunner(st store.Store, c *config.Config) (*agent.Runner, error) {
	timeout := time.Duration(c.Capture.TimeoutSecs) * time.Second

	var provider snapshot.Provider
	switch c.Capture.Provider {
	case "http", "":
		provider = snapshot.NewHTTPProvider(timeout)
	case "browser":
		provider = snapshot.NewBrowserProvider(timeout)
	case "stub":
		provider = &snapshot.StaticProvider{}
	default:
		return nil, eris.Errorf("unknown capture provider %q", c.Capture.Provider)
	}

	var artifacts snapshot.ArtifactStore
	if c.Capture.RetainRaw {
		local, err := snapshot.NewLocalStore(c.Capture.ArtifactDir)
		if err != nil {
			return nil, err
		}
		artifacts = local
	}
	facade := snapshot.NewFacade(st, provider, artifacts, c.Capture.RetainRaw)

	var recall agent.CandidateRecallProvider
	switch c.Agent.RecallProvider {
	case "web_search", "":
		client := search.NewClient(c.Search.Key,
			search.WithBaseURL(c.Search.BaseURL),
			search.WithRateLimit(c.Search.RatePerSecond, c.Search.Burst))
		recall = agent.NewSearchRecall(client, c.Agent.MaxCandidates)
	case "stub":
		recall = &agent.StubRecall{}
	default:
		return nil, eris.Errorf("unknown recall provider %q", c.Agent.RecallProvider)
	}

	var offers agent.OfferProvider
	switch c.Agent.OfferProvider {
	case "stub", "":
		offers = &agent.StubOffers{}
	default:
		return nil, eris.Errorf("unknown offer provider %q", c.Agent.OfferProvider)
	}

	var llm anthropic.Client
	if c.Agent.JudgeStub {
		llm = agent.StubLLM{}
	} else {
		if c.Anthropic.Key == "" {
			return nil, eris.New("anthropic.key is not configured (set agent.judge_stub for offline runs)")
		}
		llm = anthropic.NewClient(c.Anthropic.Key)
	}
	judge := agent.NewJudge(llm, c.Anthropic.JudgeModel)

	return agent.NewRunner(st, facade, recall, offers, judge, c.Agent.MaxCandidates), nil
}
