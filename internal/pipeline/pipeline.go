// Package pipeline composes render, normalization, the agent chains, and
// persistence into single orchestrator calls.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/agent"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/internal/normalize"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/renderer"
)

// Pipeline runs the extraction chains end to end. One Pipeline is shared by
// the worker pool and the analysis service.
type Pipeline struct {
	renderer        renderer.Client
	normalizer      *normalize.Normalizer
	exec            *agent.Executor
	store           store.Store
	metrics         *monitoring.Metrics
	maxContentChars int
}

// Output is the result of one prospect pipeline run.
type Output struct {
	Prospects []model.ExtractedProspect
	Records   []model.ProspectRecord
	Summary   string
	Usage     model.TokenUsage
	CostUSD   float64
}

// New wires a Pipeline. metrics may be nil.
func New(r renderer.Client, n *normalize.Normalizer, exec *agent.Executor, st store.Store, metrics *monitoring.Metrics, maxContentChars int) *Pipeline {
	if maxContentChars <= 0 {
		maxContentChars = 16000
	}
	return &Pipeline{
		renderer:        r,
		normalizer:      n,
		exec:            exec,
		store:           st,
		metrics:         metrics,
		maxContentChars: maxContentChars,
	}
}

// RunProspect executes the prospect chain for a job URL and persists the
// extracted prospects atomically. Zero persistable prospects is a valid
// outcome, not an error.
func (p *Pipeline) RunProspect(ctx context.Context, jobID, url string) (*Output, error) {
	start := time.Now()

	cc, err := p.prepare(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := p.exec.RunChain(ctx, cc, agent.CompanyAgent{}, agent.ProspectDetailAgent{}); err != nil {
		return nil, err
	}

	profile, err := agent.CompanyAgent{}.Profile(cc)
	if err != nil {
		return nil, &agent.Error{Agent: agent.NameCompany, Err: err}
	}
	details, err := agent.ProspectDetailAgent{}.Details(cc)
	if err != nil {
		return nil, &agent.Error{Agent: agent.NameProspectDetail, Err: err}
	}

	prospects := Combine(profile, details)

	var records []model.ProspectRecord
	if len(prospects) > 0 {
		records, err = p.store.SaveProspects(ctx, jobID, url, prospects)
		if err != nil {
			return nil, &PersistError{Err: err}
		}
	}

	p.metrics.ObservePipeline("prospect", time.Since(start))
	zap.L().Info("prospect pipeline finished",
		zap.String("job_id", jobID),
		zap.String("url", url),
		zap.Int("prospects", len(prospects)),
		zap.Int("total_tokens", cc.Usage.Total()),
		zap.Duration("duration", time.Since(start)),
	)

	return &Output{
		Prospects: prospects,
		Records:   records,
		Summary:   fmt.Sprintf("extracted %d prospect(s) from %s", len(prospects), url),
		Usage:     cc.Usage,
		CostUSD:   cc.Cost,
	}, nil
}

// RunCompetitor executes the single-agent competitor analysis chain. It
// does not touch the cache; the analysis service layers caching on top.
func (p *Pipeline) RunCompetitor(ctx context.Context, url string) (*model.AnalysisReport, model.TokenUsage, error) {
	start := time.Now()

	cc, err := p.prepare(ctx, url)
	if err != nil {
		return nil, model.TokenUsage{}, err
	}

	if err := p.exec.RunChain(ctx, cc, agent.CompetitorAgent{}); err != nil {
		return nil, cc.Usage, err
	}

	report, err := agent.CompetitorAgent{}.Report(cc)
	if err != nil {
		return nil, cc.Usage, &agent.Error{Agent: agent.NameCompetitor, Err: err}
	}

	p.metrics.ObservePipeline("competitor", time.Since(start))
	zap.L().Info("competitor pipeline finished",
		zap.String("url", url),
		zap.Int("total_tokens", cc.Usage.Total()),
		zap.Duration("duration", time.Since(start)),
	)

	return report, cc.Usage, nil
}

// prepare renders the page, normalizes its content, and applies the content
// cap. The cap is applied to cleaned text, never raw HTML.
func (p *Pipeline) prepare(ctx context.Context, url string) (*agent.ChainContext, error) {
	rendered, err := p.renderer.Render(ctx, url)
	if err != nil {
		return nil, &CrawlError{URL: url, Err: err}
	}

	cc := agent.NewChainContext(url, "")
	text := p.normalizer.Normalize(ctx, cc, rendered.HTML)
	if text == "" {
		return nil, ErrEmptyContent
	}
	cc.Content = normalize.Truncate(text, p.maxContentChars)

	return cc, nil
}
