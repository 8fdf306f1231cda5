// Package agent implements the sequential LLM agent chains that turn
// normalized page content into prospect and competitor records.
package agent

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospector/internal/cost"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/pkg/anthropic"
)

// Agent is a single step in a chain. BuildPrompt may read the outputs of
// earlier agents from the ChainContext, which is how chained context flows
// forward.
type Agent interface {
	Name() string
	BuildPrompt(cc *ChainContext) (string, error)
}

// Error reports which agent in a chain failed.
type Error struct {
	Agent string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s failed to produce output: %v", e.Agent, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ChainContext carries the shared input and the accumulated outputs of one
// chain run. Outputs are keyed by agent name and hold the raw model text.
type ChainContext struct {
	URL     string
	Content string
	Usage   model.TokenUsage
	Cost    float64

	outputs map[string]string
}

// NewChainContext creates a context for a chain run over normalized page
// content.
func NewChainContext(url, content string) *ChainContext {
	return &ChainContext{
		URL:     url,
		Content: content,
		outputs: make(map[string]string),
	}
}

// Output returns the raw text produced by a previously executed agent.
func (cc *ChainContext) Output(name string) (string, bool) {
	text, ok := cc.outputs[name]
	return text, ok
}

func (cc *ChainContext) setOutput(name, text string) {
	cc.outputs[name] = text
}

// Executor runs agents sequentially against the Anthropic API, throttled by
// a shared rate limiter.
type Executor struct {
	client  anthropic.Client
	reg     *Registry
	limiter *rate.Limiter
	metrics *monitoring.Metrics
	costs   *cost.Calculator
}

// SetMetrics attaches Prometheus instrumentation; a nil receiver on the
// metrics side is a no-op, so tests can skip this.
func (e *Executor) SetMetrics(m *monitoring.Metrics) {
	e.metrics = m
}

// NewExecutor creates an executor. requestsPerSec <= 0 disables throttling.
func NewExecutor(client anthropic.Client, reg *Registry, requestsPerSec float64) *Executor {
	var limiter *rate.Limiter
	if requestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), 1)
	}
	return &Executor{
		client:  client,
		reg:     reg,
		limiter: limiter,
		costs:   cost.NewCalculator(cost.DefaultRates()),
	}
}

// RunChain executes the agents in order. The first failure aborts the chain
// so a later agent never runs against a missing predecessor output.
func (e *Executor) RunChain(ctx context.Context, cc *ChainContext, agents ...Agent) error {
	for _, a := range agents {
		if err := e.run(ctx, cc, a); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) run(ctx context.Context, cc *ChainContext, a Agent) error {
	def, err := e.reg.Definition(a.Name())
	if err != nil {
		return err
	}

	prompt, err := a.BuildPrompt(cc)
	if err != nil {
		return &Error{Agent: a.Name(), Err: err}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return &Error{Agent: a.Name(), Err: err}
		}
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     def.Model,
		MaxTokens: def.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(def.System),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	e.metrics.AgentCall(a.Name(), err)
	if err != nil {
		return &Error{Agent: a.Name(), Err: err}
	}

	text := resp.FirstText()
	if text == "" {
		return &Error{Agent: a.Name(), Err: eris.New("empty response text")}
	}

	usage := model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	}
	cc.Usage.Add(usage)
	cc.Cost += e.costs.Claude(def.Model, usage)
	resp.Usage.LogCost(def.Model, a.Name())

	zap.L().Debug("agent completed",
		zap.String("agent", a.Name()),
		zap.String("url", cc.URL),
		zap.Int("output_chars", len(text)),
	)

	cc.setOutput(a.Name(), text)
	return nil
}
