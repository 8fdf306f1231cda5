package worker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/agent"
	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/normalize"
	"github.com/sells-group/prospector/internal/pipeline"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/anthropic"
	"github.com/sells-group/prospector/pkg/renderer"
)

const testHTML = `<html><body><article>
<h1>About Acme Corp</h1>
<p>Acme Corp manufactures industrial widgets. CEO Jane Doe can be reached at
jane@acme.com for partnership inquiries.</p>
</article></body></html>`

type stubRenderer struct {
	html string
	err  error
}

func (s *stubRenderer) Render(context.Context, string) (*renderer.RenderResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &renderer.RenderResult{HTML: s.html}, nil
}

type scriptedClient struct {
	responses []scriptedResponse
	calls     int
}

type scriptedResponse struct {
	text string
	err  error
}

func (s *scriptedClient) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if s.calls >= len(s.responses) {
		return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: "{}"}}}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: r.text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 25},
	}, nil
}

func newTestPool(t *testing.T, r renderer.Client, client anthropic.Client) (*Pool, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	reg, err := agent.NewRegistry(config.AnthropicConfig{
		HaikuModel:  "claude-haiku-4-5-20251001",
		SonnetModel: "claude-sonnet-4-5-20250929",
	}, config.AgentsConfig{})
	require.NoError(t, err)

	exec := agent.NewExecutor(client, reg, 0)
	p := pipeline.New(r, normalize.New(exec), exec, st, nil, 16000)
	return NewPool(st, p, nil, 2, 8), st
}

func TestProcess_JobReachesComplete(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{text: "Acme Corp makes industrial widgets. CEO Jane Doe, jane@acme.com."},
		{text: `{"company_name": "Acme Corp", "industry_summary": "Widget manufacturing.", "company_summary": "Acme makes widgets."}`},
		{text: `{"people": [{"name": "Jane Doe", "role": "CEO"}], "emails": ["jane@acme.com"], "links": []}`},
	}}
	pool, st := newTestPool(t, &stubRenderer{html: testHTML}, client)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "https://acme.com/about")
	require.NoError(t, err)

	pool.process(ctx, job.ID)

	done, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, done.Status)
	assert.Empty(t, done.Error)

	require.NotNil(t, done.Result)
	assert.Equal(t, "extracted 1 prospect(s) from https://acme.com/about", done.Result.Summary)
	require.Len(t, done.Result.Prospects, 1)
	assert.Equal(t, []string{"jane@acme.com"}, done.Result.Prospects[0].Emails)
	assert.Equal(t, 375, done.Result.TotalTokens)
	assert.Greater(t, done.Result.TotalCost, 0.0)
}

func TestProcess_RenderFailureMarksJobFailed(t *testing.T) {
	client := &scriptedClient{}
	pool, st := newTestPool(t, &stubRenderer{err: &renderer.APIError{StatusCode: 503, Body: "unavailable"}}, client)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "https://down.example")
	require.NoError(t, err)

	pool.process(ctx, job.ID)

	failed, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "crawl failed for https://down.example")
	assert.Nil(t, failed.Result)

	// No model call made and nothing persisted.
	assert.Zero(t, client.calls)
	persisted, err := st.ListProspects(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestProcess_AgentFailureRecordsAgentName(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{text: "clean content"},
		{err: assert.AnError},
	}}
	pool, st := newTestPool(t, &stubRenderer{html: testHTML}, client)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "https://acme.com")
	require.NoError(t, err)

	pool.process(ctx, job.ID)

	failed, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "agent company failed to produce output")
}

func TestProcess_SecondClaimIsNoOp(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{text: "clean content"},
		{text: `{"company_name": "Acme Corp", "industry_summary": "", "company_summary": ""}`},
		{text: `{"people": [], "emails": [], "links": []}`},
	}}
	pool, st := newTestPool(t, &stubRenderer{html: testHTML}, client)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "https://acme.com")
	require.NoError(t, err)

	pool.process(ctx, job.ID)

	done, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, done.Status)
	callsAfterFirst := client.calls

	// The terminal state absorbs the second attempt before any pipeline work.
	pool.process(ctx, job.ID)

	again, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, again.Status)
	assert.Equal(t, callsAfterFirst, client.calls)
}

func TestSubmit_QueueFullDoesNotBlock(t *testing.T) {
	pool := &Pool{jobs: make(chan string, 1)}

	pool.Submit("job-1")
	pool.Submit("job-2") // dropped, picked up by the sweep later

	assert.Len(t, pool.jobs, 1)
	assert.Equal(t, "job-1", <-pool.jobs)
}
