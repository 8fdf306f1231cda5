package normalize

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/agent"
	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/pkg/anthropic"
)

const samplePage = `<html><head><title>Acme</title><style>body{color:red}</style></head>
<body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<script>trackVisit()</script>
<article>
<h1>About Acme Corp</h1>
<p>Acme Corp manufactures widgets for industrial customers. Acme has been
family owned since 1962 and today serves clients across three continents
from its headquarters in Springfield.</p>
<p>Contact our CEO Jane Doe at jane@acme.com for partnership inquiries, or
reach the sales team through the form below. We respond to every inquiry
within one business day.</p>
</article>
<footer>© 2026 Acme Corp · Privacy Policy</footer>
</body></html>`

type stubClient struct {
	text string
	err  error
}

func (s *stubClient) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.text}},
	}, nil
}

func newNormalizer(t *testing.T, client anthropic.Client) *Normalizer {
	t.Helper()
	reg, err := agent.NewRegistry(config.AnthropicConfig{
		HaikuModel:  "claude-haiku-4-5-20251001",
		SonnetModel: "claude-sonnet-4-5-20250929",
	}, config.AgentsConfig{})
	require.NoError(t, err)
	return New(agent.NewExecutor(client, reg, 0))
}

func TestPreClean_StripsNoise(t *testing.T) {
	text := PreClean("https://acme.com/about", samplePage)

	assert.Contains(t, text, "Acme Corp manufactures widgets")
	assert.Contains(t, text, "jane@acme.com")
	assert.NotContains(t, text, "trackVisit")
	assert.NotContains(t, text, "color:red")
}

func TestPreClean_EmptyDocument(t *testing.T) {
	assert.Equal(t, "", PreClean("https://acme.com", "<html><body></body></html>"))
	assert.Equal(t, "", PreClean("https://acme.com", "<html><body><script>x()</script></body></html>"))
}

func TestNormalize_UsesAICleanup(t *testing.T) {
	n := newNormalizer(t, &stubClient{text: "Acme Corp makes widgets. CEO: Jane Doe (jane@acme.com)."})

	cc := agent.NewChainContext("https://acme.com/about", "")
	got := n.Normalize(context.Background(), cc, samplePage)
	assert.Equal(t, "Acme Corp makes widgets. CEO: Jane Doe (jane@acme.com).", got)
}

func TestNormalize_AIFailureDegradesToEmpty(t *testing.T) {
	n := newNormalizer(t, &stubClient{err: assert.AnError})

	cc := agent.NewChainContext("https://acme.com/about", "")
	got := n.Normalize(context.Background(), cc, samplePage)
	assert.Equal(t, "", got)
}

func TestNormalize_NoUsableContentSkipsAI(t *testing.T) {
	// The stub would return text, but an empty pre-clean must short-circuit.
	n := newNormalizer(t, &stubClient{text: "should never be used"})

	cc := agent.NewChainContext("https://acme.com", "")
	got := n.Normalize(context.Background(), cc, "<html><body></body></html>")
	assert.Equal(t, "", got)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 20000)

	assert.Len(t, Truncate(long, 16000), 16000)
	assert.Equal(t, "short", Truncate("short", 16000))
	assert.Equal(t, long, Truncate(long, 0))
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  line one\t\tpadded  \n\n\n\n  line two  "
	assert.Equal(t, "line one padded\n\nline two", collapseWhitespace(in))
}
