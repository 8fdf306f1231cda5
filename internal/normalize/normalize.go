// Package normalize turns rendered page HTML into clean text for the agent
// chains.
package normalize

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/agent"
)

// noiseSelector matches elements that carry no article content.
const noiseSelector = "script, style, noscript, iframe, svg, nav, footer, header, aside, form"

var whitespaceRe = regexp.MustCompile(`[ \t]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// Normalizer converts rendered HTML into clean natural-language text:
// structural cleanup locally, then an AI cleanup pass.
type Normalizer struct {
	exec *agent.Executor
}

// New creates a Normalizer that runs its AI cleanup through exec.
func New(exec *agent.Executor) *Normalizer {
	return &Normalizer{exec: exec}
}

// Normalize returns clean text for the page, or "" when the page yields no
// usable content. Failures degrade to "" rather than propagate; the caller
// decides whether empty content is fatal. The cleanup pass runs on cc so
// its token usage and cost count toward the chain that follows.
func (n *Normalizer) Normalize(ctx context.Context, cc *agent.ChainContext, html string) string {
	pre := PreClean(cc.URL, html)
	if pre == "" {
		return ""
	}

	cc.Content = pre
	if err := n.exec.RunChain(ctx, cc, cleanupAgent{}); err != nil {
		zap.L().Warn("normalize: ai cleanup failed",
			zap.String("url", cc.URL),
			zap.Error(err),
		)
		return ""
	}

	text, _ := cc.Output(agent.NameNormalizer)
	return strings.TrimSpace(text)
}

// PreClean strips structural noise from HTML and extracts the main article
// text. Returns "" when nothing readable remains.
func PreClean(pageURL, html string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelector).Remove()

	strippedHTML, err := doc.Html()
	if err != nil {
		strippedHTML = html
	}

	article, err := readability.FromReader(strings.NewReader(strippedHTML), parsed)
	if err == nil {
		if text := collapseWhitespace(article.TextContent); text != "" {
			return text
		}
	}

	// Readability found no article; fall back to the stripped document text.
	return collapseWhitespace(doc.Text())
}

// Truncate caps s at max characters. The cap applies to cleaned text, never
// raw HTML, so a cut cannot land mid-tag.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

func collapseWhitespace(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

const cleanupPrompt = `Clean the following web page text. Remove leftover navigation, cookie, and boilerplate fragments. Keep every name, email address, and URL verbatim.

Page URL: %s

%s`

// cleanupAgent is the AI cleanup pass, run through the shared executor so
// it gets the same throttling and cost attribution as the chains.
type cleanupAgent struct{}

func (cleanupAgent) Name() string { return agent.NameNormalizer }

func (cleanupAgent) BuildPrompt(cc *agent.ChainContext) (string, error) {
	return fmt.Sprintf(cleanupPrompt, cc.URL, cc.Content), nil
}
