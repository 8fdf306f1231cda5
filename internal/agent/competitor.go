package agent

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

const competitorPrompt = `Review this page as competitor content research.

Page URL: %s
Page content:
%s

Return a valid JSON object:
{"key_topics": ["<topic>"], "content_grade": "<letter grade, e.g. B+>", "content_gaps": ["<missing topic or weakness>"], "tone_analysis": "<one-paragraph characterization of the tone>"}`

// CompetitorAgent produces a content report for a competitor page. It is a
// single-step chain but runs through the same executor as the prospect
// chain.
type CompetitorAgent struct{}

func (CompetitorAgent) Name() string { return NameCompetitor }

func (CompetitorAgent) BuildPrompt(cc *ChainContext) (string, error) {
	return fmt.Sprintf(competitorPrompt, cc.URL, cc.Content), nil
}

// Report parses this agent's output from a finished chain.
func (a CompetitorAgent) Report(cc *ChainContext) (*model.AnalysisReport, error) {
	text, ok := cc.Output(a.Name())
	if !ok {
		return nil, eris.Errorf("agent: %s has not run", a.Name())
	}
	var r model.AnalysisReport
	if err := decodeJSON(text, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
