package agent

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

const prospectDetailPrompt = `Extract prospecting contact details from this page.

Company identification (from a previous analysis step):
%s

Page URL: %s
Page content:
%s

Return a valid JSON object:
{"people": [{"name": "<full name>", "role": "<title, or empty string>"}], "emails": ["<email address>"], "links": ["<absolute URL>"]}

Only include people, email addresses, and links that literally appear in the page content. Return empty arrays when nothing is found.`

// ProspectDetailAgent extracts people, emails, and links. It runs after
// CompanyAgent and feeds its output into the prompt.
type ProspectDetailAgent struct{}

func (ProspectDetailAgent) Name() string { return NameProspectDetail }

func (ProspectDetailAgent) BuildPrompt(cc *ChainContext) (string, error) {
	companyOut, ok := cc.Output(NameCompany)
	if !ok {
		return "", eris.New("agent: prospect_detail requires company output")
	}
	return fmt.Sprintf(prospectDetailPrompt, companyOut, cc.URL, cc.Content), nil
}

// Details parses this agent's output from a finished chain.
func (a ProspectDetailAgent) Details(cc *ChainContext) (*model.ProspectDetails, error) {
	text, ok := cc.Output(a.Name())
	if !ok {
		return nil, eris.Errorf("agent: %s has not run", a.Name())
	}
	var d model.ProspectDetails
	if err := decodeJSON(text, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
