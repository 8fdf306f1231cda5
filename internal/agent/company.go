package agent

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

const companyPrompt = `Identify the company this page belongs to.

Page URL: %s
Page content:
%s

Return a valid JSON object:
{"company_name": "<company name, or empty string if the page names none>", "industry_summary": "<one-paragraph description of the industry>", "company_summary": "<one-paragraph description of what the company does>"}`

// CompanyAgent identifies the company behind a page. It runs first in the
// prospect chain; its output primes the detail agent.
type CompanyAgent struct{}

func (CompanyAgent) Name() string { return NameCompany }

func (CompanyAgent) BuildPrompt(cc *ChainContext) (string, error) {
	return fmt.Sprintf(companyPrompt, cc.URL, cc.Content), nil
}

// Profile parses this agent's output from a finished chain.
func (a CompanyAgent) Profile(cc *ChainContext) (*model.CompanyProfile, error) {
	text, ok := cc.Output(a.Name())
	if !ok {
		return nil, eris.Errorf("agent: %s has not run", a.Name())
	}
	var p model.CompanyProfile
	if err := decodeJSON(text, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
