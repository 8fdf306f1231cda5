package model

import "time"

// Person is a named contact found on a page, optionally with a role/title.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// ExtractedProspect is the merged output of the prospect extraction chain
// for one page.
type ExtractedProspect struct {
	CompanyName      string   `json:"company_name,omitempty"`
	People           []Person `json:"people"`
	Emails           []string `json:"emails"`
	Links            []string `json:"links"`
	IndustryKeywords []string `json:"industry_keywords"`
}

// Empty reports whether the prospect carries none of the fields that make it
// worth persisting. Empty prospects are discarded before persistence, never
// stored.
func (p ExtractedProspect) Empty() bool {
	return p.CompanyName == "" && len(p.People) == 0 && len(p.Emails) == 0
}

// ProspectRecord is a persisted prospect, stamped with its provenance.
type ProspectRecord struct {
	ID        string            `json:"id"`
	JobID     string            `json:"job_id"`
	SourceURL string            `json:"source_url"`
	Prospect  ExtractedProspect `json:"prospect"`
	CreatedAt time.Time         `json:"created_at"`
}

// CompanyProfile is the structured output of the company identification
// agent. CompanyName may be empty when the page names no company.
type CompanyProfile struct {
	CompanyName     string `json:"company_name,omitempty"`
	IndustrySummary string `json:"industry_summary"`
	CompanySummary  string `json:"company_summary"`
}

// ProspectDetails is the structured output of the prospect detail agent.
type ProspectDetails struct {
	People []Person `json:"people"`
	Emails []string `json:"emails"`
	Links  []string `json:"links"`
}