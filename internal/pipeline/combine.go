package pipeline

import (
	"strings"

	"github.com/sells-group/prospector/internal/model"
)

// industryStopWords are dropped when deriving keywords from the industry
// summary.
var industryStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "been": true, "have": true, "has": true, "had": true,
	"this": true, "that": true, "with": true, "from": true, "their": true,
	"its": true, "into": true, "also": true, "other": true, "such": true,
	"company": true, "companies": true, "industry": true, "business": true,
	"businesses": true, "provides": true, "services": true, "operates": true,
}

const maxIndustryKeywords = 8

// Combine merges the company and prospect-detail agent outputs into
// persistable prospects, applying the non-empty filter. A record with no
// company name, people, or emails is dropped, never stored.
func Combine(profile *model.CompanyProfile, details *model.ProspectDetails) []model.ExtractedProspect {
	p := model.ExtractedProspect{
		CompanyName:      strings.TrimSpace(profile.CompanyName),
		People:           details.People,
		Emails:           details.Emails,
		Links:            details.Links,
		IndustryKeywords: industryKeywords(profile.IndustrySummary),
	}
	if p.Empty() {
		return nil
	}
	return []model.ExtractedProspect{p}
}

// industryKeywords derives keywords from the industry summary: lowercase
// words of 4+ characters, stop words excluded, first occurrence order.
func industryKeywords(summary string) []string {
	words := strings.Fields(strings.ToLower(summary))
	var keywords []string
	seen := make(map[string]bool)
	for _, w := range words {
		w = strings.Trim(w, "?.,!;:'\"()[]{}")
		if len(w) < 4 || industryStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == maxIndustryKeywords {
			break
		}
	}
	return keywords
}
