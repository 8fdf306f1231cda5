package agent

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospector/internal/config"
)

// Agent names, also the keys in the overrides file.
const (
	NameCompany        = "company"
	NameProspectDetail = "prospect_detail"
	NameCompetitor     = "competitor"
	NameNormalizer     = "normalizer"
)

const companySystem = `You are a B2B prospecting analyst. You identify the company behind a web page and describe its industry and what it does. Return valid JSON only. Use "" for fields not supported by the page content; never invent facts.`

const prospectDetailSystem = `You are a B2B prospecting analyst extracting contact details from a web page. Return valid JSON only. Only include people, email addresses, and links that literally appear in the page content.`

const competitorSystem = `You are a content strategist reviewing a competitor's web page. You assess its key topics, grade its content quality, list content gaps, and characterize its tone. Return valid JSON only.`

const normalizerSystem = `You clean web page text for downstream analysis. Remove navigation fragments, cookie banners, boilerplate, and repeated menus. Preserve headings, body copy, names, email addresses, and URLs verbatim. Return only the cleaned text, no commentary.`

// Definition is the resolved prompt configuration for one agent.
type Definition struct {
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
	System    string `yaml:"system"`
}

// Registry resolves agent definitions, applying optional YAML overrides on
// top of the built-in defaults.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds the default definitions from config and merges in the
// overrides file when one is configured.
func NewRegistry(aiCfg config.AnthropicConfig, agentsCfg config.AgentsConfig) (*Registry, error) {
	maxTokens := int64(aiCfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	defs := map[string]Definition{
		NameCompany:        {Model: aiCfg.HaikuModel, MaxTokens: maxTokens, System: companySystem},
		NameProspectDetail: {Model: aiCfg.SonnetModel, MaxTokens: maxTokens, System: prospectDetailSystem},
		NameCompetitor:     {Model: aiCfg.SonnetModel, MaxTokens: maxTokens, System: competitorSystem},
		NameNormalizer:     {Model: aiCfg.HaikuModel, MaxTokens: 8192, System: normalizerSystem},
	}

	if agentsCfg.OverridesPath != "" {
		if err := applyOverrides(defs, agentsCfg.OverridesPath); err != nil {
			return nil, err
		}
	}

	return &Registry{defs: defs}, nil
}

// Definition returns the resolved definition for an agent name.
func (r *Registry) Definition(name string) (Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, eris.Errorf("agent: no definition for %q", name)
	}
	return def, nil
}

// applyOverrides merges a YAML file of per-agent overrides into defs.
// Zero-valued override fields keep the default.
func applyOverrides(defs map[string]Definition, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "agent: read overrides %s", path)
	}

	var overrides map[string]Definition
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return eris.Wrapf(err, "agent: parse overrides %s", path)
	}

	for name, o := range overrides {
		def, ok := defs[name]
		if !ok {
			return eris.Errorf("agent: override for unknown agent %q", name)
		}
		if o.Model != "" {
			def.Model = o.Model
		}
		if o.MaxTokens > 0 {
			def.MaxTokens = o.MaxTokens
		}
		if o.System != "" {
			def.System = o.System
		}
		defs[name] = def
	}
	return nil
}
