package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector/internal/model"
)

func TestClaude_Haiku(t *testing.T) {
	c := NewCalculator(DefaultRates())

	got := c.Claude("claude-haiku-4-5-20251001", model.TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 1_000_000,
	})
	// 1M * $0.80 + 1M * $4.00
	assert.InDelta(t, 4.80, got, 0.001)
}

func TestClaude_WithCacheTokens(t *testing.T) {
	c := NewCalculator(DefaultRates())

	got := c.Claude("claude-sonnet-4-5-20250929", model.TokenUsage{
		InputTokens:         500_000,
		OutputTokens:        100_000,
		CacheCreationTokens: 200_000,
		CacheReadTokens:     300_000,
	})
	// input: 0.5M * $3.00 = $1.50
	// output: 0.1M * $15.00 = $1.50
	// cacheWrite: 0.2M * $3.00 * 1.25 = $0.75
	// cacheRead: 0.3M * $3.00 * 0.10 = $0.09
	assert.InDelta(t, 3.84, got, 0.001)
}

func TestClaude_UnknownModel(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Zero(t, c.Claude("unknown-model", model.TokenUsage{InputTokens: 1_000_000}))
}
