package model

import "time"

// AnalysisReport is the structured output of the competitor analysis agent.
type AnalysisReport struct {
	KeyTopics    []string `json:"key_topics"`
	ContentGrade string   `json:"content_grade"`
	ContentGaps  []string `json:"content_gaps"`
	ToneAnalysis string   `json:"tone_analysis"`
}

// CacheEntry is a persisted analysis result keyed by canonicalized URL.
// A read is a hit only while now < ExpiresAt; an expired entry behaves
// exactly like absence and is overwritten by the next write.
type CacheEntry struct {
	Key       string         `json:"key"`
	Output    AnalysisReport `json:"output"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the entry is stale at the given instant.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
