// Package analysis implements the synchronous, cache-eligible competitor
// analysis entry point: canonicalize the URL, consult the cache, and only
// on a miss run the pipeline and write the result back.
package analysis

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/internal/pipeline"
	"github.com/sells-group/prospector/internal/store"
)

// ErrInvalidURL marks a request URL that cannot be canonicalized. The
// server maps it to a 400.
var ErrInvalidURL = eris.New("analysis: invalid url")

// Service runs competitor analysis with TTL caching.
type Service struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	metrics  *monitoring.Metrics
	ttl      time.Duration
}

// NewService wires the analysis service. metrics may be nil.
func NewService(st store.Store, p *pipeline.Pipeline, metrics *monitoring.Metrics, ttl time.Duration) *Service {
	return &Service{store: st, pipeline: p, metrics: metrics, ttl: ttl}
}

// Analyze returns the competitor content report for a URL. The second
// return value reports whether the result came from the cache; on a hit the
// renderer and every agent call are skipped.
func (s *Service) Analyze(ctx context.Context, rawURL string) (*model.AnalysisReport, bool, error) {
	key, err := CanonicalizeURL(rawURL)
	if err != nil {
		return nil, false, err
	}

	entry, err := s.store.GetAnalysis(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if entry != nil {
		s.metrics.CacheLookup(true)
		zap.L().Debug("analysis cache hit", zap.String("key", key))
		return &entry.Output, true, nil
	}
	s.metrics.CacheLookup(false)

	report, _, err := s.pipeline.RunCompetitor(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if err := s.store.SetAnalysis(ctx, key, *report, s.ttl); err != nil {
		// The report is already computed; a cache write failure only costs
		// the next caller a re-run.
		zap.L().Warn("analysis cache write failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	return report, false, nil
}

// CanonicalizeURL derives the cache key for a request URL: trim whitespace,
// lowercase scheme and host, drop the fragment and any trailing slash.
func CanonicalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(ErrInvalidURL, "parse %q: %v", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", eris.Wrapf(ErrInvalidURL, "%q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}
