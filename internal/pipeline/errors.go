package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrEmptyContent is returned when normalization leaves no usable text.
var ErrEmptyContent = eris.New("pipeline: no usable content after normalization")

// CrawlError wraps a failure of the external render service.
type CrawlError struct {
	URL string
	Err error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl failed for %s: %v", e.URL, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

// Agent failures are reported as *agent.Error by the chain executor and
// passed through unchanged, so callers can name the failing stage.

// PersistError wraps a failure to store extracted prospects. Extraction
// succeeded but the job still fails: partial persistence is never exposed.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist failed: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
