package crawler

import (
	"net/http"
	"time"
)

// DefaultPageSize is the number of organizations a full listing page carries.
const DefaultPageSize = 10

// Link is the site-relative path of one organization detail page.
type Link string

// Checkpoint is the persisted harvest state. Records[i] belongs to Links[i];
// len(Records) never exceeds len(Links).
type Checkpoint struct {
	Links   []Link
	Records []Record
}

// PendingLinks returns the links that have no record yet.
func (c Checkpoint) PendingLinks() []Link {
	if len(c.Records) >= len(c.Links) {
		return nil
	}
	return c.Links[len(c.Records):]
}

// Normalize enforces len(Records) <= len(Links) by dropping surplus records.
// It reports whether anything was dropped.
func (c *Checkpoint) Normalize() bool {
	if len(c.Records) <= len(c.Links) {
		return false
	}
	c.Records = c.Records[:len(c.Links)]
	return true
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
