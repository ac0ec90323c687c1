package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor turns fetched markup into links and records for one page layout.
type Extractor interface {
	ExtractLinks(body []byte) ([]Link, error)
	ExtractRecord(body []byte) (Record, error)
}

// LinkCollector returns the links found on one listing page. Failures yield
// an empty slice.
type LinkCollector interface {
	Collect(ctx context.Context, page int) []Link
}

// DetailFetcher returns the record for one link. Failures yield an empty
// Record.
type DetailFetcher interface {
	Fetch(ctx context.Context, link Link) Record
}

// CheckpointStore persists harvest state between runs.
type CheckpointStore interface {
	Load(ctx context.Context) Checkpoint
	Save(ctx context.Context, cp Checkpoint) error
}

// Exporter receives the final record sequence.
type Exporter interface {
	Export(ctx context.Context, records []Record) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Policy gates outbound requests, e.g. by waiting for a rate-limit token.
type Policy interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes and verifies digests for integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
	Verify(data []byte, want string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
