// Package checkpoint persists the links and records sequences between runs.
//
// Each sequence is stored as its own blob wrapped in a small envelope that
// carries a format version, the item count, and a digest of the items (SHA-256
// unless Config.Hasher overrides it). Anything that fails those checks is
// treated as absent, so a damaged checkpoint costs a re-fetch instead of
// aborting the run.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
	"github.com/JakeFAU/orginfo-harvester/internal/hash/sha256"
)

// Version is the envelope format written by this package.
const Version = 1

// Kind names the sequence an envelope holds.
type Kind string

const (
	// KindLinks marks the links sequence.
	KindLinks Kind = "links"
	// KindRecords marks the records sequence.
	KindRecords Kind = "records"
)

// ErrUnreadable wraps every decode failure.
var ErrUnreadable = errors.New("checkpoint unreadable")

type envelope struct {
	Version  int             `json:"version"`
	Kind     Kind            `json:"kind"`
	Count    int             `json:"count"`
	Checksum string          `json:"checksum"`
	Items    json.RawMessage `json:"items"`
}

// Codec encodes and decodes sequence envelopes.
type Codec struct {
	hasher crawler.Hasher
}

// NewCodec returns a Codec that checksums items with h. A nil h selects
// SHA-256.
func NewCodec(h crawler.Hasher) *Codec {
	if h == nil {
		h = sha256.New()
	}
	return &Codec{hasher: h}
}

// EncodeLinks serializes the links sequence.
func (c *Codec) EncodeLinks(links []crawler.Link) ([]byte, error) {
	if links == nil {
		links = []crawler.Link{}
	}
	return encode(c, KindLinks, links, len(links))
}

// DecodeLinks parses a links envelope.
func (c *Codec) DecodeLinks(data []byte) ([]crawler.Link, error) {
	var links []crawler.Link
	if err := decode(c, KindLinks, data, &links, func() int { return len(links) }); err != nil {
		return nil, err
	}
	return links, nil
}

// EncodeRecords serializes the records sequence. Empty records encode as {}.
func (c *Codec) EncodeRecords(records []crawler.Record) ([]byte, error) {
	if records == nil {
		records = []crawler.Record{}
	}
	return encode(c, KindRecords, records, len(records))
}

// DecodeRecords parses a records envelope.
func (c *Codec) DecodeRecords(data []byte) ([]crawler.Record, error) {
	var records []crawler.Record
	if err := decode(c, KindRecords, data, &records, func() int { return len(records) }); err != nil {
		return nil, err
	}
	return records, nil
}

func encode(c *Codec, kind Kind, items any, count int) ([]byte, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	sum, err := c.hasher.Hash(raw)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", kind, err)
	}
	out, err := json.Marshal(envelope{
		Version:  Version,
		Kind:     kind,
		Count:    count,
		Checksum: sum,
		Items:    raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	return out, nil
}

func decode(c *Codec, kind Kind, data []byte, dst any, count func() int) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: parse envelope: %v", ErrUnreadable, err)
	}
	switch {
	case env.Version != Version:
		return fmt.Errorf("%w: unsupported version %d", ErrUnreadable, env.Version)
	case env.Kind != kind:
		return fmt.Errorf("%w: expected kind %q, found %q", ErrUnreadable, kind, env.Kind)
	case len(env.Items) == 0:
		return fmt.Errorf("%w: missing items", ErrUnreadable)
	}
	if err := c.hasher.Verify(env.Items, env.Checksum); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if err := json.Unmarshal(env.Items, dst); err != nil {
		return fmt.Errorf("%w: parse items: %v", ErrUnreadable, err)
	}
	if n := count(); n != env.Count {
		return fmt.Errorf("%w: count %d does not match %d items", ErrUnreadable, env.Count, n)
	}
	return nil
}
