package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
	"github.com/JakeFAU/orginfo-harvester/internal/metrics"
	"github.com/JakeFAU/orginfo-harvester/internal/storage"
)

// Default blob names for the two sequences.
const (
	DefaultLinksName   = "links.json"
	DefaultRecordsName = "records.json"
)

// Config names the blobs the sequences are stored under.
type Config struct {
	LinksName   string
	RecordsName string
	// Hasher checksums envelope items. Nil means SHA-256.
	Hasher crawler.Hasher
}

// Store implements crawler.CheckpointStore over a storage.Blob.
type Store struct {
	blob        storage.Blob
	codec       *Codec
	logger      *zap.Logger
	linksName   string
	recordsName string
}

// NewStore builds a Store. Empty names fall back to the defaults.
func NewStore(blob storage.Blob, cfg Config, logger *zap.Logger) (*Store, error) {
	if blob == nil {
		return nil, fmt.Errorf("checkpoint blob store is required")
	}
	if cfg.LinksName == "" {
		cfg.LinksName = DefaultLinksName
	}
	if cfg.RecordsName == "" {
		cfg.RecordsName = DefaultRecordsName
	}
	if cfg.LinksName == cfg.RecordsName {
		return nil, fmt.Errorf("links and records must use distinct names, got %q", cfg.LinksName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blob:        blob,
		codec:       NewCodec(cfg.Hasher),
		logger:      logger,
		linksName:   cfg.LinksName,
		recordsName: cfg.RecordsName,
	}, nil
}

// Load reads both sequences. It never fails: a missing or unreadable sequence
// loads as empty, and records beyond len(links) are dropped.
func (s *Store) Load(ctx context.Context) crawler.Checkpoint {
	var cp crawler.Checkpoint
	if data, ok := s.read(ctx, s.linksName); ok {
		links, err := s.codec.DecodeLinks(data)
		if err != nil {
			s.logger.Warn("discarding unreadable links checkpoint", zap.String("name", s.linksName), zap.Error(err))
		} else {
			cp.Links = links
		}
	}
	if data, ok := s.read(ctx, s.recordsName); ok {
		records, err := s.codec.DecodeRecords(data)
		if err != nil {
			s.logger.Warn("discarding unreadable records checkpoint", zap.String("name", s.recordsName), zap.Error(err))
		} else {
			cp.Records = records
		}
	}
	before := len(cp.Records)
	if cp.Normalize() {
		s.logger.Warn("truncated records beyond known links",
			zap.Int("records", before),
			zap.Int("links", len(cp.Links)),
		)
	}
	s.logger.Info("checkpoint loaded", zap.Int("links", len(cp.Links)), zap.Int("records", len(cp.Records)))
	return cp
}

func (s *Store) read(ctx context.Context, name string) ([]byte, bool) {
	data, err := s.blob.Get(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("no checkpoint found", zap.String("name", name))
		} else {
			s.logger.Warn("checkpoint read failed", zap.String("name", name), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Save writes links and then records. A failed links write skips the records
// write so the on-disk records never outnumber the on-disk links.
func (s *Store) Save(ctx context.Context, cp crawler.Checkpoint) (err error) {
	defer func() {
		metrics.ObserveCheckpointSave(err)
	}()

	links, err := s.codec.EncodeLinks(cp.Links)
	if err != nil {
		return err
	}
	records, err := s.codec.EncodeRecords(cp.Records)
	if err != nil {
		return err
	}
	if err = s.blob.Put(ctx, s.linksName, links); err != nil {
		return fmt.Errorf("save links: %w", err)
	}
	if err = s.blob.Put(ctx, s.recordsName, records); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	return nil
}
