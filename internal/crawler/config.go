package crawler

import (
	"fmt"
	"time"
)

// RunConfig captures the parameters of one harvest run. It is built once by
// NewRunConfig and passed by value; nothing mutates it afterwards.
type RunConfig struct {
	StartPage      int
	EndPage        int
	Workers        int
	Query          string
	RequestTimeout time.Duration
	PageSize       int
	BatchSize      int
}

// NewRunConfig applies defaults and validates the result.
func NewRunConfig(cfg RunConfig) (RunConfig, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = cfg.Workers * 4
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c RunConfig) Validate() error {
	if c.StartPage < 1 {
		return fmt.Errorf("harvest.start_page must be >= 1")
	}
	if c.EndPage < c.StartPage {
		return fmt.Errorf("harvest.end_page must be >= harvest.start_page")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("harvest.request_timeout must be > 0")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("harvest.page_size must be > 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("harvest.batch_size must be > 0")
	}
	return nil
}

// ExpectedLinks is the link count at which the listing phase is considered
// complete.
func (c RunConfig) ExpectedLinks() int {
	return (c.EndPage - c.StartPage + 1) * c.PageSize
}
