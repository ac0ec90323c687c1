package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
	"github.com/JakeFAU/orginfo-harvester/internal/progress"
)

// fakeSite serves listing pages and detail records from memory.
type fakeSite struct {
	mu        sync.Mutex
	pages     map[int][]crawler.Link
	failing   map[crawler.Link]bool
	jitter    time.Duration
	onFetch   func(calls int)
	onCollect func(calls int)
	pageCalls map[int]int
	linkCalls map[crawler.Link]int
	fetches   int
}

func newFakeSite(pageSizes ...int) *fakeSite {
	s := &fakeSite{
		pages:     make(map[int][]crawler.Link),
		failing:   make(map[crawler.Link]bool),
		pageCalls: make(map[int]int),
		linkCalls: make(map[crawler.Link]int),
	}
	for i, n := range pageSizes {
		page := i + 1
		for j := range n {
			s.pages[page] = append(s.pages[page], crawler.Link(fmt.Sprintf("/organization/p%d-%d/", page, j)))
		}
	}
	return s
}

func (s *fakeSite) sleep() {
	if s.jitter > 0 {
		time.Sleep(rand.N(s.jitter))
	}
}

func (s *fakeSite) Collect(_ context.Context, page int) []crawler.Link {
	s.sleep()
	s.mu.Lock()
	s.pageCalls[page]++
	calls := 0
	for _, n := range s.pageCalls {
		calls += n
	}
	hook := s.onCollect
	links := append([]crawler.Link(nil), s.pages[page]...)
	s.mu.Unlock()

	if hook != nil {
		hook(calls)
	}
	return links
}

func (s *fakeSite) Fetch(_ context.Context, link crawler.Link) crawler.Record {
	s.sleep()
	s.mu.Lock()
	s.linkCalls[link]++
	s.fetches++
	calls := s.fetches
	failing := s.failing[link]
	hook := s.onFetch
	s.mu.Unlock()

	if hook != nil {
		hook(calls)
	}
	if failing {
		return crawler.Record{}
	}
	return recordFor(link)
}

func (s *fakeSite) totalPageCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.pageCalls {
		total += n
	}
	return total
}

func (s *fakeSite) pageCallsFor(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCalls[page]
}

func (s *fakeSite) calls(link crawler.Link) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkCalls[link]
}

func (s *fakeSite) totalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func recordFor(link crawler.Link) crawler.Record {
	var rec crawler.Record
	_ = rec.Set(crawler.FieldName, "org "+string(link))
	_ = rec.Set(crawler.FieldTaxID, "01110")
	return rec
}

type fakeExporter struct {
	mu      sync.Mutex
	err     error
	calls   int
	records []crawler.Record
}

func (e *fakeExporter) Export(_ context.Context, records []crawler.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return e.err
	}
	e.records = append([]crawler.Record(nil), records...)
	return nil
}

type failingStore struct {
	crawler.CheckpointStore
	saves int
}

func (f *failingStore) Save(context.Context, crawler.Checkpoint) error {
	f.saves++
	return fmt.Errorf("bucket unavailable")
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) byStage(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, evt := range r.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}
