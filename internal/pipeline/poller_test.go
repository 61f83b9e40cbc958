package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/polysight/marketgate/internal/domain"
	"github.com/polysight/marketgate/internal/gateway"
)

type stubFetcher struct {
	results []gateway.Result
	errs    []error
	calls   int
}

func (s *stubFetcher) FetchMarketsResult(_ context.Context, _ gateway.FetchOptions) (gateway.Result, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return gateway.Result{}, s.errs[i]
	}
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}

type stubStore struct {
	batches    [][]domain.Market
	countCalls int
	err        error
}

func (s *stubStore) UpsertBatch(_ context.Context, markets []domain.Market) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, markets)
	return nil
}

func (s *stubStore) Count(context.Context) (int64, error) {
	s.countCalls++
	var n int64
	for _, b := range s.batches {
		n += int64(len(b))
	}
	return n, nil
}

type stubArchiver struct {
	sources []string
	counts  []int
}

func (s *stubArchiver) ArchiveSnapshots(_ context.Context, source string, markets []domain.Market) (string, error) {
	s.sources = append(s.sources, source)
	s.counts = append(s.counts, len(markets))
	return "snapshots/" + source + "/test.json", nil
}

type stubAlerter struct {
	events []string
}

func (s *stubAlerter) Notify(_ context.Context, event, _, _ string) error {
	s.events = append(s.events, event)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func liveResult(n int) gateway.Result {
	markets := make([]domain.Market, n)
	for i := range markets {
		markets[i] = domain.Market{ID: "m" + string(rune('0'+i)), Question: "q"}
	}
	return gateway.Result{Markets: markets, Source: "polymarket-builder"}
}

func fallbackResult(reason string) gateway.Result {
	res := liveResult(2)
	res.Source = "fallback"
	res.Fallback = true
	res.FallbackReason = reason
	return res
}

func TestPollerRunUpsertsAndArchives(t *testing.T) {
	fetcher := &stubFetcher{results: []gateway.Result{liveResult(3)}}
	store := &stubStore{}
	archiver := &stubArchiver{}

	p := NewPoller(fetcher, store, archiver, nil, 50, discard())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.batches) != 1 || len(store.batches[0]) != 3 {
		t.Fatalf("expected one upsert batch of 3, got %v", store.batches)
	}
	if len(archiver.sources) != 1 || archiver.sources[0] != "polymarket-builder" {
		t.Fatalf("expected archive from polymarket-builder, got %v", archiver.sources)
	}
	if archiver.counts[0] != 3 {
		t.Fatalf("expected 3 markets archived, got %d", archiver.counts[0])
	}
	if store.countCalls != 1 {
		t.Fatalf("expected one store count per cycle, got %d", store.countCalls)
	}
}

func TestPollerRunWithoutStoreOrArchiver(t *testing.T) {
	fetcher := &stubFetcher{results: []gateway.Result{liveResult(2)}}

	p := NewPoller(fetcher, nil, nil, nil, 0, discard())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run without sinks: %v", err)
	}
}

func TestPollerRunPropagatesStoreError(t *testing.T) {
	fetcher := &stubFetcher{results: []gateway.Result{liveResult(1)}}
	store := &stubStore{err: errors.New("connection refused")}

	p := NewPoller(fetcher, store, nil, nil, 0, discard())
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected upsert error to surface")
	}
}

func TestPollerAlertsOnFallbackEdgesOnly(t *testing.T) {
	fetcher := &stubFetcher{results: []gateway.Result{
		liveResult(1),
		fallbackResult("upstream timeout"),
		fallbackResult("upstream timeout"),
		liveResult(1),
	}}
	alerter := &stubAlerter{}

	p := NewPoller(fetcher, nil, nil, alerter, 0, discard())
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := p.Run(ctx); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	want := []string{"fallback_enter", "fallback_exit"}
	if len(alerter.events) != len(want) {
		t.Fatalf("expected %v, got %v", want, alerter.events)
	}
	for i, ev := range want {
		if alerter.events[i] != ev {
			t.Fatalf("event %d: expected %s, got %s", i, ev, alerter.events[i])
		}
	}
}

func TestPollerEmptyListingSkipsSinks(t *testing.T) {
	fetcher := &stubFetcher{results: []gateway.Result{{Source: "polymarket-builder"}}}
	store := &stubStore{}
	archiver := &stubArchiver{}

	p := NewPoller(fetcher, store, archiver, nil, 0, discard())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.batches) != 0 || len(archiver.sources) != 0 {
		t.Fatal("expected no sink calls for empty listing")
	}
}
