package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator(order DateOrder) *Validator {
	return NewValidator(ValidatorConfig{DateOrder: order, MinAge: 3, MaxAge: 25, Now: nowFunc})
}

// MockAssistant is a mock implementation of Assistant
type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) Suggest(ctx context.Context, req SuggestionRequest) (*Suggestion, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*Suggestion)
	return s, args.Error(1)
}

// MockHistory is a mock implementation of HistoryLookup
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) FindConfirmedMapping(ctx context.Context, orgID, normalizedColumn string) (*HistoricalMapping, error) {
	args := m.Called(ctx, orgID, normalizedColumn)
	h, _ := args.Get(0).(*HistoricalMapping)
	return h, args.Error(1)
}

type memoryCache struct {
	entries map[string]CachedMapping
	puts    int
}

func newMemoryCache() *memoryCache { return &memoryCache{entries: map[string]CachedMapping{}} }

func (c *memoryCache) Get(_ context.Context, key CacheKey) (*CachedMapping, error) {
	e, ok := c.entries[key.String()]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *memoryCache) Put(_ context.Context, entry CachedMapping) error {
	c.puts++
	c.entries[entry.Key.String()] = entry
	return nil
}

type stubLookup struct {
	players []ExistingPlayer
	err     error
	panics  bool
}

func (s *stubLookup) FindCandidates(_ context.Context, _ string, probe PlayerProbe) ([]ExistingPlayer, error) {
	if s.panics {
		panic("lookup exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	var out []ExistingPlayer
	for _, p := range s.players {
		if NormalizeName(p.Fields.Get(FieldLastName)) == probe.LastName {
			out = append(out, p)
		}
	}
	return out, nil
}

var errLookup = errors.New("connection refused")

// blockingCache holds every call until its context is done, like a hung redis.
type blockingCache struct{}

func (blockingCache) Get(ctx context.Context, _ CacheKey) (*CachedMapping, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingCache) Put(ctx context.Context, _ CachedMapping) error {
	<-ctx.Done()
	return ctx.Err()
}
