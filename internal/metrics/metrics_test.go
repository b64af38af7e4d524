package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

type fakeCache struct {
	entry *importer.CachedMapping
	err   error
}

func (f fakeCache) Get(context.Context, importer.CacheKey) (*importer.CachedMapping, error) {
	return f.entry, f.err
}
func (f fakeCache) Put(context.Context, importer.CachedMapping) error { return nil }

type fakeAssistant struct {
	s   *importer.Suggestion
	err error
}

func (f fakeAssistant) Suggest(context.Context, importer.SuggestionRequest) (*importer.Suggestion, error) {
	return f.s, f.err
}

func TestInstrumentCache(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()
	key := importer.NewCacheKey("x", nil)

	_, _ = m.InstrumentCache(fakeCache{}).Get(ctx, key)
	_, _ = m.InstrumentCache(fakeCache{entry: &importer.CachedMapping{}}).Get(ctx, key)
	_, _ = m.InstrumentCache(fakeCache{err: errors.New("down")}).Get(ctx, key)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MappingCacheLookup.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MappingCacheLookup.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MappingCacheLookup.WithLabelValues("error")))
}

func TestInstrumentAssistant(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()

	s, err := m.InstrumentAssistant(fakeAssistant{s: &importer.Suggestion{TargetField: importer.FieldTeam}}).Suggest(ctx, importer.SuggestionRequest{})
	require.NoError(t, err)
	assert.Equal(t, importer.FieldTeam, s.TargetField)
	_, _ = m.InstrumentAssistant(fakeAssistant{}).Suggest(ctx, importer.SuggestionRequest{})
	_, _ = m.InstrumentAssistant(fakeAssistant{err: context.DeadlineExceeded}).Suggest(ctx, importer.SuggestionRequest{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AIRequests.WithLabelValues("suggested")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AIRequests.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AIRequests.WithLabelValues("timeout")))
}

func TestObservers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveMappings([]importer.ColumnMapping{{Strategy: importer.StrategyExact}, {Strategy: importer.StrategyExact}, {Strategy: importer.StrategyNone}})
	m.ObserveSimulation(&importer.SimulationResult{Previews: []importer.PlayerPreview{{Action: importer.ActionCreate}, {Action: importer.ActionSkip}}}, time.Millisecond)
	m.ObserveCommit(3, 1, 2, 1)
	m.ObserveUndo(2, 1)
	m.ObservePurge("memory", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MappingDecisions.WithLabelValues("exact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimulationRows.WithLabelValues("create")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CommitRows.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UndoneRows.WithLabelValues("restored")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CachePurged.WithLabelValues("memory")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCommit(1, 1, 1, 1)
	m.ObservePurge("redis", 1)
	c := fakeCache{}
	assert.Equal(t, c, m.InstrumentCache(c))
}
