package importer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// HistoricalMapping is a mapping an organization confirmed in an earlier import.
type HistoricalMapping struct {
	Field      TargetField
	TimesUsed  int
	LastUsedAt time.Time
}

// HistoryLookup finds confirmed mappings. It returns nil, nil when there is none.
type HistoryLookup interface {
	FindConfirmedMapping(ctx context.Context, orgID, normalizedColumn string) (*HistoricalMapping, error)
}

// CacheKey identifies an AI suggestion by column pattern and leading samples.
type CacheKey struct {
	Pattern string `json:"pattern"`
	Samples string `json:"samples"`
}

const cacheSampleCount = 3

// NewCacheKey builds the key from the normalized column and the first three
// samples joined by "|".
func NewCacheKey(column string, samples []string) CacheKey {
	n := min(len(samples), cacheSampleCount)
	trimmed := make([]string, n)
	for i := 0; i < n; i++ {
		trimmed[i] = strings.TrimSpace(samples[i])
	}
	return CacheKey{Pattern: NormalizeColumn(column), Samples: strings.Join(trimmed, "|")}
}

func (k CacheKey) String() string { return k.Pattern + "::" + k.Samples }

// CachedMapping is a stored AI suggestion.
type CachedMapping struct {
	Key            CacheKey    `json:"key"`
	SuggestedField TargetField `json:"suggestedField"`
	Confidence     int         `json:"confidence"`
	Reasoning      string      `json:"reasoning"`
	CreatedAt      time.Time   `json:"createdAt"`
	ExpiresAt      time.Time   `json:"expiresAt"`
}

func (c CachedMapping) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// MappingCache stores AI suggestions. Get returns nil, nil on a miss. Expired
// entries may still be returned; they are removed by a periodic sweep.
type MappingCache interface {
	Get(ctx context.Context, key CacheKey) (*CachedMapping, error)
	Put(ctx context.Context, entry CachedMapping) error
}

// SuggestionRequest is what the AI mapping assistant is asked.
type SuggestionRequest struct {
	ColumnName      string        `json:"columnName"`
	SampleValues    []string      `json:"sampleValues"`
	AvailableFields []TargetField `json:"availableFields"`
}

// Suggestion is the assistant's answer. An empty TargetField means no suggestion.
type Suggestion struct {
	TargetField TargetField `json:"targetField"`
	Confidence  int         `json:"confidence"`
	Reasoning   string      `json:"reasoning"`
}

// Assistant suggests a target field for a column the rules could not place.
// Implementations return nil, nil when they have no suggestion.
type Assistant interface {
	Suggest(ctx context.Context, req SuggestionRequest) (*Suggestion, error)
}

// MapperConfig holds the strategy thresholds.
type MapperConfig struct {
	FuzzyThreshold       int
	HistoricalStaleAfter time.Duration
	HistoricalMinUses    int
	AIMinConfidence      int
	LookupTimeout        time.Duration
	AITimeout            time.Duration
	CacheTTL             time.Duration
	Now                  func() time.Time
}

const (
	confidenceExact      = 100
	confidenceAlias      = 90
	confidenceHistorical = 85
	historicalDecay      = 10
	historicalAccept     = 80
	contentAccept        = 60
)

// DefaultMapperConfig returns the production thresholds.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		FuzzyThreshold:       70,
		HistoricalStaleAfter: 180 * 24 * time.Hour,
		HistoricalMinUses:    3,
		AIMinConfidence:      60,
		LookupTimeout:        3 * time.Second,
		AITimeout:            8 * time.Second,
		CacheTTL:             30 * 24 * time.Hour,
		Now:                  time.Now,
	}
}

// MapperDeps are the optional collaborators of the mapper. Any may be nil.
type MapperDeps struct {
	History   HistoryLookup
	Cache     MappingCache
	Assistant Assistant
}

// Mapper binds source columns to target fields.
type Mapper struct {
	cfg        MapperConfig
	deps       MapperDeps
	logger     *slog.Logger
	strategies []mappingStrategy
}

type mappingInput struct {
	orgID      string
	column     string
	normalized string
	samples    []string
	available  []TargetField
	allowed    map[TargetField]bool
}

type candidate struct {
	field      TargetField
	confidence int
	reasoning  string
}

type mappingStrategy struct {
	name      Strategy
	threshold int
	run       func(ctx context.Context, in mappingInput) *candidate
}

func NewMapper(cfg MapperConfig, deps MapperDeps, logger *slog.Logger) *Mapper {
	def := DefaultMapperConfig()
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = def.FuzzyThreshold
	}
	if cfg.HistoricalStaleAfter == 0 {
		cfg.HistoricalStaleAfter = def.HistoricalStaleAfter
	}
	if cfg.HistoricalMinUses == 0 {
		cfg.HistoricalMinUses = def.HistoricalMinUses
	}
	if cfg.AIMinConfidence == 0 {
		cfg.AIMinConfidence = def.AIMinConfidence
	}
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = def.LookupTimeout
	}
	if cfg.AITimeout == 0 {
		cfg.AITimeout = def.AITimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Mapper{cfg: cfg, deps: deps, logger: logger}
	m.strategies = []mappingStrategy{
		{name: StrategyExact, threshold: confidenceExact, run: matchExact},
		{name: StrategyAlias, threshold: confidenceAlias, run: matchAlias},
		{name: StrategyHistorical, threshold: historicalAccept, run: m.matchHistorical},
		{name: StrategyFuzzy, threshold: cfg.FuzzyThreshold, run: matchFuzzy},
		{name: StrategyContent, threshold: contentAccept, run: matchContent},
	}
	return m
}

// MappingRequest asks for a single column. An empty Available means the whole catalog.
type MappingRequest struct {
	OrganizationID string
	Column         string
	Samples        []string
	Available      []TargetField
}

// MapColumn runs the strategy chain and falls back to the cache and the AI
// assistant. It never fails: an unresolved column comes back unmapped.
func (m *Mapper) MapColumn(ctx context.Context, req MappingRequest) ColumnMapping {
	in := newMappingInput(req)

	for _, s := range m.strategies {
		c := s.run(ctx, in)
		if c == nil || c.confidence < s.threshold || !in.allowed[c.field] {
			continue
		}
		return ColumnMapping{
			SourceColumn: req.Column,
			TargetField:  c.field,
			Confidence:   clampConfidence(c.confidence),
			Strategy:     s.name,
			Reasoning:    c.reasoning,
		}
	}
	return m.resolveFallback(ctx, in)
}

// MapColumns maps every header of table. A target field is bound at most once;
// the higher confidence keeps it and the earlier column wins ties.
func (m *Mapper) MapColumns(ctx context.Context, orgID string, table ParsedTable, available []TargetField) []ColumnMapping {
	out := make([]ColumnMapping, len(table.Headers))
	owner := make(map[TargetField]int)

	for i, header := range table.Headers {
		mapping := m.MapColumn(ctx, MappingRequest{
			OrganizationID: orgID,
			Column:         header,
			Samples:        table.Samples(i, 5),
			Available:      available,
		})
		mapping.ColumnIndex = i
		out[i] = mapping

		if !mapping.Mapped() {
			continue
		}
		prev, taken := owner[mapping.TargetField]
		if !taken {
			owner[mapping.TargetField] = i
			continue
		}
		if mapping.Confidence > out[prev].Confidence {
			out[prev] = unbind(out[prev], header)
			owner[mapping.TargetField] = i
		} else {
			out[i] = unbind(mapping, table.Headers[prev])
		}
	}
	return out
}

func unbind(m ColumnMapping, winner string) ColumnMapping {
	m.Reasoning = fmt.Sprintf("%s already mapped from column %q", m.TargetField, winner)
	m.TargetField = ""
	m.Confidence = 0
	m.Strategy = StrategyNone
	return m
}

func newMappingInput(req MappingRequest) mappingInput {
	available := req.Available
	if len(available) == 0 {
		available = AllFields()
	}
	allowed := make(map[TargetField]bool, len(available))
	var kept []TargetField
	for _, f := range available {
		if f.Valid() && !allowed[f] {
			allowed[f] = true
			kept = append(kept, f)
		}
	}
	return mappingInput{
		orgID:      req.OrganizationID,
		column:     req.Column,
		normalized: NormalizeColumn(req.Column),
		samples:    req.Samples,
		available:  kept,
		allowed:    allowed,
	}
}

func matchExact(_ context.Context, in mappingInput) *candidate {
	if in.normalized == "" {
		return nil
	}
	for _, f := range in.available {
		def, _ := LookupField(f)
		if NormalizeColumn(string(f)) == in.normalized {
			return &candidate{field: f, confidence: confidenceExact, reasoning: "column name matches field name"}
		}
		for _, k := range def.Keys {
			if NormalizeColumn(k) == in.normalized {
				return &candidate{field: f, confidence: confidenceExact, reasoning: fmt.Sprintf("column name matches %q", k)}
			}
		}
	}
	return nil
}

func matchAlias(_ context.Context, in mappingInput) *candidate {
	f, ok := aliasTable[in.normalized]
	if !ok {
		return nil
	}
	return &candidate{field: f, confidence: confidenceAlias, reasoning: fmt.Sprintf("%q is a known alias of %s", in.column, f)}
}

func (m *Mapper) matchHistorical(ctx context.Context, in mappingInput) *candidate {
	if m.deps.History == nil || in.orgID == "" || in.normalized == "" {
		return nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, m.cfg.LookupTimeout)
	defer cancel()

	h, err := m.deps.History.FindConfirmedMapping(lookupCtx, in.orgID, in.normalized)
	if err != nil {
		m.logger.WarnContext(ctx, "Historical mapping lookup failed", "column", in.column, "error", err)
		return nil
	}
	if h == nil || !h.Field.Valid() {
		return nil
	}

	confidence := confidenceHistorical
	reasoning := fmt.Sprintf("confirmed %d time(s) in earlier imports", h.TimesUsed)
	stale := m.cfg.Now().Sub(h.LastUsedAt) > m.cfg.HistoricalStaleAfter
	if stale && h.TimesUsed < m.cfg.HistoricalMinUses {
		confidence -= historicalDecay
		reasoning += ", last used " + h.LastUsedAt.Format(isoLayout)
	}
	return &candidate{field: h.Field, confidence: confidence, reasoning: reasoning}
}

func matchFuzzy(_ context.Context, in mappingInput) *candidate {
	if len(in.normalized) < 3 {
		return nil
	}
	var best *candidate
	bestScore := 0.0
	consider := func(f TargetField, name string) {
		score := similarity(in.normalized, NormalizeColumn(name))
		if score > bestScore {
			bestScore = score
			best = &candidate{field: f, reasoning: fmt.Sprintf("column name resembles %q", name)}
		}
	}
	for _, f := range in.available {
		def, _ := LookupField(f)
		consider(f, string(f))
		for _, k := range def.Keys {
			consider(f, k)
		}
	}
	for _, alias := range sortedAliases {
		if f := aliasTable[alias]; in.allowed[f] {
			consider(f, alias)
		}
	}
	if best == nil {
		return nil
	}
	best.confidence = int(math.Round(bestScore * 100))
	best.reasoning = fmt.Sprintf("%s (%d%% similar)", best.reasoning, best.confidence)
	return best
}

func matchContent(_ context.Context, in mappingInput) *candidate {
	kind, ratio := analyzeContent(in.samples)
	if ratio < 0.5 {
		return nil
	}
	f := fieldForKind(kind, in.normalized, in.allowed)
	if f == "" {
		return nil
	}
	return &candidate{
		field:      f,
		confidence: contentConfidence(ratio),
		reasoning:  fmt.Sprintf("%.0f%% of sample values look like %s values", ratio*100, kind),
	}
}

func (m *Mapper) resolveFallback(ctx context.Context, in mappingInput) ColumnMapping {
	unresolved := func(reason string) ColumnMapping {
		return ColumnMapping{SourceColumn: in.column, Strategy: StrategyNone, Reasoning: reason}
	}
	key := NewCacheKey(in.column, in.samples)
	now := m.cfg.Now()

	if m.deps.Cache != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, m.cfg.LookupTimeout)
		entry, err := m.deps.Cache.Get(lookupCtx, key)
		cancel()
		switch {
		case err != nil:
			m.logger.WarnContext(ctx, "Mapping cache lookup failed", "column", in.column, "error", err)
		case entry != nil && !entry.Expired(now) && in.allowed[entry.SuggestedField] &&
			entry.Confidence >= m.cfg.AIMinConfidence:
			return ColumnMapping{
				SourceColumn: in.column,
				TargetField:  entry.SuggestedField,
				Confidence:   clampConfidence(entry.Confidence),
				Strategy:     StrategyAI,
				Reasoning:    entry.Reasoning,
			}
		}
	}

	if m.deps.Assistant == nil {
		return unresolved("no rule matched and the AI assistant is not configured")
	}

	aiCtx, cancel := context.WithTimeout(ctx, m.cfg.AITimeout)
	defer cancel()
	s, err := m.deps.Assistant.Suggest(aiCtx, SuggestionRequest{
		ColumnName:      in.column,
		SampleValues:    firstN(in.samples, 5),
		AvailableFields: in.available,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "AI mapping assistant unavailable", "column", in.column, "error", err)
		return unresolved("no rule matched and the AI assistant is unavailable")
	}
	if s == nil || s.TargetField == "" {
		return unresolved("no rule matched and the AI assistant had no suggestion")
	}
	if !in.allowed[s.TargetField] {
		m.logger.WarnContext(ctx, "AI suggested an unknown field", "column", in.column, "field", s.TargetField)
		return unresolved(fmt.Sprintf("AI suggested %q which is not an available field", s.TargetField))
	}
	confidence := clampConfidence(s.Confidence)
	if confidence < m.cfg.AIMinConfidence {
		return unresolved(fmt.Sprintf("AI suggestion %s below acceptance floor (%d)", s.TargetField, confidence))
	}

	if m.deps.Cache != nil {
		entry := CachedMapping{
			Key:            key,
			SuggestedField: s.TargetField,
			Confidence:     confidence,
			Reasoning:      s.Reasoning,
			CreatedAt:      now,
			ExpiresAt:      now.Add(m.cfg.CacheTTL),
		}
		putCtx, cancel := context.WithTimeout(ctx, m.cfg.LookupTimeout)
		err := m.deps.Cache.Put(putCtx, entry)
		cancel()
		if err != nil {
			m.logger.WarnContext(ctx, "Failed to cache AI mapping", "column", in.column, "error", err)
		}
	}

	return ColumnMapping{
		SourceColumn: in.column,
		TargetField:  s.TargetField,
		Confidence:   confidence,
		Strategy:     StrategyAI,
		Reasoning:    s.Reasoning,
	}
}

func clampConfidence(c int) int {
	return max(0, min(100, c))
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
