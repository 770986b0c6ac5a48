package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/lexical"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/metrics"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// tagSnapshotter exposes the published tag index.
type tagSnapshotter interface {
	Snapshot() *domain.TagSnapshot
}

// SearchService runs the retrieval modes. Each mode resolves the caller's
// tenant once and hands typed inputs to a pure ranking function.
type SearchService struct {
	docs    driven.DocumentStore
	text    driven.TextIndex
	vectors driven.VectorIndex
	tags    tagSnapshotter
	cfg     domain.SearchSettings
}

// NewSearchService creates a search service. vectors may be nil, in which
// case semantic search reports domain.ErrVectorIndexUnavailable.
func NewSearchService(
	docs driven.DocumentStore,
	text driven.TextIndex,
	vectors driven.VectorIndex,
	tags tagSnapshotter,
	cfg domain.SearchSettings,
) *SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = domain.DefaultLimit
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = domain.EmbeddingDimension
	}
	return &SearchService{docs: docs, text: text, vectors: vectors, tags: tags, cfg: cfg}
}

// SearchKeyword ranks lexical field matches.
func (s *SearchService) SearchKeyword(ctx context.Context, q domain.KeywordQuery) ([]domain.KeywordResult, error) {
	start := time.Now()
	res, err := s.searchKeyword(ctx, q)
	metrics.ObserveSearch(string(domain.ModeKeyword), start, searchOutcome(err))
	return res, err
}

func (s *SearchService) searchKeyword(ctx context.Context, q domain.KeywordQuery) ([]domain.KeywordResult, error) {
	if s.text == nil {
		return nil, domain.ErrSearchUnavailable
	}
	if q.Limit == 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	lq := lexical.ParseQuery(q.Query)
	if lq.Empty() {
		return []domain.KeywordResult{}, nil
	}
	scope := tenant.Resolve(ctx)
	logger.Debug("keyword search %q scope=%s limit=%d", q.Query, scope, q.Limit)

	fields, err := s.text.MatchFields(ctx, lq.Terms(), scope, driven.TextMatchOptions{Start: q.Start, End: q.End})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}
	return rankKeyword(fields, lq, q, scope, s.snapshot()), nil
}

// SearchSemantic returns the content units most similar to the embedding.
func (s *SearchService) SearchSemantic(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticResult, error) {
	start := time.Now()
	res, err := s.searchSemantic(ctx, q)
	metrics.ObserveSearch(string(domain.ModeSemantic), start, searchOutcome(err))
	return res, err
}

func (s *SearchService) searchSemantic(ctx context.Context, q domain.SemanticQuery) ([]domain.SemanticResult, error) {
	if q.Limit == 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if q.Threshold == nil && s.cfg.SemanticThreshold != 0 {
		q.Threshold = domain.FloatPtr(s.cfg.SemanticThreshold)
	}
	if err := q.Normalize(s.cfg.Dimension); err != nil {
		return nil, err
	}
	if s.vectors == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	scope := tenant.Resolve(ctx)

	hits, err := s.vectors.Search(ctx, q.Embedding, scope, s.vectorWindow(q.Limit, q.Tags), *q.Threshold)
	if err != nil {
		return nil, vectorError(err)
	}
	return semanticResults(hits, scope, q.Tags, s.snapshot(), q.Limit), nil
}

// SearchHybrid fuses per-document keyword and semantic scores.
func (s *SearchService) SearchHybrid(ctx context.Context, q domain.HybridQuery) ([]domain.HybridResult, error) {
	start := time.Now()
	res, err := s.searchHybrid(ctx, q)
	metrics.ObserveSearch(string(domain.ModeHybrid), start, searchOutcome(err))
	return res, err
}

func (s *SearchService) searchHybrid(ctx context.Context, q domain.HybridQuery) ([]domain.HybridResult, error) {
	if q.Limit == 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if q.SemanticWeight == nil && s.cfg.SemanticWeight != 0 {
		q.SemanticWeight = domain.FloatPtr(s.cfg.SemanticWeight)
	}
	if err := q.Normalize(s.cfg.Dimension); err != nil {
		return nil, err
	}

	scope := tenant.Resolve(ctx)
	snap := s.snapshot()

	// Both legs score every candidate and only the fused ranking is cut to
	// the limit, so a document's scores never depend on the limit.
	var keyword, semantic map[int64]float64
	g, gctx := errgroup.WithContext(ctx)

	if q.Query != "" {
		g.Go(func() error {
			lq := lexical.ParseQuery(q.Query)
			if lq.Empty() || s.text == nil {
				return nil
			}
			fields, err := s.text.MatchFields(gctx, lq.Terms(), scope, driven.TextMatchOptions{})
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
			}
			keyword = keywordScores(fields, lq, scope, q.Tags, snap)
			return nil
		})
	}
	if len(q.Embedding) > 0 {
		g.Go(func() error {
			if s.vectors == nil {
				return domain.ErrVectorIndexUnavailable
			}
			hits, err := s.vectors.Search(gctx, q.Embedding, scope, max(s.vectors.Count(), q.Limit), 0)
			if err != nil {
				return vectorError(err)
			}
			semantic = semanticScores(hits, scope, q.Tags, snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuseHybrid(keyword, semantic, *q.SemanticWeight, q.Limit), nil
}

// SearchByTags returns documents whose tags contain the filter. An empty
// filter lists every visible document.
func (s *SearchService) SearchByTags(ctx context.Context, q domain.TagQuery) ([]int64, error) {
	start := time.Now()
	res, err := s.searchByTags(ctx, q)
	metrics.ObserveSearch(string(domain.ModeTags), start, searchOutcome(err))
	return res, err
}

func (s *SearchService) searchByTags(ctx context.Context, q domain.TagQuery) ([]int64, error) {
	if q.Limit == 0 {
		q.Limit = s.cfg.DefaultLimit
	}
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	scope := tenant.Resolve(ctx)

	if len(q.Tags) == 0 {
		if s.docs == nil {
			return nil, domain.ErrSearchUnavailable
		}
		docs, err := s.docs.ListDocuments(ctx, scope, driven.DocumentFilter{Limit: q.Limit})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
		}
		ids := make([]int64, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		return ids, nil
	}

	return filterByTags(s.snapshot(), scope, q.Tags, q.Limit), nil
}

func (s *SearchService) snapshot() *domain.TagSnapshot {
	if s.tags == nil {
		return domain.EmptyTagSnapshot()
	}
	return s.tags.Snapshot()
}

// vectorWindow sizes a vector lookup. With a tag filter every candidate
// is fetched, since the filter runs after the nearest-neighbour search.
func (s *SearchService) vectorWindow(limit int, tags domain.TagFilter) int {
	if len(tags) > 0 {
		return max(s.vectors.Count(), limit)
	}
	return limit
}

// rankKeyword scores each visible field that satisfies the query and the
// tag filter, ordered by rank then document. Snippets are built only for
// the returned rows.
func rankKeyword(
	fields []domain.TextField, lq lexical.Query, q domain.KeywordQuery,
	scope domain.TenantScope, snap *domain.TagSnapshot,
) []domain.KeywordResult {
	type scored struct {
		field domain.TextField
		rank  float64
	}
	var rows []scored
	for _, f := range fields {
		if !scope.Visible(f.TenantID) || !q.InRange(f.CreatedAt) || !snap.Allows(f.DocumentID, q.Tags) {
			continue
		}
		rank := lexical.Rank(lexical.Vector(f.Terms), f.Kind.Weight(), lq)
		if rank <= 0 {
			continue
		}
		rows = append(rows, scored{field: f, rank: rank})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.rank != b.rank {
			return a.rank > b.rank
		}
		if a.field.DocumentID != b.field.DocumentID {
			return a.field.DocumentID < b.field.DocumentID
		}
		if a.field.Kind != b.field.Kind {
			return a.field.Kind.Weight() > b.field.Kind.Weight()
		}
		return a.field.Reference < b.field.Reference
	})
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	out := make([]domain.KeywordResult, len(rows))
	for i, r := range rows {
		out[i] = domain.KeywordResult{
			DocumentID:     r.field.DocumentID,
			FieldKind:      r.field.Kind,
			FieldReference: r.field.Reference,
			Rank:           r.rank,
			Snippet:        lexical.Headline(r.field.Text, lq),
		}
	}
	return out
}

// semanticResults filters index hits by tenant and tags. Hits arrive in
// similarity order, which is preserved.
func semanticResults(
	hits []driven.VectorHit, scope domain.TenantScope, tags domain.TagFilter,
	snap *domain.TagSnapshot, limit int,
) []domain.SemanticResult {
	out := make([]domain.SemanticResult, 0, min(len(hits), limit))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		if !scope.Visible(h.Unit.TenantID) || !snap.Allows(h.Unit.DocumentID, tags) {
			continue
		}
		out = append(out, domain.SemanticResult{
			DocumentID:       h.Unit.DocumentID,
			ContentType:      h.Unit.Type,
			ContentReference: h.Unit.Reference,
			ContentText:      h.Unit.Text,
			Similarity:       h.Similarity,
		})
	}
	return out
}

// keywordScores reduces field ranks to the best rank per document.
func keywordScores(
	fields []domain.TextField, lq lexical.Query, scope domain.TenantScope,
	tags domain.TagFilter, snap *domain.TagSnapshot,
) map[int64]float64 {
	best := map[int64]float64{}
	for _, f := range fields {
		if !scope.Visible(f.TenantID) || !snap.Allows(f.DocumentID, tags) {
			continue
		}
		rank := lexical.Rank(lexical.Vector(f.Terms), f.Kind.Weight(), lq)
		if rank > best[f.DocumentID] {
			best[f.DocumentID] = rank
		}
	}
	return best
}

// semanticScores reduces hits to the best positive similarity per document.
func semanticScores(
	hits []driven.VectorHit, scope domain.TenantScope, tags domain.TagFilter,
	snap *domain.TagSnapshot,
) map[int64]float64 {
	best := map[int64]float64{}
	for _, h := range hits {
		if h.Similarity <= 0 || !scope.Visible(h.Unit.TenantID) || !snap.Allows(h.Unit.DocumentID, tags) {
			continue
		}
		if h.Similarity > best[h.Unit.DocumentID] {
			best[h.Unit.DocumentID] = h.Similarity
		}
	}
	return best
}

// fuseHybrid combines per-document scores as
//
//	w*semantic + (1-w)*keyword
//
// with a missing leg scoring 0. Documents in neither leg are absent.
func fuseHybrid(keyword, semantic map[int64]float64, weight float64, limit int) []domain.HybridResult {
	ids := make(map[int64]struct{}, len(keyword)+len(semantic))
	for id := range keyword {
		ids[id] = struct{}{}
	}
	for id := range semantic {
		ids[id] = struct{}{}
	}

	out := make([]domain.HybridResult, 0, len(ids))
	for id := range ids {
		kw, sem := keyword[id], semantic[id]
		out = append(out, domain.HybridResult{
			DocumentID:    id,
			CombinedScore: weight*sem + (1-weight)*kw,
			SemanticScore: sem,
			KeywordScore:  kw,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// filterByTags lists visible documents whose tags contain the filter,
// most recently tagged first.
func filterByTags(snap *domain.TagSnapshot, scope domain.TenantScope, tags domain.TagFilter, limit int) []int64 {
	ids := []int64{}
	for _, e := range snap.Entries() {
		if len(ids) == limit {
			break
		}
		if scope.Visible(e.TenantID) && e.Contains(tags) {
			ids = append(ids, e.DocumentID)
		}
	}
	return ids
}

func vectorError(err error) error {
	if errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrVectorIndexUnavailable, err)
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
