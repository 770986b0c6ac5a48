// Package chromem provides a cosine-similarity vector index backed by
// chromem-go.
//
// The index lives in process memory. It is rebuilt from persisted vector
// entries at startup and updated as embeddings arrive.
package chromem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	collectionName = "content_units"

	metaShared      = "shared"
	metaTenant      = "tenant_id"
	metaDocumentID  = "document_id"
	metaContentType = "content_type"
	metaReference   = "reference"
)

// Index implements driven.VectorIndex.
type Index struct {
	mu        sync.RWMutex
	db        *chromem.DB
	col       *chromem.Collection
	dimension int
	logger    *zap.Logger
	closed    bool

	// byDocument tracks unit keys per document for cascades.
	byDocument map[int64]map[string]struct{}
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, logger *zap.Logger) (*Index, error) {
	if dimension <= 0 {
		return nil, domain.NewValidationError("dimension", "must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db := chromem.NewDB()
	// Embeddings are always supplied, so the collection never embeds text.
	col, err := db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	return &Index{
		db:         db,
		col:        col,
		dimension:  dimension,
		logger:     logger,
		byDocument: make(map[int64]map[string]struct{}),
	}, nil
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding text: %w", domain.ErrNotImplemented)
}

// Upsert adds or replaces the entry for a content unit.
func (x *Index) Upsert(ctx context.Context, entry domain.VectorEntry) error {
	if err := domain.ValidateEmbedding(entry.Embedding, x.dimension); err != nil {
		return err
	}
	if isZero(entry.Embedding) {
		return domain.NewValidationError("embedding", "must not be the zero vector")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrClosed
	}

	if err := x.add(ctx, entry.Unit, entry.Embedding); err != nil {
		return err
	}
	return nil
}

// add writes one document; callers hold the write lock.
func (x *Index) add(ctx context.Context, unit domain.ContentUnit, embedding []float32) error {
	key := unit.Key()
	doc := chromem.Document{
		ID:        key,
		Content:   unit.Text,
		Metadata:  unitMetadata(unit),
		Embedding: append([]float32(nil), embedding...),
	}
	if err := x.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("adding vector %s: %w", key, err)
	}

	keys, ok := x.byDocument[unit.DocumentID]
	if !ok {
		keys = make(map[string]struct{})
		x.byDocument[unit.DocumentID] = keys
	}
	keys[key] = struct{}{}
	return nil
}

// Delete removes entries by unit key. Unknown keys are ignored.
func (x *Index) Delete(ctx context.Context, keys ...string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrClosed
	}
	return x.deleteLocked(ctx, keys)
}

func (x *Index) deleteLocked(ctx context.Context, keys []string) error {
	for _, key := range keys {
		documentID, _, _, err := domain.ParseUnitKey(key)
		if err != nil {
			return err
		}
		tracked, ok := x.byDocument[documentID]
		if !ok {
			continue
		}
		if _, ok := tracked[key]; !ok {
			continue
		}
		if err := x.col.Delete(ctx, nil, nil, key); err != nil {
			return fmt.Errorf("deleting vector %s: %w", key, err)
		}
		delete(tracked, key)
		if len(tracked) == 0 {
			delete(x.byDocument, documentID)
		}
	}
	return nil
}

// DeleteDocument removes every entry for a document.
func (x *Index) DeleteDocument(ctx context.Context, documentID int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrClosed
	}
	return x.deleteLocked(ctx, sortedKeys(x.byDocument[documentID]))
}

// SetDocumentTenant rewrites the tenant metadata of a document's entries.
func (x *Index) SetDocumentTenant(ctx context.Context, documentID int64, tenantID *string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrClosed
	}

	for _, key := range sortedKeys(x.byDocument[documentID]) {
		doc, err := x.col.GetByID(ctx, key)
		if err != nil {
			return fmt.Errorf("loading vector %s: %w", key, err)
		}
		_, ct, ref, err := domain.ParseUnitKey(key)
		if err != nil {
			return err
		}
		unit := domain.ContentUnit{
			DocumentID: documentID,
			TenantID:   tenantID,
			Type:       ct,
			Reference:  ref,
			Text:       doc.Content,
		}
		if err := x.add(ctx, unit, doc.Embedding); err != nil {
			return err
		}
	}
	return nil
}

// Search returns up to k units visible in scope with similarity at or above
// threshold, most similar first. A zero query vector matches nothing.
func (x *Index) Search(
	ctx context.Context, query []float32, scope domain.TenantScope, k int, threshold float64,
) ([]driven.VectorHit, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(query), x.dimension)
	}
	if k <= 0 || isZero(query) {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, domain.ErrClosed
	}

	wheres := []map[string]string{{metaShared: "true"}}
	if scope.Set {
		wheres = append(wheres, map[string]string{metaTenant: scope.ID})
	}

	var hits []driven.VectorHit
	for _, where := range wheres {
		n := min(k, x.col.Count())
		if n == 0 {
			break
		}
		results, err := x.col.QueryEmbedding(ctx, query, n, where, nil)
		if err != nil {
			return nil, fmt.Errorf("querying vectors: %w", err)
		}
		for _, r := range results {
			sim := float64(r.Similarity)
			if sim < threshold {
				continue
			}
			unit, err := resultUnit(r)
			if err != nil {
				x.logger.Warn("skipping malformed vector", zap.String("id", r.ID), zap.Error(err))
				continue
			}
			hits = append(hits, driven.VectorHit{Unit: unit, Similarity: sim})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Unit.Key() < hits[j].Unit.Key()
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of indexed entries.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.col.Count()
}

// Close releases the index. Later calls fail with domain.ErrClosed.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	x.byDocument = nil
	return x.db.DeleteCollection(collectionName)
}

func unitMetadata(u domain.ContentUnit) map[string]string {
	m := map[string]string{
		metaDocumentID:  fmt.Sprintf("%d", u.DocumentID),
		metaContentType: string(u.Type),
		metaReference:   u.Reference,
	}
	if u.TenantID == nil {
		m[metaShared] = "true"
	} else {
		m[metaTenant] = *u.TenantID
	}
	return m
}

func resultUnit(r chromem.Result) (domain.ContentUnit, error) {
	documentID, ct, ref, err := domain.ParseUnitKey(r.ID)
	if err != nil {
		return domain.ContentUnit{}, err
	}
	u := domain.ContentUnit{DocumentID: documentID, Type: ct, Reference: ref, Text: r.Content}
	if t, ok := r.Metadata[metaTenant]; ok {
		u.TenantID = &t
	}
	return u, nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isZero(v []float32) bool {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum) == 0
}
