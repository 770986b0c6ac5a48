package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/storage/memory"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/vector/chromem"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// testDim keeps test embeddings readable.
const testDim = 4

// testEnv wires the services over the in-memory store and a real index.
type testEnv struct {
	store   *memory.Store
	index   *chromem.Index
	tags    *TagIndexService
	docs    *DocumentService
	vectors *VectorService
	search  *SearchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	index, err := chromem.New(testDim, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tags := NewTagIndexService(store, store)
	return &testEnv{
		store:   store,
		index:   index,
		tags:    tags,
		docs:    NewDocumentService(store, tags, index),
		vectors: NewVectorService(store, index, testDim),
		search: NewSearchService(store, store, index, tags, domain.SearchSettings{
			DefaultLimit:      domain.DefaultLimit,
			SemanticThreshold: domain.DefaultThreshold,
			SemanticWeight:    domain.DefaultSemanticWeight,
			Dimension:         testDim,
		}),
	}
}

// save stores a document in its owner's session and returns its id.
func (e *testEnv) save(t *testing.T, rec *domain.DocumentRecord) int64 {
	t.Helper()
	ctx := context.Background()
	if rec.TenantID != nil {
		ctx = inSession(*rec.TenantID)
	}
	res, err := e.docs.Save(ctx, rec)
	require.NoError(t, err)
	return res.Document.ID
}

// embed publishes an embedding for one of a document's content units.
func (e *testEnv) embed(t *testing.T, docID int64, ct domain.ContentType, ref string, vec ...float32) {
	t.Helper()
	err := e.vectors.UpsertEmbedding(context.Background(), domain.VectorEntry{
		Unit:      domain.ContentUnit{DocumentID: docID, Type: ct, Reference: ref},
		Embedding: vec,
		ModelID:   "test",
	})
	require.NoError(t, err)
}

func (e *testEnv) refreshTags(t *testing.T) {
	t.Helper()
	_, err := e.tags.Refresh(context.Background())
	require.NoError(t, err)
}

// record builds a document with dialog bodies and optional tag tokens.
func record(tenantID, subject string, dialog []string, tags ...string) *domain.DocumentRecord {
	rec := &domain.DocumentRecord{
		Document: domain.Document{TenantID: domain.StringPtr(tenantID), Subject: subject},
	}
	for _, body := range dialog {
		rec.Dialog = append(rec.Dialog, domain.DialogTurn{Type: "text", Body: body})
	}
	if len(tags) > 0 {
		rec.Attachments = append(rec.Attachments, domain.Attachment{
			Type: domain.AttachmentTypeTags,
			Body: tagBody(tags...),
		})
	}
	return rec
}

func tagBody(tags ...string) string {
	body := "["
	for i, tok := range tags {
		if i > 0 {
			body += ","
		}
		body += `"` + tok + `"`
	}
	return body + "]"
}

// as returns a context scoped to tenantID by an authenticated claim.
func as(tenantID string) context.Context {
	return tenant.WithClaims(context.Background(), &tenant.Claims{Subject: "test", TenantID: tenantID})
}

// inSession returns a context whose session tenant is tenantID.
func inSession(tenantID string) context.Context {
	sess := tenant.NewSession()
	sess.Set(tenantID)
	return tenant.WithSession(context.Background(), sess)
}

func ids[T any](rows []T, id func(T) int64) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = id(r)
	}
	return out
}
