package sqlite

import (
	"context"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/lexical"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "vconsearch-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// testWrite builds a DocumentWrite with subject, dialog and tag attachments.
func testWrite(uuid string, tenantID *string, subject string, dialog []string, tags ...string) *driven.DocumentWrite {
	rec := &domain.DocumentRecord{
		Document: domain.Document{
			UUID:      uuid,
			TenantID:  tenantID,
			Subject:   subject,
			CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Participants: []domain.Participant{{Index: 0, Name: "Alice Agent", Mailto: "alice@example.com"}},
	}
	w := &driven.DocumentWrite{Record: rec}
	w.Fields = append(w.Fields, domain.TextField{
		Kind: domain.FieldSubject, Reference: "0", Text: subject, Terms: lexical.Analyze(subject),
	})
	w.Units = append(w.Units, domain.ContentUnit{Type: domain.ContentSubject, Reference: "0", Text: subject})
	for i, body := range dialog {
		rec.Dialog = append(rec.Dialog, domain.DialogTurn{Index: i, Type: "text", Body: body})
		ref := string(rune('0' + i))
		w.Fields = append(w.Fields, domain.TextField{
			Kind: domain.FieldDialog, Reference: ref, Text: body, Terms: lexical.Analyze(body),
		})
		w.Units = append(w.Units, domain.ContentUnit{Type: domain.ContentDialog, Reference: ref, Text: body})
	}
	for i, body := range tags {
		rec.Attachments = append(rec.Attachments, domain.Attachment{Index: i, Type: domain.AttachmentTypeTags, Body: body})
	}
	return w
}

func TestNewStore_Migrates(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 3, version)

	// Re-running migrations is a no-op.
	require.NoError(t, store.migrate(migrations.FS))
	assert.Contains(t, store.Path(), "vcons.db")
}

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	res, err := docs.SaveDocument(ctx, testWrite("uuid-1", domain.StringPtr("t1"), "Refund request",
		[]string{"I want a refund", "Sure"}, `["status:open"]`))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 3, res.Enqueued)
	require.NotZero(t, res.Document.ID)

	rec, err := docs.GetDocument(ctx, res.Document.ID, domain.ForTenant("t1", domain.TenantFromClaim))
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", rec.UUID)
	assert.Equal(t, "Refund request", rec.Subject)
	require.Len(t, rec.Participants, 1)
	assert.Equal(t, "Alice Agent", rec.Participants[0].Name)
	assert.Equal(t, "t1", domain.StringValue(rec.Participants[0].TenantID))
	require.Len(t, rec.Dialog, 2)
	assert.Equal(t, "t1", domain.StringValue(rec.Dialog[1].TenantID))
	require.Len(t, rec.Attachments, 1)
	assert.True(t, rec.Attachments[0].IsTags())

	byUUID, err := docs.GetDocumentByUUID(ctx, "uuid-1", domain.ForTenant("t1", domain.TenantFromClaim))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byUUID.ID)
}

func TestDocumentStore_TenantIsolation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	owned, err := docs.SaveDocument(ctx, testWrite("owned", domain.StringPtr("t1"), "Owned", nil))
	require.NoError(t, err)
	shared, err := docs.SaveDocument(ctx, testWrite("shared", nil, "Shared", nil))
	require.NoError(t, err)

	_, err = docs.GetDocument(ctx, owned.Document.ID, domain.ForTenant("t2", domain.TenantFromClaim))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.GetDocument(ctx, owned.Document.ID, domain.NoTenant)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.GetDocument(ctx, shared.Document.ID, domain.NoTenant)
	assert.NoError(t, err)

	list, err := docs.ListDocuments(ctx, domain.ForTenant("t1", domain.TenantFromClaim), driven.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = docs.ListDocuments(ctx, domain.NoTenant, driven.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "shared", list[0].UUID)
}

func TestDocumentStore_ListFilters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	w1 := testWrite("a", nil, "Billing question", nil)
	w1.Record.CreatedAt = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	w2 := testWrite("b", nil, "Shipping delay", nil)
	w2.Record.CreatedAt = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	w3 := testWrite("c", nil, "100% off_promo", nil)
	_, err := docs.SaveDocument(ctx, w1)
	require.NoError(t, err)
	_, err = docs.SaveDocument(ctx, w2)
	require.NoError(t, err)
	_, err = docs.SaveDocument(ctx, w3)
	require.NoError(t, err)

	list, err := docs.ListDocuments(ctx, domain.NoTenant, driven.DocumentFilter{Subject: "billing"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].UUID)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	list, err = docs.ListDocuments(ctx, domain.NoTenant, driven.DocumentFilter{Start: &start, End: &end})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].UUID)

	list, err = docs.ListDocuments(ctx, domain.NoTenant, driven.DocumentFilter{Subject: "%"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c", list[0].UUID)

	list, err = docs.ListDocuments(ctx, domain.NoTenant, driven.DocumentFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDocumentStore_UpdateReplacesChildren(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	first, err := docs.SaveDocument(ctx, testWrite("uuid-1", nil, "Hello", []string{"one", "two"}))
	require.NoError(t, err)

	second, err := docs.SaveDocument(ctx, testWrite("uuid-1", nil, "Hello", []string{"one changed"}))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, first.Document.CreatedAt, second.Document.CreatedAt)
	assert.ElementsMatch(t, []string{
		domain.UnitKey(first.Document.ID, domain.ContentDialog, "0"),
		domain.UnitKey(first.Document.ID, domain.ContentDialog, "1"),
	}, second.StaleUnits)
	assert.Equal(t, 1, second.Enqueued)

	rec, err := docs.GetDocument(ctx, first.Document.ID, domain.NoTenant)
	require.NoError(t, err)
	require.Len(t, rec.Dialog, 1)
	assert.Equal(t, "one changed", rec.Dialog[0].Body)
}

func TestDocumentStore_Delete_Cascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	res, err := docs.SaveDocument(ctx, testWrite("uuid-1", nil, "Refund", []string{"refund please"}, `["a:b"]`))
	require.NoError(t, err)
	id := res.Document.ID

	_, err = store.VectorEntryStore().SaveVectorEntry(ctx, domain.VectorEntry{
		Unit:      domain.ContentUnit{DocumentID: id, Type: domain.ContentSubject, Reference: "0"},
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)
	require.NoError(t, store.TagIndexStore().ApplyTagIndexDiff(ctx, domain.TagIndexDiff{
		Upserts: []domain.TagIndexEntry{{DocumentID: id, Tags: map[string]string{"a": "b"}}},
	}))

	deleted, err := docs.DeleteDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", deleted.UUID)

	for _, table := range []string{"participants", "dialog_turns", "attachments", "text_fields",
		"text_terms", "tag_index", "content_units", "vector_entries"} {
		var n int
		require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}

	_, err = docs.DeleteDocument(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_SetDocumentTenant_Cascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	res, err := docs.SaveDocument(ctx, testWrite("uuid-1", nil, "Refund", []string{"refund please"}, `["a:b"]`))
	require.NoError(t, err)
	id := res.Document.ID
	require.NoError(t, store.TagIndexStore().ApplyTagIndexDiff(ctx, domain.TagIndexDiff{
		Upserts: []domain.TagIndexEntry{{DocumentID: id, Tags: map[string]string{"a": "b"}}},
	}))

	doc, err := docs.SetDocumentTenant(ctx, id, domain.StringPtr("t9"))
	require.NoError(t, err)
	assert.Equal(t, "t9", domain.StringValue(doc.TenantID))

	for _, table := range tenantTables {
		var n int
		require.NoError(t, store.db.QueryRow(
			"SELECT COUNT(*) FROM "+table+" WHERE tenant_id IS NOT 't9'").Scan(&n))
		assert.Zero(t, n, table)
	}

	_, err = docs.SetDocumentTenant(ctx, 999, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_SaveValidation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.DocumentStore().SaveDocument(context.Background(), &driven.DocumentWrite{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.DocumentStore().SaveDocument(context.Background(), testWrite("", nil, "x", nil))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_SaveRejectsHiddenDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	orig, err := docs.SaveDocument(ctx, testWrite("uuid-1", domain.StringPtr("t1"), "Original", []string{"keep me"}))
	require.NoError(t, err)

	w := testWrite("uuid-1", domain.StringPtr("t2"), "Overwritten", nil)
	scope := domain.ForTenant("t2", domain.TenantFromClaim)
	w.Scope = &scope
	_, err = docs.SaveDocument(ctx, w)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	rec, err := docs.GetDocument(ctx, orig.Document.ID, domain.ForTenant("t1", domain.TenantFromClaim))
	require.NoError(t, err)
	assert.Equal(t, "Original", rec.Subject)
	require.Len(t, rec.Dialog, 1)

	// The owner's scope passes.
	w = testWrite("uuid-1", domain.StringPtr("t1"), "Updated", nil)
	scope = domain.ForTenant("t1", domain.TenantFromSession)
	w.Scope = &scope
	res, err := docs.SaveDocument(ctx, w)
	require.NoError(t, err)
	assert.False(t, res.Created)
}

func TestTenantClause(t *testing.T) {
	clause, args := tenantClause("tenant_id", domain.NoTenant)
	assert.Equal(t, "tenant_id IS NULL", clause)
	assert.Empty(t, args)

	clause, args = tenantClause("f.tenant_id", domain.ForTenant("t1", domain.TenantFromClaim))
	assert.Equal(t, "(f.tenant_id IS NULL OR f.tenant_id = ?)", clause)
	assert.Equal(t, []any{"t1"}, args)
}

func TestHelpers(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC)
	assert.Equal(t, "2024-05-06T07:08:09.123456Z", formatTime(ts))
	assert.True(t, ts.Equal(parseTime(formatTime(ts))))
	assert.True(t, parseTime("garbage").IsZero())
	assert.Nil(t, formatNullableTime(time.Time{}))

	vec := []float32{0.5, -1, 3.25}
	assert.Equal(t, vec, bytesToFloat32Slice(float32SliceToBytes(vec)))

	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, `50\% off\_x`, escapeLike("50% off_x"))
	assert.Nil(t, nullString(""))
	assert.Equal(t, 1, boolToInt(true))
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"010_late.up.sql":      {Data: []byte("SELECT 1;")},
		"002_second.up.sql":    {Data: []byte("SELECT 1;")},
		"002_second.down.sql":  {Data: []byte("SELECT 1;")},
		"001_first.up.sql":     {Data: []byte("SELECT 1;")},
		"notes.txt":            {Data: []byte("ignored")},
		"draft_unnumbered.sql": {Data: []byte("ignored")},
	}

	all, err := pendingMigrations(fsys, 0)
	require.NoError(t, err)
	assert.Equal(t, []migration{
		{version: 1, name: "001_first.up.sql"},
		{version: 2, name: "002_second.up.sql"},
		{version: 10, name: "010_late.up.sql"},
	}, all)

	rest, err := pendingMigrations(fsys, 2)
	require.NoError(t, err)
	assert.Equal(t, []migration{{version: 10, name: "010_late.up.sql"}}, rest)
}
