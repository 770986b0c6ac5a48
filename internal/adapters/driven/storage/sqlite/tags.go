package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// tagStore implements driven.TagSource and driven.TagIndexStore.
type tagStore struct {
	store *Store
}

var (
	_ driven.TagSource     = (*tagStore)(nil)
	_ driven.TagIndexStore = (*tagStore)(nil)
)

// ListTagAttachments returns every tags attachment in document order.
func (s *tagStore) ListTagAttachments(ctx context.Context) ([]domain.Attachment, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, attachment_index, tenant_id, type, media_type, encoding, body
		FROM attachments
		WHERE type = ?
		ORDER BY document_id, attachment_index
	`, domain.AttachmentTypeTags)
	if err != nil {
		return nil, fmt.Errorf("querying tag attachments: %w", err)
	}

	var out []domain.Attachment //nolint:prealloc // size unknown from query
	err = eachRow(rows, func() error {
		var a domain.Attachment
		var tenantID, typ, mediaType, encoding, body sql.NullString
		if err := rows.Scan(&a.DocumentID, &a.Index, &tenantID, &typ, &mediaType, &encoding, &body); err != nil {
			return fmt.Errorf("scanning tag attachment: %w", err)
		}
		a.TenantID = tenantPtr(tenantID)
		a.Type, a.MediaType, a.Encoding, a.Body = typ.String, mediaType.String, encoding.String, body.String
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTagIndex returns every tag index entry ordered by document ID.
func (s *tagStore) LoadTagIndex(ctx context.Context) ([]domain.TagIndexEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, tenant_id, tags, tags_created_at, tags_updated_at
		FROM tag_index ORDER BY document_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tag index: %w", err)
	}

	var out []domain.TagIndexEntry //nolint:prealloc // size unknown from query
	err = eachRow(rows, func() error {
		var e domain.TagIndexEntry
		var tenantID sql.NullString
		var tags, createdAt, updatedAt string
		if err := rows.Scan(&e.DocumentID, &tenantID, &tags, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scanning tag index entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return fmt.Errorf("unmarshalling tags: %w", err)
		}
		e.TenantID = tenantPtr(tenantID)
		e.TagsCreatedAt = parseTime(createdAt)
		e.TagsUpdatedAt = parseTime(updatedAt)
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyTagIndexDiff applies upserts and deletes in one transaction.
// Entries for documents deleted since the diff was computed are skipped.
func (s *tagStore) ApplyTagIndexDiff(ctx context.Context, diff domain.TagIndexDiff) error {
	if diff.Size() == 0 {
		return nil
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range diff.Deletes {
			if _, err := tx.ExecContext(ctx, "DELETE FROM tag_index WHERE document_id = ?", id); err != nil {
				return fmt.Errorf("deleting tag index entry %d: %w", id, err)
			}
		}
		for _, e := range diff.Upserts {
			tags, err := json.Marshal(e.Tags)
			if err != nil {
				return fmt.Errorf("marshalling tags: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tag_index (document_id, tenant_id, tags, tags_created_at, tags_updated_at)
				SELECT id, tenant_id, ?, ?, ? FROM documents WHERE id = ?
				ON CONFLICT(document_id) DO UPDATE SET
					tenant_id = excluded.tenant_id,
					tags = excluded.tags,
					tags_updated_at = excluded.tags_updated_at
			`, string(tags), formatTime(e.TagsCreatedAt), formatTime(e.TagsUpdatedAt), e.DocumentID)
			if err != nil {
				return fmt.Errorf("saving tag index entry %d: %w", e.DocumentID, err)
			}
		}
		return nil
	})
}
