package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// vectorStore implements driven.VectorEntryStore and driven.EmbeddingQueue.
// Content units double as the queue: a unit is pending until an embedding
// for its current version is stored.
type vectorStore struct {
	store *Store
}

var (
	_ driven.VectorEntryStore = (*vectorStore)(nil)
	_ driven.EmbeddingQueue   = (*vectorStore)(nil)
)

const unitWhere = "document_id = ? AND content_type = ? AND content_reference = ?"

// SaveVectorEntry stores an embedding for an existing content unit.
func (s *vectorStore) SaveVectorEntry(ctx context.Context, entry domain.VectorEntry) (*domain.VectorEntry, error) {
	var saved *domain.VectorEntry
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		unit, _, err := lookupUnit(ctx, tx, entry.Unit)
		if err != nil {
			return err
		}
		saved, err = writeVectorEntry(ctx, tx, *unit, entry.Embedding, entry.ModelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ListVectorEntries calls fn for every stored entry with its unit text.
func (s *vectorStore) ListVectorEntries(ctx context.Context, fn func(domain.VectorEntry) error) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT v.document_id, v.content_type, v.content_reference, v.tenant_id,
		       v.embedding, v.model_id, v.created_at, c.body
		FROM vector_entries v
		JOIN content_units c
		  ON c.document_id = v.document_id
		 AND c.content_type = v.content_type
		 AND c.content_reference = v.content_reference
		ORDER BY v.document_id
	`)
	if err != nil {
		return fmt.Errorf("querying vector entries: %w", err)
	}
	return eachRow(rows, func() error {
		var e domain.VectorEntry
		var ct, createdAt string
		var tenantID, modelID sql.NullString
		var blob []byte
		if err := rows.Scan(&e.Unit.DocumentID, &ct, &e.Unit.Reference, &tenantID,
			&blob, &modelID, &createdAt, &e.Unit.Text); err != nil {
			return fmt.Errorf("scanning vector entry: %w", err)
		}
		e.Unit.Type = domain.ContentType(ct)
		e.Unit.TenantID = tenantPtr(tenantID)
		e.Embedding = bytesToFloat32Slice(blob)
		e.ModelID = modelID.String
		e.CreatedAt = parseTime(createdAt)
		return fn(e)
	})
}

// ClaimPending leases up to n pending units.
func (s *vectorStore) ClaimPending(ctx context.Context, n int, lease time.Duration) ([]domain.PendingEmbedding, error) {
	if n <= 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	rows, err := s.store.db.QueryContext(ctx, `
		UPDATE content_units SET lease_until = ?
		WHERE rowid IN (
			SELECT rowid FROM content_units
			WHERE status = 'pending' AND (lease_until IS NULL OR lease_until < ?)
			ORDER BY updated_at, document_id
			LIMIT ?
		)
		RETURNING document_id, content_type, content_reference, tenant_id, body, version, attempts, last_error
	`, formatTime(now.Add(lease)), formatTime(now), n)
	if err != nil {
		return nil, fmt.Errorf("claiming pending units: %w", err)
	}

	var claims []domain.PendingEmbedding //nolint:prealloc // size unknown from query
	err = eachRow(rows, func() error {
		var p domain.PendingEmbedding
		var ct string
		var tenantID, lastError sql.NullString
		if err := rows.Scan(&p.Unit.DocumentID, &ct, &p.Unit.Reference, &tenantID,
			&p.Unit.Text, &p.Version, &p.Attempts, &lastError); err != nil {
			return fmt.Errorf("scanning claim: %w", err)
		}
		p.Unit.Type = domain.ContentType(ct)
		p.Unit.TenantID = tenantPtr(tenantID)
		p.LastError = lastError.String
		claims = append(claims, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// CompletePending stores the embedding if the unit is still at the claimed version.
func (s *vectorStore) CompletePending(
	ctx context.Context, claim domain.PendingEmbedding, embedding []float32, modelID string,
) (*domain.VectorEntry, bool, error) {
	var saved *domain.VectorEntry
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		unit, version, err := lookupUnit(ctx, tx, claim.Unit)
		if err != nil {
			return err
		}
		if version != claim.Version {
			return nil
		}
		saved, err = writeVectorEntry(ctx, tx, *unit, embedding, modelID)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return saved, saved != nil, nil
}

// FailPending releases a claim and records the failure.
func (s *vectorStore) FailPending(ctx context.Context, claim domain.PendingEmbedding, cause error, maxAttempts int) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE content_units SET
			attempts = attempts + 1,
			last_error = ?,
			lease_until = NULL,
			status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END
		WHERE `+unitWhere+` AND version = ?
	`, nullString(msg), maxAttempts, claim.Unit.DocumentID, string(claim.Unit.Type), claim.Unit.Reference, claim.Version)
	if err != nil {
		return fmt.Errorf("recording embedding failure: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending units.
func (s *vectorStore) QueueDepth(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM content_units WHERE status = 'pending'").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending units: %w", err)
	}
	return n, nil
}

// lookupUnit loads the current state of a content unit.
func lookupUnit(ctx context.Context, tx *sql.Tx, u domain.ContentUnit) (*domain.ContentUnit, int64, error) {
	unit := domain.ContentUnit{DocumentID: u.DocumentID, Type: u.Type, Reference: u.Reference}
	var tenantID sql.NullString
	var version int64
	err := tx.QueryRowContext(ctx, `
		SELECT tenant_id, body, version FROM content_units WHERE `+unitWhere,
		u.DocumentID, string(u.Type), u.Reference,
	).Scan(&tenantID, &unit.Text, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("content unit %s: %w", u.Key(), domain.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("looking up content unit: %w", err)
	}
	unit.TenantID = tenantPtr(tenantID)
	return &unit, version, nil
}

// writeVectorEntry upserts the embedding and marks the unit embedded.
func writeVectorEntry(
	ctx context.Context, tx *sql.Tx, unit domain.ContentUnit, embedding []float32, modelID string,
) (*domain.VectorEntry, error) {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vector_entries (document_id, content_type, content_reference, tenant_id, embedding, model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, content_type, content_reference) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			embedding = excluded.embedding,
			model_id = excluded.model_id,
			created_at = excluded.created_at
	`, unit.DocumentID, string(unit.Type), unit.Reference, nullTenant(unit.TenantID),
		float32SliceToBytes(embedding), nullString(modelID), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("saving vector entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE content_units SET status = 'embedded', lease_until = NULL, last_error = NULL
		WHERE `+unitWhere, unit.DocumentID, string(unit.Type), unit.Reference)
	if err != nil {
		return nil, fmt.Errorf("marking unit embedded: %w", err)
	}

	return &domain.VectorEntry{Unit: unit, Embedding: embedding, ModelID: modelID, CreatedAt: now}, nil
}
