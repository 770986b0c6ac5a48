package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument upserts a document by UUID and replaces its children,
// text fields and content units in one transaction.
func (s *documentStore) SaveDocument(ctx context.Context, w *driven.DocumentWrite) (*driven.SaveResult, error) {
	if w == nil || w.Record == nil {
		return nil, domain.NewValidationError("document", "missing record")
	}
	rec := w.Record
	if rec.UUID == "" {
		return nil, domain.NewValidationError("uuid", "must not be empty")
	}

	now := time.Now().UTC()
	result := &driven.SaveResult{}

	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		var prevTenant sql.NullString
		var prevCreated string
		err := tx.QueryRowContext(ctx,
			"SELECT tenant_id, created_at FROM documents WHERE uuid = ?", rec.UUID,
		).Scan(&prevTenant, &prevCreated)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result.Created = true
		case err != nil:
			return fmt.Errorf("looking up document: %w", err)
		default:
			result.PreviousTenantID = tenantPtr(prevTenant)
			if w.Scope != nil && !w.Scope.Visible(result.PreviousTenantID) {
				return fmt.Errorf("%w: document %s belongs to another tenant", domain.ErrForbidden, rec.UUID)
			}
		}

		if rec.CreatedAt.IsZero() {
			if result.Created {
				rec.CreatedAt = now
			} else {
				rec.CreatedAt = parseTime(prevCreated)
			}
		}
		rec.UpdatedAt = now

		err = tx.QueryRowContext(ctx, `
			INSERT INTO documents (uuid, tenant_id, subject, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(uuid) DO UPDATE SET
				tenant_id = excluded.tenant_id,
				subject = excluded.subject,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at
			RETURNING id
		`, rec.UUID, nullTenant(rec.TenantID), rec.Subject,
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt)).Scan(&rec.ID)
		if err != nil {
			return fmt.Errorf("saving document: %w", err)
		}

		rec.PropagateTenant()
		if err := replaceChildren(ctx, tx, rec); err != nil {
			return err
		}
		if err := replaceTextFields(ctx, tx, rec, w.Fields); err != nil {
			return err
		}
		stale, enqueued, err := syncContentUnits(ctx, tx, rec, w.Units, now)
		if err != nil {
			return err
		}
		result.StaleUnits = stale
		result.Enqueued = enqueued

		for _, table := range []string{"tag_index", "vector_entries"} {
			if _, err := tx.ExecContext(ctx,
				"UPDATE "+table+" SET tenant_id = ? WHERE document_id = ?",
				nullTenant(rec.TenantID), rec.ID); err != nil {
				return fmt.Errorf("propagating tenant to %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Document = rec.Document
	return result, nil
}

// replaceChildren deletes and reinserts every child entity.
func replaceChildren(ctx context.Context, tx *sql.Tx, rec *domain.DocumentRecord) error {
	for _, table := range []string{"participants", "dialog_turns", "analysis_results", "attachments"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE document_id = ?", rec.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, p := range rec.Participants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO participants (document_id, party_index, tenant_id, name, tel, mailto, sip, did, uuid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, p.Index, nullTenant(p.TenantID), nullString(p.Name), nullString(p.Tel),
			nullString(p.Mailto), nullString(p.SIP), nullString(p.DID), nullString(p.UUID))
		if err != nil {
			return fmt.Errorf("saving participant %d: %w", p.Index, err)
		}
	}

	for _, d := range rec.Dialog {
		var start any
		if d.StartTime != nil {
			start = formatTime(*d.StartTime)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dialog_turns (document_id, dialog_index, tenant_id, type, start_time, originator, media_type, encoding, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, d.Index, nullTenant(d.TenantID), nullString(d.Type), start, d.Originator,
			nullString(d.MediaType), nullString(d.Encoding), d.Body)
		if err != nil {
			return fmt.Errorf("saving dialog %d: %w", d.Index, err)
		}
	}

	for _, a := range rec.Analysis {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO analysis_results (document_id, analysis_index, tenant_id, type, vendor, product, schema, encoding, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, a.Index, nullTenant(a.TenantID), nullString(a.Type), nullString(a.Vendor),
			nullString(a.Product), nullString(a.Schema), nullString(a.Encoding), a.Body)
		if err != nil {
			return fmt.Errorf("saving analysis %d: %w", a.Index, err)
		}
	}

	for _, a := range rec.Attachments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (document_id, attachment_index, tenant_id, type, media_type, encoding, body)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, a.Index, nullTenant(a.TenantID), nullString(a.Type),
			nullString(a.MediaType), nullString(a.Encoding), a.Body)
		if err != nil {
			return fmt.Errorf("saving attachment %d: %w", a.Index, err)
		}
	}
	return nil
}

// replaceTextFields rewrites the document's lexical fields and term postings.
func replaceTextFields(ctx context.Context, tx *sql.Tx, rec *domain.DocumentRecord, fields []domain.TextField) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM text_fields WHERE document_id = ?", rec.ID); err != nil {
		return fmt.Errorf("clearing text fields: %w", err)
	}

	for _, f := range fields {
		terms := f.Terms
		if terms == nil {
			terms = map[string][]int{}
		}
		termsJSON, err := json.Marshal(terms)
		if err != nil {
			return fmt.Errorf("marshalling terms: %w", err)
		}

		var fieldID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO text_fields (document_id, tenant_id, field_kind, field_reference, body, terms, document_created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`, rec.ID, nullTenant(rec.TenantID), string(f.Kind), f.Reference, f.Text,
			string(termsJSON), formatTime(rec.CreatedAt)).Scan(&fieldID)
		if err != nil {
			return fmt.Errorf("saving text field %s/%s: %w", f.Kind, f.Reference, err)
		}

		for term := range terms {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO text_terms (term, field_id) VALUES (?, ?)", term, fieldID); err != nil {
				return fmt.Errorf("saving term: %w", err)
			}
		}
	}
	return nil
}

// syncContentUnits reconciles stored content units with the new set.
// Changed or removed units lose their embeddings and are reported stale;
// new and changed units are queued.
func syncContentUnits(
	ctx context.Context, tx *sql.Tx, rec *domain.DocumentRecord, units []domain.ContentUnit, now time.Time,
) ([]string, int, error) {
	type existingUnit struct {
		body    string
		version int64
	}
	existing := map[string]existingUnit{}

	rows, err := tx.QueryContext(ctx, `
		SELECT content_type, content_reference, body, version
		FROM content_units WHERE document_id = ?
	`, rec.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("querying content units: %w", err)
	}
	for rows.Next() {
		var ct, ref, body string
		var version int64
		if err := rows.Scan(&ct, &ref, &body, &version); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scanning content unit: %w", err)
		}
		existing[domain.UnitKey(rec.ID, domain.ContentType(ct), ref)] = existingUnit{body: body, version: version}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating content units: %w", err)
	}

	var stale []string
	enqueued := 0
	seen := map[string]bool{}
	for _, u := range units {
		u.DocumentID = rec.ID
		key := u.Key()
		seen[key] = true

		old, ok := existing[key]
		switch {
		case !ok:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO content_units (document_id, content_type, content_reference, tenant_id, body, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, rec.ID, string(u.Type), u.Reference, nullTenant(rec.TenantID), u.Text, formatTime(now))
			enqueued++
		case old.body != u.Text:
			_, err = tx.ExecContext(ctx, `
				UPDATE content_units SET
					tenant_id = ?, body = ?, version = version + 1, status = 'pending',
					attempts = 0, last_error = NULL, lease_until = NULL, updated_at = ?
				WHERE document_id = ? AND content_type = ? AND content_reference = ?
			`, nullTenant(rec.TenantID), u.Text, formatTime(now), rec.ID, string(u.Type), u.Reference)
			if err == nil {
				_, err = tx.ExecContext(ctx, `
					DELETE FROM vector_entries
					WHERE document_id = ? AND content_type = ? AND content_reference = ?
				`, rec.ID, string(u.Type), u.Reference)
			}
			stale = append(stale, key)
			enqueued++
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE content_units SET tenant_id = ?
				WHERE document_id = ? AND content_type = ? AND content_reference = ?
			`, nullTenant(rec.TenantID), rec.ID, string(u.Type), u.Reference)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("saving content unit %s: %w", key, err)
		}
	}

	for key := range existing {
		if seen[key] {
			continue
		}
		_, ct, ref, err := domain.ParseUnitKey(key)
		if err != nil {
			return nil, 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM content_units
			WHERE document_id = ? AND content_type = ? AND content_reference = ?
		`, rec.ID, string(ct), ref); err != nil {
			return nil, 0, fmt.Errorf("removing content unit %s: %w", key, err)
		}
		stale = append(stale, key)
	}
	return stale, enqueued, nil
}

// GetDocument retrieves a document and its children by ID.
func (s *documentStore) GetDocument(ctx context.Context, id int64, scope domain.TenantScope) (*domain.DocumentRecord, error) {
	return s.getDocument(ctx, "id = ?", id, scope)
}

// GetDocumentByUUID retrieves a document and its children by UUID.
func (s *documentStore) GetDocumentByUUID(ctx context.Context, uuid string, scope domain.TenantScope) (*domain.DocumentRecord, error) {
	return s.getDocument(ctx, "uuid = ?", uuid, scope)
}

func (s *documentStore) getDocument(ctx context.Context, where string, arg any, scope domain.TenantScope) (*domain.DocumentRecord, error) {
	clause, args := tenantClause("tenant_id", scope)
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, uuid, tenant_id, subject, created_at, updated_at
		FROM documents WHERE `+where+` AND `+clause,
		append([]any{arg}, args...)...)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}

	rec := &domain.DocumentRecord{Document: *doc}
	if err := s.loadChildren(ctx, rec, scope); err != nil {
		return nil, err
	}
	return rec, nil
}

// loadChildren reads every child entity, applying the tenant predicate to
// each table's own tenant column.
func (s *documentStore) loadChildren(ctx context.Context, rec *domain.DocumentRecord, scope domain.TenantScope) error {
	clause, targs := tenantClause("tenant_id", scope)
	args := append([]any{rec.ID}, targs...)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT party_index, tenant_id, name, tel, mailto, sip, did, uuid
		FROM participants WHERE document_id = ? AND `+clause+` ORDER BY party_index
	`, args...)
	if err != nil {
		return fmt.Errorf("querying participants: %w", err)
	}
	err = eachRow(rows, func() error {
		p := domain.Participant{DocumentID: rec.ID}
		var tenantID, name, tel, mailto, sip, did, uuid sql.NullString
		if err := rows.Scan(&p.Index, &tenantID, &name, &tel, &mailto, &sip, &did, &uuid); err != nil {
			return fmt.Errorf("scanning participant: %w", err)
		}
		p.TenantID = tenantPtr(tenantID)
		p.Name, p.Tel, p.Mailto = name.String, tel.String, mailto.String
		p.SIP, p.DID, p.UUID = sip.String, did.String, uuid.String
		rec.Participants = append(rec.Participants, p)
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = s.store.db.QueryContext(ctx, `
		SELECT dialog_index, tenant_id, type, start_time, originator, media_type, encoding, body
		FROM dialog_turns WHERE document_id = ? AND `+clause+` ORDER BY dialog_index
	`, args...)
	if err != nil {
		return fmt.Errorf("querying dialog: %w", err)
	}
	err = eachRow(rows, func() error {
		d := domain.DialogTurn{DocumentID: rec.ID}
		var tenantID, typ, start, mediaType, encoding, body sql.NullString
		var originator sql.NullInt64
		if err := rows.Scan(&d.Index, &tenantID, &typ, &start, &originator, &mediaType, &encoding, &body); err != nil {
			return fmt.Errorf("scanning dialog: %w", err)
		}
		d.TenantID = tenantPtr(tenantID)
		d.Type, d.MediaType, d.Encoding, d.Body = typ.String, mediaType.String, encoding.String, body.String
		d.Originator = int(originator.Int64)
		if t := parseNullableTime(start); !t.IsZero() {
			d.StartTime = &t
		}
		rec.Dialog = append(rec.Dialog, d)
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = s.store.db.QueryContext(ctx, `
		SELECT analysis_index, tenant_id, type, vendor, product, schema, encoding, body
		FROM analysis_results WHERE document_id = ? AND `+clause+` ORDER BY analysis_index
	`, args...)
	if err != nil {
		return fmt.Errorf("querying analysis: %w", err)
	}
	err = eachRow(rows, func() error {
		a := domain.AnalysisResult{DocumentID: rec.ID}
		var tenantID, typ, vendor, product, schema, encoding, body sql.NullString
		if err := rows.Scan(&a.Index, &tenantID, &typ, &vendor, &product, &schema, &encoding, &body); err != nil {
			return fmt.Errorf("scanning analysis: %w", err)
		}
		a.TenantID = tenantPtr(tenantID)
		a.Type, a.Vendor, a.Product = typ.String, vendor.String, product.String
		a.Schema, a.Encoding, a.Body = schema.String, encoding.String, body.String
		rec.Analysis = append(rec.Analysis, a)
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = s.store.db.QueryContext(ctx, `
		SELECT attachment_index, tenant_id, type, media_type, encoding, body
		FROM attachments WHERE document_id = ? AND `+clause+` ORDER BY attachment_index
	`, args...)
	if err != nil {
		return fmt.Errorf("querying attachments: %w", err)
	}
	return eachRow(rows, func() error {
		a := domain.Attachment{DocumentID: rec.ID}
		var tenantID, typ, mediaType, encoding, body sql.NullString
		if err := rows.Scan(&a.Index, &tenantID, &typ, &mediaType, &encoding, &body); err != nil {
			return fmt.Errorf("scanning attachment: %w", err)
		}
		a.TenantID = tenantPtr(tenantID)
		a.Type, a.MediaType, a.Encoding, a.Body = typ.String, mediaType.String, encoding.String, body.String
		rec.Attachments = append(rec.Attachments, a)
		return nil
	})
}

// DeleteDocument removes a document. Foreign key cascades remove children,
// text fields, tag index rows, content units and vector entries.
func (s *documentStore) DeleteDocument(ctx context.Context, id int64) (*domain.Document, error) {
	var doc *domain.Document
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		doc, err = scanDocument(tx.QueryRowContext(ctx, `
			SELECT id, uuid, tenant_id, subject, created_at, updated_at
			FROM documents WHERE id = ?
		`, id))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SetDocumentTenant changes a document's tenant and cascades it.
func (s *documentStore) SetDocumentTenant(ctx context.Context, id int64, tenantID *string) (*domain.Document, error) {
	var doc *domain.Document
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		doc, err = scanDocument(tx.QueryRowContext(ctx, `
			UPDATE documents SET tenant_id = ?, updated_at = ?
			WHERE id = ?
			RETURNING id, uuid, tenant_id, subject, created_at, updated_at
		`, nullTenant(tenantID), formatTime(time.Now()), id))
		if err != nil {
			return err
		}
		for _, table := range tenantTables {
			if _, err := tx.ExecContext(ctx,
				"UPDATE "+table+" SET tenant_id = ? WHERE document_id = ?",
				nullTenant(tenantID), id); err != nil {
				return fmt.Errorf("cascading tenant to %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents visible in scope, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, scope domain.TenantScope, filter driven.DocumentFilter) ([]domain.Document, error) {
	clause, args := tenantClause("tenant_id", scope)
	conds := []string{clause}
	if filter.Subject != "" {
		conds = append(conds, "subject LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filter.Subject)+"%")
	}
	if filter.Start != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(*filter.Start))
	}
	if filter.End != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTime(*filter.End))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, uuid, tenant_id, subject, created_at, updated_at
		FROM documents
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	var docs []domain.Document //nolint:prealloc // size unknown from query
	err = eachRow(rows, func() error {
		doc, err := scanDocument(rows)
		if err != nil {
			return err
		}
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a documents row. sql.ErrNoRows maps to domain.ErrNotFound.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var tenantID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.UUID, &tenantID, &doc.Subject, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.TenantID = tenantPtr(tenantID)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

// eachRow calls fn for every row and closes rows.
func eachRow(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
