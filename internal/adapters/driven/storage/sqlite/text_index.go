package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
)

// textIndex implements driven.TextIndex over the text_fields and
// text_terms tables.
type textIndex struct {
	store *Store
}

var _ driven.TextIndex = (*textIndex)(nil)

// MatchFields returns fields visible in scope containing any of terms.
func (t *textIndex) MatchFields(
	ctx context.Context, terms []string, scope domain.TenantScope, opts driven.TextMatchOptions,
) ([]domain.TextField, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(terms)+3)
	for _, term := range terms {
		args = append(args, term)
	}
	clause, targs := tenantClause("f.tenant_id", scope)
	conds := []string{clause}
	args = append(args, targs...)
	if opts.Start != nil {
		conds = append(conds, "f.document_created_at >= ?")
		args = append(args, formatTime(*opts.Start))
	}
	if opts.End != nil {
		conds = append(conds, "f.document_created_at <= ?")
		args = append(args, formatTime(*opts.End))
	}

	rows, err := t.store.db.QueryContext(ctx, `
		SELECT f.document_id, f.tenant_id, f.field_kind, f.field_reference, f.body, f.terms, f.document_created_at
		FROM text_fields f
		WHERE f.id IN (SELECT field_id FROM text_terms WHERE term IN (`+placeholders(len(terms))+`))
		  AND `+strings.Join(conds, " AND ")+`
		ORDER BY f.document_id, f.field_kind, f.field_reference
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying text fields: %w", err)
	}

	var fields []domain.TextField //nolint:prealloc // size unknown from query
	err = eachRow(rows, func() error {
		var f domain.TextField
		var tenantID sql.NullString
		var kind, termsJSON, createdAt string
		if err := rows.Scan(&f.DocumentID, &tenantID, &kind, &f.Reference, &f.Text, &termsJSON, &createdAt); err != nil {
			return fmt.Errorf("scanning text field: %w", err)
		}
		if err := json.Unmarshal([]byte(termsJSON), &f.Terms); err != nil {
			return fmt.Errorf("unmarshalling terms: %w", err)
		}
		f.TenantID = tenantPtr(tenantID)
		f.Kind = domain.FieldKind(kind)
		f.CreatedAt = parseTime(createdAt)
		fields = append(fields, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}
