package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/lexical"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// tagPatcher applies copy-on-write updates to the published tag index.
type tagPatcher interface {
	Forget(documentID int64)
	Retenant(documentID int64, tenantID *string)
}

// DocumentService writes documents and keeps derived state in step.
//
// Lexical fields are computed here and written with the document, so
// keyword search sees a save as soon as it returns. The tag index and the
// vector index are patched for deletes and tenant moves; new tag content
// waits for the next refresh and new text waits for the embedding queue.
type DocumentService struct {
	store   driven.DocumentStore
	tags    tagPatcher
	vectors driven.VectorIndex

	cache    driven.DocumentCache
	cacheTTL time.Duration
}

// NewDocumentService creates a document service. tags and vectors may be nil.
func NewDocumentService(store driven.DocumentStore, tags tagPatcher, vectors driven.VectorIndex) *DocumentService {
	return &DocumentService{
		store:   store,
		tags:    tags,
		vectors: vectors,
	}
}

// SetCache enables the read-through document cache.
func (s *DocumentService) SetCache(cache driven.DocumentCache, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

// Save inserts or updates a document by UUID. A missing UUID is generated.
// Callers scoped by an authenticated claim can only write their own tenant,
// and no caller can overwrite a document it cannot see.
func (s *DocumentService) Save(ctx context.Context, rec *domain.DocumentRecord) (*driven.SaveResult, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	if rec == nil {
		return nil, domain.NewValidationError("document", "missing record")
	}

	scope := tenant.Resolve(ctx)
	if scope.Source == domain.TenantFromClaim {
		switch {
		case rec.TenantID == nil:
			rec.TenantID = &scope.ID
		case *rec.TenantID != scope.ID:
			return nil, fmt.Errorf("%w: document belongs to another tenant", domain.ErrForbidden)
		}
	}
	if rec.UUID == "" {
		rec.UUID = uuid.NewString()
	} else if _, err := uuid.Parse(rec.UUID); err != nil {
		return nil, domain.NewValidationError("uuid", fmt.Sprintf("%q is not a UUID", rec.UUID))
	}
	reindexChildren(rec)

	write := &driven.DocumentWrite{
		Record: rec,
		Fields: BuildTextFields(rec),
		Units:  BuildContentUnits(rec),
		Scope:  &scope,
	}
	res, err := s.store.SaveDocument(ctx, write)
	if err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	s.evict(ctx, res.Document.UUID)

	if s.vectors != nil && len(res.StaleUnits) > 0 {
		if err := s.vectors.Delete(ctx, res.StaleUnits...); err != nil {
			return nil, fmt.Errorf("dropping stale vectors: %w", err)
		}
	}
	if !res.Created && !sameTenant(res.PreviousTenantID, res.Document.TenantID) {
		if err := s.retenantDerived(ctx, res.Document.ID, res.Document.TenantID); err != nil {
			return nil, err
		}
	}

	logger.Debug("saved document %d (%s): %d fields, %d queued, %d stale",
		res.Document.ID, res.Document.UUID, len(write.Fields), res.Enqueued, len(res.StaleUnits))
	return res, nil
}

// Get retrieves a document visible to the caller.
func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.DocumentRecord, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.store.GetDocument(ctx, id, tenant.Resolve(ctx))
}

// GetByUUID retrieves a document visible to the caller, reading through
// the cache when one is configured.
func (s *DocumentService) GetByUUID(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	scope := tenant.Resolve(ctx)

	if s.cache != nil {
		rec, err := s.cache.Get(ctx, id)
		switch {
		case err == nil:
			if !scope.Visible(rec.TenantID) {
				return nil, domain.ErrNotFound
			}
			return rec, nil
		case !errors.Is(err, domain.ErrCacheMiss):
			logger.Warn("document cache read failed for %s: %v", id, err)
		}
	}

	rec, err := s.store.GetDocumentByUUID(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	// Children share the parent's tenant, so a visible record is complete.
	if s.cache != nil {
		if err := s.cache.Set(ctx, rec, s.cacheTTL); err != nil {
			logger.Warn("document cache write failed for %s: %v", id, err)
		}
	}
	return rec, nil
}

// Delete removes a document visible to the caller and everything derived
// from it.
func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	if s.store == nil {
		return domain.ErrNotImplemented
	}
	if _, err := s.store.GetDocument(ctx, id, tenant.Resolve(ctx)); err != nil {
		return err
	}

	doc, err := s.store.DeleteDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	s.evict(ctx, doc.UUID)

	if s.tags != nil {
		s.tags.Forget(id)
	}
	if s.vectors != nil {
		if err := s.vectors.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("dropping document vectors: %w", err)
		}
	}
	logger.Debug("deleted document %d (%s)", id, doc.UUID)
	return nil
}

// SetTenant moves a document visible to the caller to another tenant, or
// to shared when tenantID is nil.
func (s *DocumentService) SetTenant(ctx context.Context, id int64, tenantID *string) error {
	if s.store == nil {
		return domain.ErrNotImplemented
	}
	if tenantID != nil && strings.TrimSpace(*tenantID) == "" {
		return domain.NewValidationError("tenant_id", "must not be blank")
	}
	if _, err := s.store.GetDocument(ctx, id, tenant.Resolve(ctx)); err != nil {
		return err
	}

	doc, err := s.store.SetDocumentTenant(ctx, id, tenantID)
	if err != nil {
		return fmt.Errorf("setting document tenant: %w", err)
	}
	s.evict(ctx, doc.UUID)
	return s.retenantDerived(ctx, id, doc.TenantID)
}

// List returns documents visible to the caller.
func (s *DocumentService) List(ctx context.Context, filter driven.DocumentFilter) ([]domain.Document, error) {
	if s.store == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.store.ListDocuments(ctx, tenant.Resolve(ctx), filter)
}

func (s *DocumentService) retenantDerived(ctx context.Context, id int64, tenantID *string) error {
	if s.tags != nil {
		s.tags.Retenant(id, tenantID)
	}
	if s.vectors != nil {
		if err := s.vectors.SetDocumentTenant(ctx, id, tenantID); err != nil {
			return fmt.Errorf("moving document vectors: %w", err)
		}
	}
	return nil
}

func (s *DocumentService) evict(ctx context.Context, id string) {
	if s.cache == nil || id == "" {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		logger.Warn("document cache evict failed for %s: %v", id, err)
	}
}

// BuildTextFields computes the lexical fields of a record. Empty text
// yields no field.
func BuildTextFields(rec *domain.DocumentRecord) []domain.TextField {
	var fields []domain.TextField
	add := func(kind domain.FieldKind, ref, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		fields = append(fields, domain.TextField{
			Kind:      kind,
			Reference: ref,
			Text:      text,
			Terms:     lexical.Analyze(text),
		})
	}

	add(domain.FieldSubject, subjectReference, rec.Subject)
	for _, p := range rec.Participants {
		add(domain.FieldParty, strconv.Itoa(p.Index), partyText(p))
	}
	for _, d := range rec.Dialog {
		add(domain.FieldDialog, strconv.Itoa(d.Index), d.Body)
	}
	for _, a := range rec.Analysis {
		add(domain.FieldAnalysis, strconv.Itoa(a.Index), a.Body)
	}
	return fields
}

// BuildContentUnits lists the embeddable fragments of a record.
func BuildContentUnits(rec *domain.DocumentRecord) []domain.ContentUnit {
	var units []domain.ContentUnit
	add := func(ct domain.ContentType, ref, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		units = append(units, domain.ContentUnit{Type: ct, Reference: ref, Text: text})
	}

	add(domain.ContentSubject, subjectReference, rec.Subject)
	for _, d := range rec.Dialog {
		add(domain.ContentDialog, strconv.Itoa(d.Index), d.Body)
	}
	for _, a := range rec.Analysis {
		add(domain.ContentAnalysis, strconv.Itoa(a.Index), a.Body)
	}
	return units
}

const subjectReference = "0"

// partyText joins a participant's identifying fields.
func partyText(p domain.Participant) string {
	parts := make([]string, 0, 5)
	for _, v := range []string{p.Name, p.Tel, p.Mailto, p.SIP, p.DID} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// reindexChildren numbers children by position.
func reindexChildren(rec *domain.DocumentRecord) {
	for i := range rec.Participants {
		rec.Participants[i].Index = i
	}
	for i := range rec.Dialog {
		rec.Dialog[i].Index = i
	}
	for i := range rec.Analysis {
		rec.Analysis[i].Index = i
	}
	for i := range rec.Attachments {
		rec.Attachments[i].Index = i
	}
}

func sameTenant(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
