package domain

import "time"

// FieldKind identifies which text-bearing field a lexical entry came from.
type FieldKind string

const (
	// FieldSubject is the document subject.
	FieldSubject FieldKind = "subject"
	// FieldParty is a participant's identity fields.
	FieldParty FieldKind = "party"
	// FieldDialog is a dialog turn body.
	FieldDialog FieldKind = "dialog"
	// FieldAnalysis is an analysis result body.
	FieldAnalysis FieldKind = "analysis"
)

// Lexical weights per field kind. Subject ranks highest, dialog lowest.
const (
	WeightA = 1.0
	WeightB = 0.4
	WeightC = 0.2
)

// Weight returns the ranking weight for the field kind.
func (k FieldKind) Weight() float64 {
	switch k {
	case FieldSubject:
		return WeightA
	case FieldParty, FieldAnalysis:
		return WeightB
	case FieldDialog:
		return WeightC
	default:
		return 0
	}
}

// Valid reports whether k is a known field kind.
func (k FieldKind) Valid() bool {
	return k.Weight() > 0
}

// TextField is the stored lexical representation of one field occurrence.
type TextField struct {
	// DocumentID is the owning document.
	DocumentID int64

	// TenantID is a denormalized copy of the parent document's tenant.
	TenantID *string

	// Kind is the field kind.
	Kind FieldKind

	// Reference locates the occurrence within the document ("0" for the
	// subject, the child index otherwise).
	Reference string

	// Text is the original text, kept for snippet generation.
	Text string

	// Terms maps each normalised term to its 1-based token positions.
	// Empty text yields an empty map that never matches.
	Terms map[string][]int

	// CreatedAt is the parent document's creation time, used for range filters.
	CreatedAt time.Time
}
