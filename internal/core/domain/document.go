package domain

import "time"

// AttachmentTypeTags marks an attachment whose body is a JSON array of
// "key:value" strings.
const AttachmentTypeTags = "tags"

// Document is a conversation record. Child entities reference it by ID.
type Document struct {
	// ID is the store-assigned identifier.
	ID int64

	// UUID is the external identifier supplied by the writer.
	UUID string

	// TenantID owns the document. Nil marks it as shared with every tenant.
	TenantID *string

	// Subject is the conversation subject line.
	Subject string

	// CreatedAt is when the conversation was created.
	CreatedAt time.Time

	// UpdatedAt is when the document was last written.
	UpdatedAt time.Time
}

// Participant is a party to the conversation.
type Participant struct {
	DocumentID int64
	Index      int
	Name       string
	Tel        string
	Mailto     string
	SIP        string
	DID        string
	UUID       string

	// TenantID is a denormalized copy of the parent document's tenant.
	TenantID *string
}

// DialogTurn is one recording, text message or transfer in the conversation.
type DialogTurn struct {
	DocumentID int64
	Index      int
	Type       string
	StartTime  *time.Time
	Originator int
	MediaType  string
	Encoding   string
	Body       string

	// TenantID is a denormalized copy of the parent document's tenant.
	TenantID *string
}

// AnalysisResult is derived output such as a transcript or a summary.
type AnalysisResult struct {
	DocumentID int64
	Index      int
	Type       string
	Vendor     string
	Product    string
	Schema     string
	Encoding   string
	Body       string

	// TenantID is a denormalized copy of the parent document's tenant.
	TenantID *string
}

// Attachment is a free-form payload attached to the conversation.
type Attachment struct {
	DocumentID int64
	Index      int
	Type       string
	MediaType  string
	Encoding   string
	Body       string

	// TenantID is a denormalized copy of the parent document's tenant.
	TenantID *string
}

// IsTags reports whether the attachment carries tag tokens.
func (a Attachment) IsTags() bool {
	return a.Type == AttachmentTypeTags
}

// DocumentRecord is a document together with all of its children.
type DocumentRecord struct {
	Document
	Participants []Participant
	Dialog       []DialogTurn
	Analysis     []AnalysisResult
	Attachments  []Attachment
}

// PropagateTenant copies the document's tenant onto every child entity.
func (r *DocumentRecord) PropagateTenant() {
	for i := range r.Participants {
		r.Participants[i].TenantID = r.TenantID
	}
	for i := range r.Dialog {
		r.Dialog[i].TenantID = r.TenantID
	}
	for i := range r.Analysis {
		r.Analysis[i].TenantID = r.TenantID
	}
	for i := range r.Attachments {
		r.Attachments[i].TenantID = r.TenantID
	}
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
