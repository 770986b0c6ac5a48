// Package vcon converts between vCon JSON documents and domain records.
//
// Bodies may be JSON strings or arbitrary JSON values. Strings are stored
// as their text; any other value is stored as its compact JSON encoding,
// so a tags attachment whose body is an array round-trips unchanged.
package vcon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
)

// Version is the vCon syntax version written by Encode.
const Version = "0.0.1"

// VCon is the JSON form of a conversation.
type VCon struct {
	Version     string       `json:"vcon,omitempty"`
	UUID        string       `json:"uuid,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	Subject     string       `json:"subject,omitempty"`
	TenantID    *string      `json:"tenant_id,omitempty"`
	Parties     []Party      `json:"parties"`
	Dialog      []Dialog     `json:"dialog"`
	Analysis    []Analysis   `json:"analysis"`
	Attachments []Attachment `json:"attachments"`
}

// Party is a participant.
type Party struct {
	Name   string `json:"name,omitempty"`
	Tel    string `json:"tel,omitempty"`
	Mailto string `json:"mailto,omitempty"`
	SIP    string `json:"sip,omitempty"`
	DID    string `json:"did,omitempty"`
	UUID   string `json:"uuid,omitempty"`
}

// Dialog is one recording, text or transfer.
type Dialog struct {
	Type       string     `json:"type"`
	Start      *time.Time `json:"start,omitempty"`
	Originator int        `json:"originator,omitempty"`
	MediaType  string     `json:"mediatype,omitempty"`
	Encoding   string     `json:"encoding,omitempty"`
	Body       Body       `json:"body,omitempty"`
}

// Analysis is derived output attached to the conversation.
type Analysis struct {
	Type     string `json:"type"`
	Vendor   string `json:"vendor,omitempty"`
	Product  string `json:"product,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Body     Body   `json:"body,omitempty"`
}

// Attachment is a free-form payload.
type Attachment struct {
	Type      string `json:"type"`
	MediaType string `json:"mediatype,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
	Body      Body   `json:"body,omitempty"`
}

// Body is a string or a raw JSON value.
type Body string

// UnmarshalJSON accepts a JSON string or any other JSON value.
func (b *Body) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Body(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*b = Body(buf.String())
	return nil
}

// MarshalJSON writes JSON arrays and objects verbatim and everything else
// as a string.
func (b Body) MarshalJSON() ([]byte, error) {
	s := string(b)
	if len(s) > 0 && (s[0] == '[' || s[0] == '{') && json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// Decode reads one vCon from r.
func Decode(r io.Reader) (*VCon, error) {
	var v VCon
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: decoding vcon: %v", domain.ErrInvalidInput, err)
	}
	return &v, nil
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v *VCon) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Record converts v into a domain record. Child indexes follow array order.
func (v *VCon) Record() *domain.DocumentRecord {
	rec := &domain.DocumentRecord{
		Document: domain.Document{
			UUID:     v.UUID,
			TenantID: v.TenantID,
			Subject:  v.Subject,
		},
	}
	if v.CreatedAt != nil {
		rec.CreatedAt = *v.CreatedAt
	}
	for i, p := range v.Parties {
		rec.Participants = append(rec.Participants, domain.Participant{
			Index: i, Name: p.Name, Tel: p.Tel, Mailto: p.Mailto, SIP: p.SIP, DID: p.DID, UUID: p.UUID,
		})
	}
	for i, d := range v.Dialog {
		rec.Dialog = append(rec.Dialog, domain.DialogTurn{
			Index: i, Type: d.Type, StartTime: d.Start, Originator: d.Originator,
			MediaType: d.MediaType, Encoding: d.Encoding, Body: string(d.Body),
		})
	}
	for i, a := range v.Analysis {
		rec.Analysis = append(rec.Analysis, domain.AnalysisResult{
			Index: i, Type: a.Type, Vendor: a.Vendor, Product: a.Product,
			Schema: a.Schema, Encoding: a.Encoding, Body: string(a.Body),
		})
	}
	for i, a := range v.Attachments {
		rec.Attachments = append(rec.Attachments, domain.Attachment{
			Index: i, Type: a.Type, MediaType: a.MediaType, Encoding: a.Encoding, Body: string(a.Body),
		})
	}
	return rec
}

// FromRecord converts a domain record into its vCon form.
func FromRecord(rec *domain.DocumentRecord) *VCon {
	created := rec.CreatedAt
	v := &VCon{
		Version:     Version,
		UUID:        rec.UUID,
		Subject:     rec.Subject,
		TenantID:    rec.TenantID,
		Parties:     make([]Party, len(rec.Participants)),
		Dialog:      make([]Dialog, len(rec.Dialog)),
		Analysis:    make([]Analysis, len(rec.Analysis)),
		Attachments: make([]Attachment, len(rec.Attachments)),
	}
	if !created.IsZero() {
		v.CreatedAt = &created
	}
	for i, p := range rec.Participants {
		v.Parties[i] = Party{Name: p.Name, Tel: p.Tel, Mailto: p.Mailto, SIP: p.SIP, DID: p.DID, UUID: p.UUID}
	}
	for i, d := range rec.Dialog {
		v.Dialog[i] = Dialog{
			Type: d.Type, Start: d.StartTime, Originator: d.Originator,
			MediaType: d.MediaType, Encoding: d.Encoding, Body: Body(d.Body),
		}
	}
	for i, a := range rec.Analysis {
		v.Analysis[i] = Analysis{
			Type: a.Type, Vendor: a.Vendor, Product: a.Product,
			Schema: a.Schema, Encoding: a.Encoding, Body: Body(a.Body),
		}
	}
	for i, a := range rec.Attachments {
		v.Attachments[i] = Attachment{Type: a.Type, MediaType: a.MediaType, Encoding: a.Encoding, Body: Body(a.Body)}
	}
	return v
}
