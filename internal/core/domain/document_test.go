package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentRecord_PropagateTenant(t *testing.T) {
	rec := DocumentRecord{
		Document:     Document{ID: 1, TenantID: StringPtr("t1")},
		Participants: []Participant{{Index: 0}, {Index: 1, TenantID: StringPtr("other")}},
		Dialog:       []DialogTurn{{Index: 0}},
		Analysis:     []AnalysisResult{{Index: 0}},
		Attachments:  []Attachment{{Index: 0}},
	}

	rec.PropagateTenant()

	for _, p := range rec.Participants {
		assert.Equal(t, "t1", StringValue(p.TenantID))
	}
	assert.Equal(t, "t1", StringValue(rec.Dialog[0].TenantID))
	assert.Equal(t, "t1", StringValue(rec.Analysis[0].TenantID))
	assert.Equal(t, "t1", StringValue(rec.Attachments[0].TenantID))

	rec.TenantID = nil
	rec.PropagateTenant()
	assert.Nil(t, rec.Participants[1].TenantID)
	assert.Nil(t, rec.Attachments[0].TenantID)
}

func TestAttachment_IsTags(t *testing.T) {
	assert.True(t, Attachment{Type: "tags"}.IsTags())
	assert.False(t, Attachment{Type: "transcript"}.IsTags())
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "x", *StringPtr("x"))
	assert.Equal(t, "", StringValue(nil))
}

func TestFieldKind_Weight(t *testing.T) {
	assert.Equal(t, WeightA, FieldSubject.Weight())
	assert.Equal(t, WeightB, FieldParty.Weight())
	assert.Equal(t, WeightB, FieldAnalysis.Weight())
	assert.Equal(t, WeightC, FieldDialog.Weight())
	assert.Greater(t, FieldSubject.Weight(), FieldParty.Weight())
	assert.Greater(t, FieldAnalysis.Weight(), FieldDialog.Weight())
	assert.False(t, FieldKind("attachment").Valid())
}

func TestUnitKey_RoundTrip(t *testing.T) {
	key := UnitKey(42, ContentDialog, "3")
	assert.Equal(t, "42/dialog/3", key)

	id, ct, ref, err := ParseUnitKey(key)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, ContentDialog, ct)
	assert.Equal(t, "3", ref)

	_, _, _, err = ParseUnitKey("nope")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, _, err = ParseUnitKey("x/dialog/1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidateEmbedding(t *testing.T) {
	assert.NoError(t, ValidateEmbedding(make([]float32, EmbeddingDimension), EmbeddingDimension))

	err := ValidateEmbedding(make([]float32, 128), EmbeddingDimension)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := make([]float32, 3)
	bad[1] = float32(math.NaN())
	assert.ErrorIs(t, ValidateEmbedding(bad, 3), ErrInvalidInput)
}
