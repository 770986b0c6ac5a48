package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenantScope_Visible(t *testing.T) {
	t1 := StringPtr("t1")
	t2 := StringPtr("t2")

	tests := []struct {
		name    string
		scope   TenantScope
		row     *string
		visible bool
	}{
		{"shared row, tenant set", ForTenant("t1", TenantFromClaim), nil, true},
		{"shared row, no tenant", NoTenant, nil, true},
		{"own row", ForTenant("t1", TenantFromSession), t1, true},
		{"other tenant row", ForTenant("t1", TenantFromClaim), t2, false},
		{"owned row, no tenant", NoTenant, t1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.visible, tt.scope.Visible(tt.row))
		})
	}
}

func TestForTenant_EmptyIsNone(t *testing.T) {
	s := ForTenant("", TenantFromClaim)
	assert.False(t, s.Set)
	assert.Equal(t, TenantNone, s.Source)
	assert.Equal(t, "<none>", s.String())
	assert.Equal(t, "t1", ForTenant("t1", TenantFromClaim).String())
}
