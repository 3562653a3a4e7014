package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		match   bool
	}{
		{"", "anything", true},
		{"^usp_", "usp_GetOrders", true},
		{"^usp_", "USP_GetOrders", true},
		{"^usp_", "GetOrders", false},
		{"order", "CustomerOrders", true},
		{"^dbo\\.", "Orders", false},
	}

	for _, tt := range tests {
		f, err := NewFilter(tt.pattern)
		require.NoError(t, err)
		assert.Equal(t, tt.match, f.Match(tt.name), "%q ~ %q", tt.pattern, tt.name)
	}
}

func TestFilterInvalid(t *testing.T) {
	_, err := NewFilter("(")
	assert.Error(t, err)
	assert.Panics(t, func() { MustFilter("[") })
}

func TestFilterNil(t *testing.T) {
	var f *Filter
	assert.True(t, f.Match("x"))
	assert.Equal(t, "", f.String())
}
