package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"Country=UK,FR", "Month=Jan", "Country=DE"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"Country": {"UK", "FR", "DE"},
		"Month":   {"Jan"},
	}, got)

	got, err = parseFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"Country", "=UK"} {
		_, err := parseFilters([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0b1c2d3e", shortID("0b1c2d3e-4f5a-6789"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "******", mask("secret"))
	assert.Equal(t, "sk-****123", mask("sk-or-v1-123"))
}
