package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixPassesThroughValidJSON(t *testing.T) {
	out, err := Fix(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestFixRemovesTrailingCommas(t *testing.T) {
	out, err := Fix(`{"a":1,"b":2,}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2}`, out)
}

func TestFixQuotesUnquotedKeys(t *testing.T) {
	out, err := Fix(`{a:1, b:"two"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"two"}`, out)
}

func TestFixConvertsSingleQuotedStrings(t *testing.T) {
	out, err := Fix(`{'a':'b'}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, out)
}

func TestFixBalancesMissingClosingBrace(t *testing.T) {
	out, err := Fix(`{"a":1`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, out)
}

func TestFixReturnsOriginalAndErrorWhenUnrepairable(t *testing.T) {
	_, err := Fix(`not json at all {{{`)
	assert.Error(t, err)
}
