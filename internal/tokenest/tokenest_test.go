package tokenest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnycups/toolify-go/internal/toolcall"
)

func TestCountIsPositiveForNonEmptyText(t *testing.T) {
	est, err := New("gpt-4")
	require.NoError(t, err)
	assert.Greater(t, est.Count("hello world"), 0)
	assert.Equal(t, 0, est.Count(""))
}

func TestCountMessagesIncludesOverheadAndPriming(t *testing.T) {
	est, err := New("gpt-4")
	require.NoError(t, err)

	messages := []toolcall.Message{
		{Role: toolcall.RoleUser, Content: toolcall.TextContent("hi")},
	}
	withMsg := est.CountMessages(messages)
	withoutMsg := est.Count("hi") + est.Count(string(toolcall.RoleUser))
	assert.Greater(t, withMsg, withoutMsg)
}

func TestCountMessagesEmptyIsZero(t *testing.T) {
	est, err := New("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 0, est.CountMessages(nil))
}

func TestEstimateUsageFallsBackToUnknownModelEncoding(t *testing.T) {
	usage, err := EstimateUsage("some-unlisted-model", []toolcall.Message{
		{Role: toolcall.RoleUser, Content: toolcall.TextContent("question")},
	}, "answer")
	require.NoError(t, err)
	assert.Greater(t, usage.PromptTokens, int64(0))
	assert.Greater(t, usage.CompletionTokens, int64(0))
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
}
