package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDirectModel(t *testing.T) {
	cfg := Config{
		ModelToUpstreams: map[string][]Upstream{
			"gpt-4": {
				{Name: "primary", APIKey: "sk-1", Priority: 10},
				{Name: "backup", APIKey: "sk-2", Priority: 5},
			},
		},
	}
	res, err := Resolve(cfg, "gpt-4")
	require.NoError(t, err)
	require.Len(t, res.Upstreams, 2)
	assert.Equal(t, "primary", res.Upstreams[0].Name)
	assert.Equal(t, "backup", res.Upstreams[1].Name)
	assert.Equal(t, "gpt-4", res.ActualModel)
}

func TestResolveFiltersEmptyAPIKeys(t *testing.T) {
	cfg := Config{
		ModelToUpstreams: map[string][]Upstream{
			"gpt-4": {
				{Name: "no-key", APIKey: "", Priority: 10},
				{Name: "has-key", APIKey: "sk-2", Priority: 5},
			},
		},
	}
	res, err := Resolve(cfg, "gpt-4")
	require.NoError(t, err)
	require.Len(t, res.Upstreams, 1)
	assert.Equal(t, "has-key", res.Upstreams[0].Name)
}

func TestResolveAllKeysEmptyErrors(t *testing.T) {
	cfg := Config{
		ModelToUpstreams: map[string][]Upstream{
			"gpt-4": {{Name: "no-key", APIKey: "", Priority: 10}},
		},
	}
	_, err := Resolve(cfg, "gpt-4")
	assert.Error(t, err)
}

func TestResolveUnknownModelFallsBackToDefault(t *testing.T) {
	cfg := Config{
		ModelToUpstreams: map[string][]Upstream{},
		Default:          Upstream{Name: "default", APIKey: "sk-default"},
	}
	res, err := Resolve(cfg, "unknown-model")
	require.NoError(t, err)
	require.Len(t, res.Upstreams, 1)
	assert.Equal(t, "default", res.Upstreams[0].Name)
}

func TestResolveUnknownModelNoDefaultErrors(t *testing.T) {
	cfg := Config{ModelToUpstreams: map[string][]Upstream{}}
	_, err := Resolve(cfg, "unknown-model")
	assert.Error(t, err)
}

func TestResolveAliasPicksAmongTargets(t *testing.T) {
	cfg := Config{
		Aliases: map[string][]string{
			"smart": {"openai:gpt-4", "openai:gpt-4-turbo"},
		},
		ModelToUpstreams: map[string][]Upstream{
			"openai:gpt-4":       {{Name: "a", APIKey: "k"}},
			"openai:gpt-4-turbo": {{Name: "b", APIKey: "k"}},
		},
	}
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		res, err := Resolve(cfg, "smart")
		require.NoError(t, err)
		seen[res.ActualModel] = true
	}
	assert.True(t, seen["gpt-4"] || seen["gpt-4-turbo"])
}

func TestResolveStripsAliasPrefixFromActualModel(t *testing.T) {
	cfg := Config{
		ModelToUpstreams: map[string][]Upstream{
			"openai:gpt-4": {{Name: "a", APIKey: "k"}},
		},
	}
	res, err := Resolve(cfg, "openai:gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", res.ActualModel)
}

func TestResolvePassthroughSortsByPriorityDescending(t *testing.T) {
	cfg := Config{
		ModelPassthrough: true,
		AllUpstreams: []Upstream{
			{Name: "low", APIKey: "k", Priority: 1},
			{Name: "high", APIKey: "k", Priority: 10},
			{Name: "mid", APIKey: "k", Priority: 5},
		},
	}
	res, err := Resolve(cfg, "anything")
	require.NoError(t, err)
	require.Len(t, res.Upstreams, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{res.Upstreams[0].Name, res.Upstreams[1].Name, res.Upstreams[2].Name})
	assert.Equal(t, "anything", res.ActualModel)
}

func TestResolvePassthroughNoValidServicesErrors(t *testing.T) {
	cfg := Config{
		ModelPassthrough: true,
		AllUpstreams:     []Upstream{{Name: "no-key", APIKey: ""}},
	}
	_, err := Resolve(cfg, "anything")
	assert.Error(t, err)
}
