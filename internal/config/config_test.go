package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validApp() App {
	return App{
		Server: Server{Host: "0.0.0.0", Port: 8000, Timeout: 180},
		UpstreamServices: []UpstreamService{
			{Name: "openai", BaseURL: "https://api.openai.com/v1", APIKey: "sk-1", Models: []string{"gpt-4", "fast:gpt-4o-mini"}, Priority: 10},
		},
		ClientAuth: ClientAuth{AllowedKeys: []string{"client-key-1"}},
		Features:   Features{LogLevel: "INFO"},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	app := validApp()
	assert.Empty(t, app.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	app := validApp()
	app.Server.Port = 70000
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsEmptyUpstreamList(t *testing.T) {
	app := validApp()
	app.UpstreamServices = nil
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	app := validApp()
	app.UpstreamServices[0].BaseURL = "ftp://example.com"
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsAliasCollisionWithPlainModel(t *testing.T) {
	app := validApp()
	app.UpstreamServices[0].Models = []string{"fast", "fast:gpt-4o-mini"}
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateModelPassthroughRequiresOpenAIService(t *testing.T) {
	app := validApp()
	app.UpstreamServices[0].Name = "custom"
	app.Features.ModelPassthrough = true
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsEmptyClientKeys(t *testing.T) {
	app := validApp()
	app.ClientAuth.AllowedKeys = nil
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	app := validApp()
	app.Features.LogLevel = "VERBOSE"
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestValidateRejectsPromptTemplateMissingPlaceholders(t *testing.T) {
	app := validApp()
	app.Features.PromptTemplate = "no placeholders here"
	errs := app.Validate()
	require.NotEmpty(t, errs)
}

func TestBuildRouterConfigSortsByPriorityAndCollectsAliases(t *testing.T) {
	app := validApp()
	app.UpstreamServices = append(app.UpstreamServices, UpstreamService{
		Name: "backup", BaseURL: "https://backup.example.com", APIKey: "sk-2", Models: []string{"gpt-4"}, Priority: 20,
	})

	rc := app.BuildRouterConfig()
	ups := rc.ModelToUpstreams["gpt-4"]
	require.Len(t, ups, 2)
	assert.Equal(t, "backup", ups[0].Name, "higher priority upstream should come first")

	require.Contains(t, rc.Aliases, "fast")
	assert.Equal(t, []string{"fast:gpt-4o-mini"}, rc.Aliases["fast"])
}
