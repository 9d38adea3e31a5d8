// Package config loads and validates the YAML configuration file, and
// supports hot reload with an atomic snapshot swap so in-flight requests
// never observe a half-updated configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/funnycups/toolify-go/internal/apierr"
	"github.com/funnycups/toolify-go/internal/router"
)

// Server holds the HTTP listener settings.
type Server struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Timeout int    `mapstructure:"timeout"`
}

// UpstreamService is one configured backend, as declared in YAML.
type UpstreamService struct {
	Name                   string            `mapstructure:"name"`
	ServiceType            string            `mapstructure:"service_type"`
	BaseURL                string            `mapstructure:"base_url"`
	APIKey                 string            `mapstructure:"api_key"`
	Models                 []string          `mapstructure:"models"`
	ModelMapping           map[string]string `mapstructure:"model_mapping"`
	Description            string            `mapstructure:"description"`
	Priority               int               `mapstructure:"priority"`
	InjectFunctionCalling  *bool             `mapstructure:"inject_function_calling"`
	OptimizePrompt         bool              `mapstructure:"optimize_prompt"`
}

// ClientAuth lists the bearer keys clients must present.
type ClientAuth struct {
	AllowedKeys []string `mapstructure:"allowed_keys"`
}

// Features toggles the ambient behavior of the proxy.
type Features struct {
	EnableFunctionCalling     bool   `mapstructure:"enable_function_calling"`
	LogLevel                  string `mapstructure:"log_level"`
	ConvertDeveloperToSystem  bool   `mapstructure:"convert_developer_to_system"`
	PromptTemplate            string `mapstructure:"prompt_template"`
	KeyPassthrough            bool   `mapstructure:"key_passthrough"`
	ModelPassthrough          bool   `mapstructure:"model_passthrough"`
	OptimizePrompt            bool   `mapstructure:"optimize_prompt"`
}

// Telemetry configures the OpenTelemetry exporter.
type Telemetry struct {
	Enabled        bool   `mapstructure:"enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// IDMap configures the tool-call ID table.
type IDMap struct {
	MaxSize         int `mapstructure:"max_size"`
	TTLSeconds      int `mapstructure:"ttl_seconds"`
	CleanupInterval int `mapstructure:"cleanup_interval_seconds"`
}

// App is the fully parsed, validated configuration.
type App struct {
	Server            Server            `mapstructure:"server"`
	UpstreamServices  []UpstreamService `mapstructure:"upstream_services"`
	ClientAuth        ClientAuth        `mapstructure:"client_authentication"`
	Features          Features          `mapstructure:"features"`
	Telemetry         Telemetry         `mapstructure:"telemetry"`
	IDMap             IDMap             `mapstructure:"id_map"`
}

var validLogLevels = map[string]bool{
	"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true, "DISABLED": true,
}

// Validate checks every field-level invariant the YAML schema must
// satisfy, mirroring the Pydantic validators this config format was
// distilled from. It returns every violation found, not just the first.
func (a *App) Validate() apierr.ValidationErrors {
	var errs apierr.ValidationErrors

	if a.Server.Port < 1 || a.Server.Port > 65535 {
		errs = append(errs, apierr.ValidationError{Location: []string{"server", "port"}, Message: "port must be between 1 and 65535", Type: "value_error", Input: a.Server.Port})
	}

	if len(a.UpstreamServices) == 0 {
		errs = append(errs, apierr.ValidationError{Location: []string{"upstream_services"}, Message: "at least one upstream service must be configured", Type: "value_error"})
	}

	aliases := map[string]bool{}
	plainModels := map[string]bool{}
	for i, svc := range a.UpstreamServices {
		loc := func(field string) []string { return []string{"upstream_services", fmt.Sprintf("%d", i), field} }

		if !strings.HasPrefix(svc.BaseURL, "http://") && !strings.HasPrefix(svc.BaseURL, "https://") {
			errs = append(errs, apierr.ValidationError{Location: loc("base_url"), Message: "base_url must start with http:// or https://", Type: "value_error", Input: svc.BaseURL})
		}
		for _, model := range svc.Models {
			if strings.TrimSpace(model) == "" {
				errs = append(errs, apierr.ValidationError{Location: loc("models"), Message: "model name cannot be empty", Type: "value_error"})
				continue
			}
			if idx := strings.Index(model, ":"); idx != -1 {
				alias, real := model[:idx], model[idx+1:]
				if strings.TrimSpace(alias) == "" || strings.TrimSpace(real) == "" {
					errs = append(errs, apierr.ValidationError{Location: loc("models"), Message: fmt.Sprintf("malformed model alias %q: alias and real model must both be non-empty", model), Type: "value_error"})
					continue
				}
				aliases[alias] = true
			} else {
				plainModels[model] = true
			}
		}
	}

	for alias := range aliases {
		if plainModels[alias] {
			errs = append(errs, apierr.ValidationError{Location: []string{"upstream_services"}, Message: fmt.Sprintf("alias %q conflicts with a plain model name; use distinct names", alias), Type: "value_error"})
		}
	}

	if a.Features.ModelPassthrough {
		hasOpenAI := false
		for _, svc := range a.UpstreamServices {
			if svc.Name == "openai" {
				hasOpenAI = true
				break
			}
		}
		if !hasOpenAI {
			errs = append(errs, apierr.ValidationError{Location: []string{"features", "model_passthrough"}, Message: "model_passthrough requires an upstream service named 'openai'", Type: "value_error"})
		}
	}

	if len(a.ClientAuth.AllowedKeys) == 0 {
		errs = append(errs, apierr.ValidationError{Location: []string{"client_authentication", "allowed_keys"}, Message: "at least one client API key must be configured", Type: "value_error"})
	}
	for _, k := range a.ClientAuth.AllowedKeys {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, apierr.ValidationError{Location: []string{"client_authentication", "allowed_keys"}, Message: "client API key cannot be empty", Type: "value_error"})
		}
	}

	if a.Features.LogLevel != "" && !validLogLevels[strings.ToUpper(a.Features.LogLevel)] {
		errs = append(errs, apierr.ValidationError{Location: []string{"features", "log_level"}, Message: "log_level must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL, DISABLED", Type: "value_error", Input: a.Features.LogLevel})
	}

	if a.Features.PromptTemplate != "" {
		if !strings.Contains(a.Features.PromptTemplate, "{{tools_list}}") || !strings.Contains(a.Features.PromptTemplate, "{{trigger_signal}}") {
			errs = append(errs, apierr.ValidationError{Location: []string{"features", "prompt_template"}, Message: "custom prompt_template must contain {{tools_list}} and {{trigger_signal}} placeholders", Type: "value_error"})
		}
	}

	return errs
}

// BuildRouterConfig derives the router's resolved routing table from the
// validated upstream service list, sorting each model's candidate list by
// priority descending as the source config loader does.
func (a *App) BuildRouterConfig() router.Config {
	modelToUpstreams := map[string][]router.Upstream{}
	aliases := map[string][]string{}
	var all []router.Upstream

	for _, svc := range a.UpstreamServices {
		up := router.Upstream{Name: svc.Name, BaseURL: svc.BaseURL, APIKey: svc.APIKey, Priority: svc.Priority}
		all = append(all, up)

		for _, model := range svc.Models {
			modelToUpstreams[model] = append(modelToUpstreams[model], up)
			if idx := strings.Index(model, ":"); idx != -1 {
				alias := model[:idx]
				aliases[alias] = append(aliases[alias], model)
			}
		}
	}

	for model, ups := range modelToUpstreams {
		sorted := make([]router.Upstream, len(ups))
		copy(sorted, ups)
		insertionSortByPriorityDesc(sorted)
		modelToUpstreams[model] = sorted
	}

	var def router.Upstream
	bestPriority := -1 << 31
	for _, up := range all {
		if up.Priority > bestPriority {
			bestPriority = up.Priority
			def = up
		}
	}

	return router.Config{
		ModelToUpstreams: modelToUpstreams,
		Aliases:          aliases,
		Default:          def,
		AllUpstreams:     all,
		ModelPassthrough: a.Features.ModelPassthrough,
	}
}

func insertionSortByPriorityDesc(ups []router.Upstream) {
	for i := 1; i < len(ups); i++ {
		for j := i; j > 0 && ups[j].Priority > ups[j-1].Priority; j-- {
			ups[j], ups[j-1] = ups[j-1], ups[j]
		}
	}
}
