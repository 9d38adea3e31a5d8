// Package router implements the upstream router (C4): given a client's
// requested model name, it resolves which upstream service(s) to dispatch
// to, in what order, and under what real model name.
package router

import (
	"fmt"
	"math/rand"
	"strings"
)

// Upstream describes one configured backend service.
type Upstream struct {
	Name     string
	BaseURL  string
	APIKey   string
	Priority int
}

// valid reports whether the upstream has a usable API key.
func (u Upstream) valid() bool {
	return strings.TrimSpace(u.APIKey) != ""
}

// Config is the resolved routing table, built from the static config file.
type Config struct {
	// ModelToUpstreams maps a concrete model name to its ordered
	// (priority-first) list of candidate upstreams.
	ModelToUpstreams map[string][]Upstream
	// Aliases maps a client-facing alias to the "alias:real_model"
	// entries it may resolve to; one is chosen at random per request.
	Aliases map[string][]string
	// Default is used when the requested model has no entry.
	Default Upstream
	// AllUpstreams lists every configured upstream, used in passthrough mode.
	AllUpstreams []Upstream
	// ModelPassthrough routes every request to all configured upstreams,
	// in priority order, ignoring ModelToUpstreams/Aliases entirely.
	ModelPassthrough bool
}

// Resolution is the outcome of routing one request.
type Resolution struct {
	// Upstreams is the ordered failover list: unary callers try each in
	// turn; streaming callers use only Upstreams[0].
	Upstreams []Upstream
	// ActualModel is the real backend model name to send upstream, with
	// any "alias:real_model" provider prefix stripped.
	ActualModel string
}

// Resolve picks the upstream list and real model name for modelName.
func Resolve(cfg Config, modelName string) (Resolution, error) {
	if cfg.ModelPassthrough {
		return resolvePassthrough(cfg, modelName)
	}

	chosen := modelName
	if targets, ok := cfg.Aliases[modelName]; ok && len(targets) > 0 {
		chosen = targets[rand.Intn(len(targets))]
	}

	services, ok := cfg.ModelToUpstreams[chosen]
	if !ok || len(services) == 0 {
		if !cfg.Default.valid() {
			return Resolution{}, fmt.Errorf("router: model %q not configured and no default upstream is set", modelName)
		}
		return Resolution{Upstreams: []Upstream{cfg.Default}, ActualModel: stripAliasPrefix(chosen)}, nil
	}

	valid := filterValid(services)
	if len(valid) == 0 {
		return Resolution{}, fmt.Errorf("router: no upstream with a non-empty API key is configured for model %q", chosen)
	}

	return Resolution{Upstreams: valid, ActualModel: stripAliasPrefix(chosen)}, nil
}

func resolvePassthrough(cfg Config, modelName string) (Resolution, error) {
	valid := filterValid(cfg.AllUpstreams)
	if len(valid) == 0 {
		return Resolution{}, fmt.Errorf("router: model_passthrough is enabled but no upstream has a non-empty API key")
	}
	sortByPriorityDesc(valid)
	return Resolution{Upstreams: valid, ActualModel: modelName}, nil
}

func filterValid(services []Upstream) []Upstream {
	out := make([]Upstream, 0, len(services))
	for _, s := range services {
		if s.valid() {
			out = append(out, s)
		}
	}
	return out
}

func sortByPriorityDesc(services []Upstream) {
	// simple insertion sort: the candidate lists are small (a handful of
	// upstreams), so O(n^2) is fine and keeps equal-priority entries in
	// their configured relative order (a stable sort).
	for i := 1; i < len(services); i++ {
		for j := i; j > 0 && services[j].Priority > services[j-1].Priority; j-- {
			services[j], services[j-1] = services[j-1], services[j]
		}
	}
}

// stripAliasPrefix converts "alias:real_model" to "real_model"; a plain
// model name is returned unchanged.
func stripAliasPrefix(model string) string {
	if idx := strings.Index(model, ":"); idx != -1 {
		return model[idx+1:]
	}
	return model
}
