package main

import (
	"sort"

	"github.com/intentest/intentest/internal/config"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/internal/pattern"
)

// buildRegistry creates the pattern registry and feeds it the config's
// custom mappings. Param specs are sorted by name so registration stays
// deterministic across runs.
func buildRegistry(cfg *config.Config) (*pattern.Registry, error) {
	registry := pattern.NewRegistry()

	for _, mapping := range cfg.CustomMappings {
		names := make([]string, 0, len(mapping.Params))
		for name := range mapping.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		specs := make([]pattern.ParamSpec, 0, len(names))
		for _, name := range names {
			specs = append(specs, pattern.ParamSpec{Name: name, Value: mapping.Params[name]})
		}

		if err := registry.RegisterCustom(mapping.Pattern, model.ActionKind(mapping.Action), specs); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
