package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	interrors "github.com/intentest/intentest/pkg/errors"
)

var (
	yamlLineRegex = regexp.MustCompile(`line (\d+)`)
	envVarRegex   = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Load reads the configuration file, overlays the environment-specific
// document from environments/<env>.yaml beside it (when present), expands
// ${VAR} environment references, applies defaults and validates the
// result.
func Load(path, env string) (*Config, error) {
	merged, err := loadDocument(path)
	if err != nil {
		return nil, err
	}

	if env != "" {
		envPath := filepath.Join(filepath.Dir(path), "environments", env+".yaml")
		if _, statErr := os.Stat(envPath); statErr == nil {
			overlay, err := loadDocument(envPath)
			if err != nil {
				return nil, err
			}
			merged = deepMerge(merged, overlay)
		}
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, interrors.NewParseError(path, 0, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, interrors.NewParseError(path, extractLine(err), err)
	}

	cfg.ApplyDefaults()

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, interrors.NewParseError(path, 0, err)
	}

	data = expandEnvVars(data)

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, interrors.NewParseError(path, extractLine(err), err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// expandEnvVars replaces ${VAR} references with values from the process
// environment. Unset variables are left verbatim so validation can report
// them in context.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarRegex.FindSubmatch(match)[1]
		if value, ok := os.LookupEnv(string(name)); ok {
			return []byte(value)
		}
		return match
	})
}

// deepMerge overlays b onto a. Nested maps merge recursively; any other
// value in b replaces the one in a.
func deepMerge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k].(map[string]any); ok {
			if overlay, ok := v.(map[string]any); ok {
				out[k] = deepMerge(existing, overlay)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
