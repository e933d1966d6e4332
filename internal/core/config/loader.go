package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		if t.Path == "" {
			return nil, fmt.Errorf("target %q: path is required", t.Name)
		}
		if t.Name == "" {
			t.Name = t.Path
		}
		if t.Interval == 0 {
			t.Interval = 30 * time.Second
		}
		if t.Timeout == 0 {
			t.Timeout = 10 * time.Second
		}
		if t.Transport == "" {
			t.Transport = "http"
		}
		// yaml.v2 decodes nested mappings with interface{} keys, which
		// the JSON encoder rejects. Params travel as JSON bodies, so
		// normalize them here once.
		t.Params = normalizeMap(t.Params)
	}

	return &cfg, nil
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case map[string]any:
		return normalizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}
