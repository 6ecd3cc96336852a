package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// findConfigFile finds the config file to use.
// Priority: explicit path > fedsql.yaml > fedsql.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"fedsql.yaml", "fedsql.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"verbose":                 false,
		"output":                  DefaultOutput,
		"sources.course.type":     DefaultSourceType,
		"sources.course.path":     "course.db",
		"sources.job.type":        DefaultSourceType,
		"sources.job.path":        "job.db",
		"llm.provider":            DefaultProvider,
		"llm.model":               DefaultModel,
		"pipeline.max_rows":       DefaultMaxRows,
		"pipeline.batch_max_rows": DefaultBatchMaxRows,
		"pipeline.fallback":       true,
		"pipeline.fallback_role":  DefaultFallbackRole,
		"server.host":             DefaultServerHost,
		"server.port":             DefaultServerPort,
		"server.request_timeout":  DefaultRequestTimeout,
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
//
// Environment variables use the FEDSQL_ prefix with double underscores for
// nesting: FEDSQL_LLM__API_KEY sets llm.api_key.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if used := findConfigFile(cfgFile); used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment variables (FEDSQL_ prefix)
	// Transform: FEDSQL_LLM__API_KEY -> llm.api_key
	if err := k.Load(env.Provider("FEDSQL_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "FEDSQL_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case flag names to dotted config keys:
			// --max-rows sets pipeline.max_rows, --api-key sets llm.api_key.
			switch f.Name {
			case "max-rows":
				return "pipeline.max_rows", posflag.FlagVal(flags, f)
			case "api-key":
				return "llm.api_key", posflag.FlagVal(flags, f)
			case "model":
				return "llm.model", posflag.FlagVal(flags, f)
			case "port":
				return "server.port", posflag.FlagVal(flags, f)
			case "host":
				return "server.host", posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
