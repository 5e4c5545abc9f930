// Package config loads the run configuration document (config/default.json
// by default) and applies dotted-key CLI overrides before handing callers
// a strongly typed Config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AgentConfig holds one agent role's tool loop tuning. Agent fills a
// zero-valued MaxHistoryChars, KeepLastMessages or MaxToolResultChars from
// Limits' global defaults; MaxSteps gets no such fallback.
type AgentConfig struct {
	MaxSteps           int             `json:"max_steps"`
	MaxHistoryChars    int             `json:"max_history_chars,omitempty"`
	KeepLastMessages   int             `json:"keep_last_messages,omitempty"`
	MaxToolResultChars int             `json:"max_tool_result_chars,omitempty"`
	Tools              map[string]bool `json:"tools,omitempty"`
}

// Limits holds process-wide defaults that AgentConfig zero values fall back
// to, plus the guards that aren't agent-specific.
type Limits struct {
	MaxHistoryChars        int     `json:"max_history_chars"`
	KeepLastMessages       int     `json:"keep_last_messages"`
	DefaultToolResultChars int     `json:"default_tool_result_chars"`
	ShellDefaultTimeoutS   int     `json:"shell_default_timeout_seconds"`
	ShellMaxTimeoutS       int     `json:"shell_max_timeout_seconds"`
	MaxLoops               int     `json:"max_loops"`
	MaxStuckRatio          float64 `json:"max_stuck_ratio"`
	RepetitionGuardEnabled bool    `json:"repetition_guard_enabled"`
}

// Provider holds LLM connection settings for a run.
type Provider struct {
	Name          string  `json:"name"`
	Model         string  `json:"model"`
	APIKey        string  `json:"api_key,omitempty"`
	BaseURL       string  `json:"base_url,omitempty"`
	RatePerSecond float64 `json:"rate_per_second,omitempty"`
	Burst         int     `json:"burst,omitempty"`
}

// Docker holds the optional containerized execution target.
type Docker struct {
	Image string `json:"image,omitempty"`
}

// Config is the full run configuration document.
type Config struct {
	Agents   map[string]AgentConfig `json:"agents"`
	Limits   Limits                 `json:"limits"`
	Provider Provider               `json:"provider"`
	Docker   Docker                 `json:"docker,omitempty"`
}

// Default returns the configuration used when no config file is present,
// matching the spec's stated defaults for each node and limit.
func Default() *Config {
	return &Config{
		Agents: map[string]AgentConfig{
			"analysis": {MaxSteps: 2},
			"planner":  {MaxSteps: 2},
			"setup":    {MaxSteps: 10},
			"coder":    {MaxSteps: 50},
			"unified":  {MaxSteps: 80},
		},
		Limits: Limits{
			MaxHistoryChars:        100000,
			KeepLastMessages:       40,
			DefaultToolResultChars: 4000,
			ShellDefaultTimeoutS:   60,
			ShellMaxTimeoutS:       600,
			MaxLoops:               8,
			MaxStuckRatio:          0.6,
			RepetitionGuardEnabled: true,
		},
		Provider: Provider{
			Name:          "openai",
			Model:         "gpt-4o-mini",
			RatePerSecond: 2,
			Burst:         4,
		},
	}
}

// Load reads configFile (or config/default.json under the project root, if
// configFile is empty) and layers the given dotted-key overrides on top.
// Overrides follow config_loader.py's convention: "agents.coder.max_steps"
// -> 80. A missing config file is not an error; Default() provides the
// base document overrides are then merged into.
func Load(configFile string, overrides map[string]string) (*Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	path := configFile
	if path == "" {
		path = findDefaultConfigPath()
	}
	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			var fileData map[string]interface{}
			if err := json.Unmarshal(b, &fileData); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
			deepMerge(base, fileData)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	for key, value := range overrides {
		setDotted(base, key, parseOverrideValue(value))
	}

	b, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findDefaultConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, "config", "default.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func toMap(cfg *Config) (map[string]interface{}, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func deepMerge(dst, src map[string]interface{}) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

func setDotted(m map[string]interface{}, dottedKey string, value interface{}) {
	parts := strings.Split(dottedKey, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// parseOverrideValue interprets a CLI override string as a typed value:
// "true"/"false" (any case) become bools, then integers, then floats (so
// "42" and "1.5" become numbers); anything else stays the raw string.
func parseOverrideValue(raw string) interface{} {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// Agent returns the named agent's config, falling back to global Limits
// defaults for any zero-valued tuning field, per get_agent_history_setting.
func (c *Config) Agent(role string) AgentConfig {
	a, ok := c.Agents[role]
	if !ok {
		a = AgentConfig{MaxSteps: 50}
	}
	if a.MaxHistoryChars == 0 {
		a.MaxHistoryChars = c.Limits.MaxHistoryChars
	}
	if a.KeepLastMessages == 0 {
		a.KeepLastMessages = c.Limits.KeepLastMessages
	}
	if a.MaxToolResultChars == 0 {
		a.MaxToolResultChars = c.Limits.DefaultToolResultChars
	}
	return a
}
