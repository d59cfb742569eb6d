// Package config loads acpthread settings from layered JSONC/YAML files
// and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/acpthread/pkg/types"
)

// Settings is the full configuration surface.
type Settings struct {
	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel"`

	// AgentCommand is the agent executable and arguments for the stdio
	// transport.
	AgentCommand []string `json:"agentCommand,omitempty" yaml:"agentCommand"`

	// DefaultMode is selected automatically after session creation when
	// the agent advertises it.
	DefaultMode string `json:"defaultMode,omitempty" yaml:"defaultMode"`

	// PlanWriteTools and PlanModeTools are glob allow-lists for
	// detecting plan-shaped tool calls. Empty lists keep the defaults.
	PlanWriteTools []string `json:"planWriteTools,omitempty" yaml:"planWriteTools"`
	PlanModeTools  []string `json:"planModeTools,omitempty" yaml:"planModeTools"`

	// FollowMode enables tracking the agent's active edit location.
	FollowMode bool `json:"followMode,omitempty" yaml:"followMode"`

	// ListenAddr is the inspection server address, empty to disable.
	ListenAddr string `json:"listenAddr,omitempty" yaml:"listenAddr"`

	// MCPServers are forwarded to the agent at session setup.
	MCPServers []types.MCPServerConfig `json:"mcpServers,omitempty" yaml:"mcpServers"`
}

// Default returns the baseline settings.
func Default() Settings {
	return Settings{
		LogLevel: "info",
	}
}

// Load assembles settings from multiple sources (later wins):
//  1. Global config (~/.config/acpthread/)
//  2. Project config (<directory>/.acpthread/)
//  3. ACPTHREAD_CONFIG file override
//  4. Environment variables
func Load(directory string) (*Settings, error) {
	s := Default()

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil || loaded[abs] {
			return
		}
		if loadFile(path, &s) == nil {
			loaded[abs] = true
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".config", "acpthread")
		loadOnce(filepath.Join(global, "acpthread.json"))
		loadOnce(filepath.Join(global, "acpthread.jsonc"))
		loadOnce(filepath.Join(global, "acpthread.yaml"))
	}

	if directory != "" {
		project := filepath.Join(directory, ".acpthread")
		loadOnce(filepath.Join(project, "acpthread.json"))
		loadOnce(filepath.Join(project, "acpthread.jsonc"))
		loadOnce(filepath.Join(project, "acpthread.yaml"))
	}

	if path := os.Getenv("ACPTHREAD_CONFIG"); path != "" {
		if err := loadFile(path, &s); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	applyEnv(&s)
	return &s, nil
}

// loadFile merges one settings file into s. JSONC strips comments and
// trailing commas before decoding; .yaml/.yml files decode as YAML.
func loadFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var layer Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &layer); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &layer); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	merge(s, &layer)
	return nil
}

// merge overlays non-zero fields of layer onto s.
func merge(s, layer *Settings) {
	if layer.LogLevel != "" {
		s.LogLevel = layer.LogLevel
	}
	if len(layer.AgentCommand) > 0 {
		s.AgentCommand = layer.AgentCommand
	}
	if layer.DefaultMode != "" {
		s.DefaultMode = layer.DefaultMode
	}
	if len(layer.PlanWriteTools) > 0 {
		s.PlanWriteTools = layer.PlanWriteTools
	}
	if len(layer.PlanModeTools) > 0 {
		s.PlanModeTools = layer.PlanModeTools
	}
	if layer.FollowMode {
		s.FollowMode = true
	}
	if layer.ListenAddr != "" {
		s.ListenAddr = layer.ListenAddr
	}
	if len(layer.MCPServers) > 0 {
		s.MCPServers = layer.MCPServers
	}
}

// applyEnv overlays environment variables, the highest-priority source.
func applyEnv(s *Settings) {
	if v := os.Getenv("ACPTHREAD_LOG"); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv("ACPTHREAD_AGENT"); v != "" {
		s.AgentCommand = strings.Fields(v)
	}
	if v := os.Getenv("ACPTHREAD_LISTEN"); v != "" {
		s.ListenAddr = v
	}
	if v := os.Getenv("ACPTHREAD_DEFAULT_MODE"); v != "" {
		s.DefaultMode = v
	}
}
