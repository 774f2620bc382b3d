package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fenrig-labs/gptshell/internal/mcp"
)

// ProviderConfig names the LLM provider and its connection details.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key,omitempty"`
	URL    string `yaml:"url,omitempty"`
}

// AgentConfig is the agent-level configuration: model selection, system
// prompt, and generation parameters (spec §3 "Agent").
type AgentConfig struct {
	Name               string   `yaml:"name"`
	Model              string   `yaml:"model"`
	ModelSmall         string   `yaml:"model_small,omitempty"`
	PromptSystem       string   `yaml:"prompt_system,omitempty"`
	Temperature        *float64 `yaml:"temperature,omitempty"`
	MaxTokens          *int     `yaml:"max_tokens,omitempty"`
	ToolChoiceRequired bool     `yaml:"tool_choice_required,omitempty"`
	AllowedServers     []string `yaml:"allowed_servers,omitempty"`
}

// Document is the on-disk agent/provider/MCP configuration (spec §6's
// "MCP server configuration file", widened with the agent/provider sections
// the teacher's own config carries alongside it).
type Document struct {
	Agent      AgentConfig              `yaml:"agent"`
	Provider   ProviderConfig           `yaml:"provider"`
	MCPServers map[string]mcp.ServerConfig `yaml:"mcpServers"`
}

// Load reads path (YAML; JSON is a valid YAML subset, satisfying spec §6's
// "MCP server configuration file (JSON)" literally), applies `${VAR}` /
// `${env:VAR}` substitution to the raw file text before parsing (so a
// substitution inside a quoted YAML string still resolves correctly), then
// layers viper-sourced environment variables (`GPTSHELL_*`) and explicit
// overrides on top.
//
// Grounded on the teacher's layered viper usage (sdk/mcphost.go's
// viper.Set/viper.GetString calls over a cobra-bound flag set) and
// internal/config/substitution.go's env-substitution approach; the teacher's
// own config-file loader (referenced as config.LoadAndValidateConfig) was
// not present in the retrieved pack, so Load here is written fresh against
// spec §6's document shape rather than ported from an unseen file.
func Load(path string, overrides map[string]string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded, err := SubstituteEnv(string(raw))
	if err != nil {
		return nil, fmt.Errorf("substitute environment variables in %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetEnvPrefix("GPTSHELL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if model := v.GetString("model"); model != "" {
		doc.Agent.Model = model
	}
	if apiKey := v.GetString("api_key"); apiKey != "" {
		doc.Provider.APIKey = apiKey
	}
	for key, val := range overrides {
		applyOverride(&doc, key, val)
	}

	return &doc, nil
}

func applyOverride(doc *Document, key, val string) {
	switch key {
	case "model":
		doc.Agent.Model = val
	case "prompt_system":
		doc.Agent.PromptSystem = val
	case "provider":
		doc.Provider.Name = val
	}
}

// providerEnvVars mirrors the teacher's models.ModelsRegistry.GetRequiredEnvVars,
// trimmed to the two providers this module wires rather than the teacher's full
// models.dev-sourced provider list.
var providerEnvVars = map[string][]string{
	"anthropic": {"ANTHROPIC_API_KEY"},
	"google":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// ValidateProvider checks doc.Provider.Name is one this module supports and,
// unless an API key was set directly in the document, that at least one of
// the provider's recognized environment variables is present. Adapted from
// the teacher's ModelsRegistry.ValidateEnvironment, dropping the models.dev
// model-catalog lookup this module has no use for.
func ValidateProvider(doc *Document) error {
	envVars, ok := providerEnvVars[doc.Provider.Name]
	if !ok {
		supported := make([]string, 0, len(providerEnvVars))
		for name := range providerEnvVars {
			supported = append(supported, name)
		}
		return fmt.Errorf("unsupported provider %q (supported: %s)", doc.Provider.Name, strings.Join(supported, ", "))
	}
	if doc.Provider.APIKey != "" {
		return nil
	}
	for _, envVar := range envVars {
		if os.Getenv(envVar) != "" {
			return nil
		}
	}
	return fmt.Errorf("missing API key for provider %q: set provider.api_key or one of %s", doc.Provider.Name, strings.Join(envVars, ", "))
}
