package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateProviderRejectsUnknown(t *testing.T) {
	doc := &Document{Provider: ProviderConfig{Name: "openai"}}
	err := ValidateProvider(doc)
	require.Error(t, err)
}

func TestValidateProviderPassesWithExplicitAPIKey(t *testing.T) {
	doc := &Document{Provider: ProviderConfig{Name: "anthropic", APIKey: "sk-test"}}
	require.NoError(t, ValidateProvider(doc))
}

func TestValidateProviderPassesWithEnvVar(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	doc := &Document{Provider: ProviderConfig{Name: "google"}}
	require.NoError(t, ValidateProvider(doc))
}

func TestValidateProviderFailsWithoutCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	doc := &Document{Provider: ProviderConfig{Name: "anthropic"}}
	err := ValidateProvider(doc)
	require.Error(t, err)
}
