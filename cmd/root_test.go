package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModelNameOnlyStripsProvider(t *testing.T) {
	require.Equal(t, "claude-sonnet-4-5", modelNameOnly("anthropic:claude-sonnet-4-5"))
	require.Equal(t, "gemini-2.0-flash", modelNameOnly("google:gemini-2.0-flash"))
}

func TestCreateProviderRejectsMalformedModel(t *testing.T) {
	_, _, err := createProvider(context.Background(), "justamodel")
	require.Error(t, err)
}

func TestCreateProviderRejectsUnsupportedProvider(t *testing.T) {
	_, _, err := createProvider(context.Background(), "openai:gpt-4")
	require.Error(t, err)
}

func TestCreateProviderRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, _, err := createProvider(context.Background(), "anthropic:claude-sonnet-4-5")
	require.Error(t, err)
}

func TestAlwaysApproveConfirmsEverything(t *testing.T) {
	var a alwaysApprove
	require.True(t, a.Confirm(context.Background(), "fs", "read_file", nil))
}
