package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvReplacesSetVariable(t *testing.T) {
	t.Setenv("GPTSHELL_TEST_TOKEN", "secret123")
	out, err := SubstituteEnv(`{"headers": {"Authorization": "Bearer ${env:GPTSHELL_TEST_TOKEN}"}}`)
	require.NoError(t, err)
	require.Equal(t, `{"headers": {"Authorization": "Bearer secret123"}}`, out)
}

func TestSubstituteEnvUsesDefaultWhenUnset(t *testing.T) {
	out, err := SubstituteEnv(`${env:GPTSHELL_DEFINITELY_UNSET:-fallback}`)
	require.NoError(t, err)
	require.Equal(t, "fallback", out)
}

func TestSubstituteEnvErrorsOnMissingRequired(t *testing.T) {
	_, err := SubstituteEnv(`${env:GPTSHELL_DEFINITELY_UNSET}`)
	require.Error(t, err)
}

func TestSubstituteEnvReplacesBareVariable(t *testing.T) {
	t.Setenv("GPTSHELL_TEST_URL", "https://example.invalid")
	out, err := SubstituteEnv(`{"url": "${GPTSHELL_TEST_URL}"}`)
	require.NoError(t, err)
	require.Equal(t, `{"url": "https://example.invalid"}`, out)
}

func TestSubstituteEnvBareUsesDefaultWhenUnset(t *testing.T) {
	out, err := SubstituteEnv(`${GPTSHELL_DEFINITELY_UNSET:-8080}`)
	require.NoError(t, err)
	require.Equal(t, "8080", out)
}

func TestSubstituteEnvBareErrorsOnMissingRequired(t *testing.T) {
	_, err := SubstituteEnv(`${GPTSHELL_DEFINITELY_UNSET}`)
	require.Error(t, err)
}

func TestHasEnvRefs(t *testing.T) {
	require.True(t, HasEnvRefs("${env:FOO}"))
	require.False(t, HasEnvRefs("${FOO}"))
}
