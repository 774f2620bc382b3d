package toolkit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenrig-labs/gptshell/internal/mcp"
)

func TestBuildSpecsDefaultsMissingSchema(t *testing.T) {
	byServer := map[string][]mcp.ToolSpec{
		"fs": {{Name: "fs__read", Server: "fs", Tool: "read", Description: "read a file"}},
	}
	specs := BuildSpecs(byServer)
	require.Len(t, specs, 1)
	require.Equal(t, "fs__read", specs[0].Name)
	require.Equal(t, "object", specs[0].InputSchema["type"])
	require.Equal(t, true, specs[0].InputSchema["additionalProperties"])
}

func TestBuildSpecsStableServerOrder(t *testing.T) {
	byServer := map[string][]mcp.ToolSpec{
		"zeta":  {{Name: "zeta__a", Server: "zeta", Tool: "a"}},
		"alpha": {{Name: "alpha__b", Server: "alpha", Tool: "b"}},
	}
	specs := BuildSpecs(byServer)
	require.Len(t, specs, 2)
	require.Equal(t, "alpha__b", specs[0].Name)
	require.Equal(t, "zeta__a", specs[1].Name)
}

func TestRouteName(t *testing.T) {
	server, tool, ok := RouteName("fs__read_file")
	require.True(t, ok)
	require.Equal(t, "fs", server)
	require.Equal(t, "read_file", tool)

	_, _, ok = RouteName("no-separator")
	require.False(t, ok)
}

func TestRouteNameFirstSeparatorOnly(t *testing.T) {
	server, tool, ok := RouteName("a__b__c")
	require.True(t, ok)
	require.Equal(t, "a", server)
	require.Equal(t, "b__c", tool)
}
