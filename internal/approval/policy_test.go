package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAutoAllowedWildcardServer(t *testing.T) {
	allow := AllowMap{"fs": {"*"}}
	require.True(t, IsAutoAllowed(allow, "fs", "read_file"))
	require.False(t, IsAutoAllowed(allow, "shell", "execute"))
}

func TestIsAutoAllowedWildcardGlobal(t *testing.T) {
	allow := AllowMap{"*": {"*"}}
	require.True(t, IsAutoAllowed(allow, "anything", "at_all"))
}

func TestIsAutoAllowedBareName(t *testing.T) {
	allow := AllowMap{"time": {"now"}}
	require.True(t, IsAutoAllowed(allow, "time", "now"))
	require.False(t, IsAutoAllowed(allow, "time", "other"))
}

func TestIsAutoAllowedQualifiedName(t *testing.T) {
	allow := AllowMap{"*": {"fs__read_file"}}
	require.True(t, IsAutoAllowed(allow, "fs", "read_file"))
}

func TestIsAutoAllowedNameNormalization(t *testing.T) {
	allow := AllowMap{"fs": {"Read-File"}}
	require.True(t, IsAutoAllowed(allow, "fs", "read_file"))
	require.True(t, IsAutoAllowed(allow, "fs", "READ-file"))
}

// Invariant 3 (spec §8): the predicate is symmetric under the name
// normalization case/dash/underscore equivalence class.
func TestIsAutoAllowedSymmetricUnderNormalization(t *testing.T) {
	allow := AllowMap{"fs": {"read_file"}}
	variants := []string{"read_file", "read-file", "READ_FILE", "Read-File"}
	for _, v := range variants {
		require.Equal(t, IsAutoAllowed(allow, "fs", "read_file"), IsAutoAllowed(allow, "fs", v), "variant %q", v)
	}
}

type stubConfirmer struct{ result bool }

func (s stubConfirmer) Confirm(context.Context, string, string, map[string]any) bool { return s.result }

func TestPolicyConfirmDelegatesAndSerializes(t *testing.T) {
	p := New(AllowMap{}, stubConfirmer{result: true}, nil)
	require.True(t, p.Confirm(context.Background(), "fs", "read_file", map[string]any{"path": "/x"}))

	p2 := New(AllowMap{}, stubConfirmer{result: false}, nil)
	require.False(t, p2.Confirm(context.Background(), "shell", "execute", nil))
}

func TestPolicyConfirmNilConfirmerDenies(t *testing.T) {
	p := New(AllowMap{}, nil, nil)
	require.False(t, p.Confirm(context.Background(), "fs", "read_file", nil))
}
