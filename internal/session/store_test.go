package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fenrig-labs/gptshell/pkg/llm"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	doc := New(AgentMeta{Name: "default", Model: "claude"}, ProviderMeta{Name: "anthropic"}, "markdown")
	AppendMessages(doc, []llm.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	})
	require.NoError(t, store.Save(doc))

	path := store.pathFor(doc)
	require.FileExists(t, path)

	expectYear := doc.CreatedAt.Format("2006")
	expectMonth := doc.CreatedAt.Format("01")
	require.Equal(t, filepath.Join(dir, expectYear, expectMonth, doc.ID+".json"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, doc.ID, loaded.ID)
	require.Equal(t, doc.Agent.Model, loaded.Agent.Model)
}

func TestSaveIsAtomicNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	doc := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	require.NoError(t, store.Save(doc))

	monthDir := filepath.Dir(store.pathFor(doc))
	files, err := os.ReadDir(monthDir)
	require.NoError(t, err)
	for _, f := range files {
		require.False(t, len(f.Name()) > 4 && f.Name()[:5] == ".tmp-", "leftover temp file: %s", f.Name())
	}
}

func TestIndexSortedByUpdatedAtDesc(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	older := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	older.CreatedAt = time.Now().Add(-48 * time.Hour)
	older.UpdatedAt = older.CreatedAt
	require.NoError(t, store.Save(older))

	newer := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	newer.CreatedAt = time.Now()
	newer.UpdatedAt = newer.CreatedAt
	require.NoError(t, store.Save(newer))

	entries, err := store.Index()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, newer.ID, entries[0].id)
	require.Equal(t, older.ID, entries[1].id)
}

func TestResolveSessionRefByPosition(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	first := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	first.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(first))

	second := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	second.UpdatedAt = time.Now()
	require.NoError(t, store.Save(second))

	path, err := store.ResolveSessionRef("1")
	require.NoError(t, err)
	require.Equal(t, store.pathFor(second), path)

	path, err = store.ResolveSessionRef("2")
	require.NoError(t, err)
	require.Equal(t, store.pathFor(first), path)
}

func TestResolveSessionRefByIDPrefix(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	doc := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	require.NoError(t, store.Save(doc))

	path, err := store.ResolveSessionRef(doc.ID[:8])
	require.NoError(t, err)
	require.Equal(t, store.pathFor(doc), path)
}

func TestResolveSessionRefAmbiguousPrefix(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	now := time.Now()

	first := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	first.CreatedAt, first.UpdatedAt = now, now
	first.ID = "sharedprefix-aaaa"
	require.NoError(t, store.Save(first))

	second := New(AgentMeta{Model: "m"}, ProviderMeta{Name: "p"}, "text")
	second.CreatedAt, second.UpdatedAt = now, now
	second.ID = "sharedprefix-bbbb"
	require.NoError(t, store.Save(second))

	_, err := store.ResolveSessionRef("sharedprefix")
	require.Error(t, err)
}

func TestResolveSessionRefUnknown(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	_, err := store.ResolveSessionRef("nonexistent")
	require.Error(t, err)
}
