package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Store is the filesystem-backed session store: one JSON document per
// session under root/<YYYY>/<MM>/<id>.json.
type Store struct {
	root string
}

// NewStore constructs a Store rooted at dir (typically "sessions" under the
// config/data directory).
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) pathFor(doc *Document) string {
	return filepath.Join(s.root, doc.CreatedAt.Format("2006"), doc.CreatedAt.Format("01"), doc.ID+".json")
}

// Save writes doc atomically: marshal, write to a temp file in the same
// directory, then rename over the destination so a reader never observes a
// partially written file (spec §4.6 "written atomically").
func (s *Store) Save(doc *Document) error {
	path := s.pathFor(doc)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := sonic.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", doc.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+doc.ID+"-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename session file into place: %w", err)
	}
	return nil
}

// Load reads the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var doc Document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal session file %s: %w", path, err)
	}
	return &doc, nil
}

// entry is one index row: enough to sort and resolve references without
// loading every document's full message list.
type entry struct {
	path      string
	id        string
	updatedAt string
}

var jsonIDPattern = regexp.MustCompile(`"id"\s*:\s*"([^"]*)"`)
var jsonUpdatedAtPattern = regexp.MustCompile(`"updated_at"\s*:\s*"([^"]*)"`)

// Index lazily scans root/<YYYY>/<MM>/*.json, sorted by updated_at
// descending (spec §4.6 "Index listing scans directories lazily, sorted by
// updated_at desc"). Each file is read whole, but only its id/updated_at
// fields are extracted (by regex) rather than decoding the full message list.
func (s *Store) Index() ([]entry, error) {
	var entries []entry

	years, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session root: %w", err)
	}
	for _, y := range years {
		if !y.IsDir() {
			continue
		}
		yearDir := filepath.Join(s.root, y.Name())
		months, err := os.ReadDir(yearDir)
		if err != nil {
			continue
		}
		for _, m := range months {
			if !m.IsDir() {
				continue
			}
			monthDir := filepath.Join(yearDir, m.Name())
			files, err := os.ReadDir(monthDir)
			if err != nil {
				continue
			}
			for _, f := range files {
				if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
					continue
				}
				path := filepath.Join(monthDir, f.Name())
				e, ok := readEntryHeader(path)
				if !ok {
					continue
				}
				entries = append(entries, e)
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt > entries[j].updatedAt
	})
	return entries, nil
}

func readEntryHeader(path string) (entry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entry{}, false
	}
	idMatch := jsonIDPattern.FindSubmatch(data)
	updatedMatch := jsonUpdatedAtPattern.FindSubmatch(data)
	if idMatch == nil || updatedMatch == nil {
		return entry{}, false
	}
	return entry{path: path, id: string(idMatch[1]), updatedAt: string(updatedMatch[1])}, true
}

// ResolveSessionRef resolves ref to a session file path per spec §4.6: an
// all-digit ref N selects the N-th most recent session (1-indexed); any
// other ref matches the unique session id with that prefix.
func (s *Store) ResolveSessionRef(ref string) (string, error) {
	entries, err := s.Index()
	if err != nil {
		return "", err
	}
	if ref == "" {
		return "", fmt.Errorf("empty session reference")
	}

	if isAllDigits(ref) {
		n, err := strconv.Atoi(ref)
		if err != nil || n < 1 || n > len(entries) {
			return "", fmt.Errorf("no session at position %s", ref)
		}
		return entries[n-1].path, nil
	}

	var match string
	count := 0
	for _, e := range entries {
		if strings.HasPrefix(e.id, ref) {
			match = e.path
			count++
		}
	}
	switch count {
	case 0:
		return "", fmt.Errorf("no session matches id prefix %q", ref)
	case 1:
		return match, nil
	default:
		return "", fmt.Errorf("ambiguous id prefix %q matches %d sessions", ref, count)
	}
}

// Entry is the exported view of one index row, for callers (the sessions
// list/show/rm CLI subcommands) that need more than ResolveSessionRef's
// internal lookup use.
type Entry struct {
	Path      string
	ID        string
	UpdatedAt string
}

// List returns the session index as Entry values, most recently updated
// first.
func (s *Store) List() ([]Entry, error) {
	entries, err := s.Index()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Path: e.path, ID: e.id, UpdatedAt: e.updatedAt}
	}
	return out, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
