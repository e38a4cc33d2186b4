package index

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	manifestFile  = "manifest.json"
	entriesFile   = "entries.jsonl"
	stagingInfix  = ".tmp-"
	retiredSuffix = ".old"

	swapAttempts = 50
	swapDelay    = 10 * time.Millisecond
)

// FileStore keeps each index in its own directory under Dir: a manifest.json
// and an entries.jsonl with one entry per line in insertion order.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Save writes the index to a staging directory and swaps it into place
func (s *FileStore) Save(ctx context.Context, m Manifest, entries []Entry) error {
	if err := ValidateID(m.IndexID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	staging, err := os.MkdirTemp(s.Dir, "."+m.IndexID+stagingInfix)
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := writeManifest(filepath.Join(staging, manifestFile), m); err != nil {
		return err
	}
	if err := writeEntries(ctx, filepath.Join(staging, entriesFile), entries); err != nil {
		return err
	}

	// the previous copy moves aside before the new one moves in; Load waits
	// while a retired copy exists
	target := s.path(m.IndexID)
	retired := staging + retiredSuffix
	replacing := true
	if err := os.Rename(target, retired); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to replace index %q: %w", m.IndexID, err)
		}
		replacing = false
	}
	if err := os.Rename(staging, target); err != nil {
		if replacing {
			_ = os.Rename(retired, target)
		}
		return fmt.Errorf("failed to move index %q into place: %w", m.IndexID, err)
	}
	if replacing {
		if err := os.RemoveAll(retired); err != nil {
			return fmt.Errorf("failed to remove previous copy of index %q: %w", m.IndexID, err)
		}
	}
	return nil
}

// Load reads an index into memory
func (s *FileStore) Load(ctx context.Context, indexID string) (Handle, error) {
	if err := ValidateID(indexID); err != nil {
		return nil, err
	}
	dir := s.path(indexID)

	data, err := s.readManifest(ctx, indexID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NotFound(indexID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest of %q: %w", indexID, err)
	}

	f, err := os.Open(filepath.Join(dir, entriesFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open entries of %q: %w", indexID, err)
	}
	defer f.Close()

	entries := make([]Entry, 0, m.Count)
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode entry %d of %q: %w", len(entries), indexID, err)
		}
		entries = append(entries, e)
	}
	if len(entries) != m.Count {
		return nil, fmt.Errorf("index %q is corrupt: manifest lists %d entries, found %d", indexID, m.Count, len(entries))
	}

	return NewMemoryHandle(m, entries), nil
}

// readManifest reads the manifest of indexID, waiting out the swap of a
// concurrent Save
func (s *FileStore) readManifest(ctx context.Context, indexID string) ([]byte, error) {
	path := filepath.Join(s.path(indexID), manifestFile)
	for attempt := 0; ; attempt++ {
		data, err := os.ReadFile(path)
		if !errors.Is(err, fs.ErrNotExist) || attempt == swapAttempts || !s.swapping(indexID) {
			return data, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(swapDelay):
		}
	}
}

// swapping reports whether a Save has moved the previous copy of indexID
// aside and not yet finished
func (s *FileStore) swapping(indexID string) bool {
	dirents, err := os.ReadDir(s.Dir)
	if err != nil {
		return false
	}
	prefix := "." + indexID + stagingInfix
	for _, d := range dirents {
		if strings.HasPrefix(d.Name(), prefix) && strings.HasSuffix(d.Name(), retiredSuffix) {
			return true
		}
	}
	return false
}

func (s *FileStore) path(indexID string) string {
	return filepath.Join(s.Dir, indexID)
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func writeEntries(ctx context.Context, path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create entries file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to write entry %d: %w", e.Position, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush entries: %w", err)
	}
	return f.Close()
}
