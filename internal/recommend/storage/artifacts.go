// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNoArtifact is returned by Load when no version of the named artifact exists.
var ErrNoArtifact = errors.New("storage: no artifact")

const fileSuffix = ".gob.gz"

// Metadata describes a stored artifact.
type Metadata struct {
	// Name is the artifact kind (e.g., "collaborative", "fusion").
	Name string `json:"name"`

	// Version is monotonically increasing per name.
	Version int `json:"version"`

	TrainedAt time.Time `json:"trained_at"`
	SavedAt   time.Time `json:"saved_at"`

	// ExampleCount is the number of labeled examples used for training.
	ExampleCount int `json:"example_count"`
	UserCount    int `json:"user_count"`
	ItemCount    int `json:"item_count"`

	// Checksum is the SHA-256 of the uncompressed state.
	Checksum  string `json:"checksum"`
	SizeBytes int64  `json:"size_bytes"`
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store manages artifact files in one directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// latest version per artifact name
	versions map[string]int
}

// NewStore creates a store at baseDir, creating the directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for artifact storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}
	if _, err := s.Rescan(); err != nil {
		return nil, fmt.Errorf("scan existing artifacts: %w", err)
	}
	return s, nil
}

// Rescan rereads the directory and returns the names whose latest version
// changed since the previous scan.
func (s *Store) Rescan() ([]string, error) {
	found, err := s.scan()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for name, versions := range found {
		latest := slices.Max(versions)
		if s.versions[name] != latest {
			changed = append(changed, name)
		}
		s.versions[name] = latest
	}
	for name := range s.versions {
		if _, ok := found[name]; !ok {
			delete(s.versions, name)
		}
	}
	slices.Sort(changed)
	return changed, nil
}

// scan returns every version present on disk, keyed by name.
func (s *Store) scan() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	found := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}
		found[name] = append(found[name], version)
	}
	return found, nil
}

// parseFilename splits "fusion_v12.gob.gz" into ("fusion", 12).
func parseFilename(filename string) (name string, version int, ok bool) {
	base, found := strings.CutSuffix(filename, fileSuffix)
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_v")
	if idx < 1 {
		return "", 0, false
	}
	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:idx], version, true
}

// Save encodes data and writes it as version of name.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, version int, data interface{}, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	if version < 1 {
		return fmt.Errorf("artifact version must be positive, got %d", version)
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress artifact: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.Version = version
	meta.Checksum = hex.EncodeToString(hash[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.baseDir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op after successful rename

	if err := gob.NewEncoder(tmp).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync artifact file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(name, version)); err != nil {
		return fmt.Errorf("rename artifact file: %w", err)
	}

	if version > s.versions[name] {
		s.versions[name] = version
	}
	return nil
}

// Load decodes version of name into target. Version 0 loads the latest
// version seen by the most recent scan.
func (s *Store) Load(ctx context.Context, name string, version int, target interface{}) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		if version, ok = s.versions[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoArtifact, name)
		}
	}

	sf, err := readFile(s.path(name, version))
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress artifact: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Metadata.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &sf.Metadata, nil
}

func readFile(path string) (*storedFile, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from a validated name
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read artifact file: %w", err)
	}
	return &sf, nil
}

// LatestVersion returns the latest known version of name.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.versions[name]
	return version, ok
}

// List returns metadata of the latest version of every artifact, by name.
func (s *Store) List(ctx context.Context) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.versions))
	for name := range s.versions {
		names = append(names, name)
	}
	slices.Sort(names)

	list := make([]Metadata, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sf, err := readFile(s.path(name, s.versions[name]))
		if err != nil {
			continue
		}
		list = append(list, sf.Metadata)
	}
	return list, nil
}

// Prune removes all but the newest keep versions of name.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	found, err := s.scan()
	if err != nil {
		return 0, fmt.Errorf("read directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := found[name]
	slices.Sort(versions)
	slices.Reverse(versions)

	removed := 0
	for _, v := range versions[min(keep, len(versions)):] {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(s.path(name, v)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s v%d: %w", name, v, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) path(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, fileSuffix))
}
