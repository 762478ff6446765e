package store

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// Artifact file extensions appended to a base path.
const (
	IndexExt = ".index"
	MetaExt  = ".meta"
)

const sidecarVersion = 1

// sidecar is the gob-encoded companion of an index file.
type sidecar struct {
	Version   int
	Kind      IndexKind
	Dimension int
	Chunks    []string
	Metadata  []Metadata
}

// IndexPath returns the index structure file for base.
func IndexPath(base string) string { return base + IndexExt }

// MetaPath returns the sidecar file for base.
func MetaPath(base string) string { return base + MetaExt }

// Save writes the index to base.index and the chunks, metadata and dimension
// to base.meta. Both files are written through a temp file and renamed into
// place. Pending chunks must be flushed first.
func (e *Engine) Save(base string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil {
		return vberrors.New(vberrors.ErrCodeInvalidInput, "cannot save an empty index", nil)
	}
	if len(e.pendingChunks) > 0 {
		return vberrors.New(vberrors.ErrCodeInvalidInput,
			fmt.Sprintf("%d chunks are pending; call Flush before Save", len(e.pendingChunks)), nil).
			WithSuggestion("Flush the engine so the index can be trained")
	}

	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return vberrors.New(vberrors.ErrCodeArtifactWrite, "failed to create artifact directory", err)
	}

	lock := NewFileLock(base)
	if err := lock.Lock(); err != nil {
		return vberrors.New(vberrors.ErrCodeArtifactWrite, "failed to lock artifact", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release artifact lock", slog.String("error", err.Error()))
		}
	}()

	data, err := e.index.MarshalBinary()
	if err != nil {
		return vberrors.New(vberrors.ErrCodeArtifactWrite, "failed to encode index", err)
	}
	if err := writeFileAtomic(IndexPath(base), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	}); err != nil {
		return vberrors.New(vberrors.ErrCodeArtifactWrite, "failed to write index file", err)
	}

	meta := sidecar{
		Version:   sidecarVersion,
		Kind:      e.index.Kind(),
		Dimension: e.index.Dimension(),
		Chunks:    e.chunks,
		Metadata:  e.metadata,
	}
	if err := writeFileAtomic(MetaPath(base), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(meta)
	}); err != nil {
		return vberrors.New(vberrors.ErrCodeArtifactWrite, "failed to write metadata file", err)
	}

	slog.Debug("index_saved",
		slog.String("path", base),
		slog.Int("chunks", len(e.chunks)))
	return nil
}

// Load replaces the engine state with the artifact at base. Both files must
// exist and agree on kind, dimension and count.
func (e *Engine) Load(base string) error {
	indexPath, metaPath := IndexPath(base), MetaPath(base)
	for _, p := range []string{indexPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			return vberrors.New(vberrors.ErrCodeArtifactMissing,
				fmt.Sprintf("artifact file %s is missing", p), err).
				WithDetail("path", p).
				WithSuggestion("Rebuild the index; both the .index and .meta files are required")
		}
	}

	lock := NewFileLock(base)
	if err := lock.RLock(); err != nil {
		return vberrors.New(vberrors.ErrCodeFileUnreadable, "failed to lock artifact", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release artifact lock", slog.String("error", err.Error()))
		}
	}()

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return vberrors.New(vberrors.ErrCodeFileUnreadable, "failed to read index file", err)
	}
	idx, err := DecodeIndex(data)
	if err != nil {
		return corrupt(indexPath, err)
	}

	meta, err := readSidecar(metaPath)
	if err != nil {
		return corrupt(metaPath, err)
	}

	switch {
	case meta.Version != sidecarVersion:
		return corrupt(metaPath, fmt.Errorf("unsupported sidecar version %d", meta.Version))
	case meta.Kind != idx.Kind():
		return corrupt(base, fmt.Errorf("sidecar kind %q does not match index kind %q", meta.Kind, idx.Kind()))
	case meta.Dimension != idx.Dimension():
		return vberrors.New(vberrors.ErrCodeDimensionMismatch,
			ErrDimensionMismatch{Expected: meta.Dimension, Got: idx.Dimension()}.Error(), nil).
			WithDetail("path", base)
	case len(meta.Chunks) != idx.Count() || len(meta.Metadata) != idx.Count():
		return corrupt(base, fmt.Errorf("index holds %d vectors but sidecar has %d chunks and %d metadata entries",
			idx.Count(), len(meta.Chunks), len(meta.Metadata)))
	}

	for i, m := range meta.Metadata {
		if m == nil {
			meta.Metadata[i] = Metadata{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = idx
	e.cfg.Kind = idx.Kind()
	e.chunks = meta.Chunks
	e.metadata = meta.Metadata
	e.pendingVecs, e.pendingChunks, e.pendingMeta = nil, nil, nil

	slog.Debug("index_loaded",
		slog.String("path", base),
		slog.String("kind", string(idx.Kind())),
		slog.Int("chunks", len(e.chunks)))
	return nil
}

// Size returns the combined byte size of both artifact files.
func Size(base string) (int64, error) {
	var total int64
	for _, p := range []string{IndexPath(base), MetaPath(base)} {
		info, err := os.Stat(p)
		if err != nil {
			return 0, vberrors.New(vberrors.ErrCodeArtifactMissing,
				fmt.Sprintf("artifact file %s is missing", p), err)
		}
		total += info.Size()
	}
	return total, nil
}

func corrupt(path string, err error) error {
	return vberrors.New(vberrors.ErrCodeArtifactCorrupt,
		fmt.Sprintf("artifact %s is corrupt", path), err).
		WithDetail("path", path).
		WithSuggestion("Delete the artifact and rebuild the index")
}

func readSidecar(path string) (sidecar, error) {
	var meta sidecar
	file, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode sidecar: %w", err)
	}
	return meta, nil
}

// writeFileAtomic writes path via a temp file in the same directory and
// renames it into place.
func writeFileAtomic(path string, write func(*os.File) error) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := write(file); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
